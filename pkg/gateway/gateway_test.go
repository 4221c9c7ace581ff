package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/channel"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

type fakeClient struct {
	lastNS   string
	lastArgs marshal.Args
	err      error
}

func (f *fakeClient) Call(_ context.Context, ns namespace.Namespace, args marshal.Args) (*table.Table, error) {
	f.lastNS, f.lastArgs = ns.String(), args
	if f.err != nil {
		return nil, f.err
	}
	t := table.New("nodeId", "score")
	t.Append(int64(0), 0.15)
	return t, nil
}

func (f *fakeClient) Procedures(_ context.Context, prefix string) ([]namespace.Procedure, error) {
	cat := namespace.NewStaticCatalog(
		namespace.Entry{Name: "gds.pageRank.stream", Type: "procedure", Signature: "gds.pageRank.stream(graphName :: STRING, configuration = {} :: MAP) :: (nodeId :: INTEGER)"},
		namespace.Entry{Name: "gds.wcc.stream", Type: "procedure", Signature: "gds.wcc.stream(graphName :: STRING, configuration = {} :: MAP) :: (nodeId :: INTEGER)"},
	)
	return cat.List(context.Background(), prefix)
}

func (f *fakeClient) ServerVersion() version.ServerVersion { return version.New(2, 6, 0) }

func (f *fakeClient) Mode(context.Context) channel.State { return channel.StateQueryOnly }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeClient{}).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestVersion(t *testing.T) {
	rec := do(t, New(&fakeClient{}).Handler(), http.MethodGet, "/v1/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"server_version":"2.6.0","mode":"QUERY_ONLY"}`, rec.Body.String())
}

func TestProcedures(t *testing.T) {
	rec := do(t, New(&fakeClient{}).Handler(), http.MethodGet, "/v1/procedures?prefix=gds.wcc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []procedureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "gds.wcc.stream", out[0].Name)
	assert.Equal(t, "procedure", out[0].Kind)
}

func TestCall(t *testing.T) {
	fc := &fakeClient{}
	rec := do(t, New(fc).Handler(), http.MethodPost, "/v1/call/gds.pageRank.stream",
		`{"args":["G"],"config":{"maxIterations":20,"dampingFactor":0.85,"nodeLabels":["A"]}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"columns":["nodeId","score"],"rows":[[0,0.15]]}`, rec.Body.String())
	assert.Equal(t, "gds.pageRank.stream", fc.lastNS)
	assert.Equal(t, []any{"G"}, fc.lastArgs.Positional)
	assert.Equal(t, int64(20), fc.lastArgs.Config["maxIterations"])
	assert.Equal(t, 0.85, fc.lastArgs.Config["dampingFactor"])
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
		code   string
	}{
		{"unknown", "/v1/call/gds.bogus.stream", "", &errors.NoSuchProcedureError{Namespace: "gds.bogus.stream"}, http.StatusNotFound, "NO_SUCH_PROCEDURE"},
		{"missing", "/v1/call/gds.pageRank.stream", "", &errors.MissingParameterError{Procedure: "gds.pageRank.stream", Parameter: "graph_name"}, http.StatusBadRequest, "MISSING_PARAMETER"},
		{"gate", "/v1/call/gds.graph.filter", "", &errors.IncompatibleServerVersionError{Namespace: "gds.graph.filter", MinInclusive: "2.5.0", Server: "2.2.0"}, http.StatusConflict, "INCOMPATIBLE_SERVER_VERSION"},
		{"transport", "/v1/call/gds.pageRank.stream", "", &errors.ProcedureError{Namespace: "gds.pageRank.stream", Code: errors.ErrCodeTransport, Err: context.DeadlineExceeded}, http.StatusBadGateway, "TRANSPORT"},
		{"remote", "/v1/call/gds.pageRank.stream", "", &errors.ProcedureError{Namespace: "gds.pageRank.stream", Err: assert.AnError}, http.StatusInternalServerError, "PROCEDURE_FAILED"},
		{"bad namespace", "/v1/call/gds.page%20Rank", "", nil, http.StatusNotFound, "NO_SUCH_PROCEDURE"},
		{"bad body", "/v1/call/gds.pageRank.stream", `{"args":`, nil, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"unknown field", "/v1/call/gds.pageRank.stream", `{"arguments":[]}`, nil, http.StatusBadRequest, "INVALID_PARAMETER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(&fakeClient{err: tt.err}).Handler(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestMetricsAndHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewPrometheus(reg)
	h := New(&fakeClient{},
		WithHooks(metrics.Hooks().HTTP),
		WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		WithTimeout(time.Second),
	).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/call/gds.pageRank.stream", `{"args":["G"]}`).Code)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gds_gateway_request_duration_seconds_count{method="POST",route="/v1/call/{namespace}",status="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(errors.ErrCodeClosed))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(""))
}
