package namespace

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

var testEntries = []Entry{
	{Name: "gds.pageRank.mutate", Type: "procedure", Signature: "gds.pageRank.mutate(graphName :: STRING, configuration = {} :: MAP) :: (mutateMillis :: INTEGER)"},
	{Name: "gds.pageRank.stream", Type: "procedure", Signature: "gds.pageRank.stream(graphName :: STRING, configuration = {} :: MAP) :: (nodeId :: INTEGER, score :: FLOAT)"},
	{Name: "gds.beta.graphSage.train", Type: "procedure", Signature: "gds.beta.graphSage.train(graphName :: STRING, configuration = {} :: MAP) :: (modelInfo :: MAP)"},
	{Name: "gds.graph.drop", Type: "procedure", Signature: "gds.graph.drop(graphName :: ANY, failIfMissing = true :: BOOLEAN) :: (graphName :: STRING)"},
	{Name: "gds.graph.list", Type: "procedure", Signature: "gds.graph.list(graphName = __ALL__ :: STRING) :: (graphName :: STRING)"},
	{Name: "gds.version", Type: "function", Signature: "gds.version() :: STRING"},
}

type countingLister struct {
	calls   atomic.Int32
	entries []Entry
	err     error
	delay   time.Duration

	sawCancel   atomic.Bool
	sawDeadline atomic.Bool
}

func (l *countingLister) List(ctx context.Context) ([]Entry, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	if ctx.Err() != nil {
		l.sawCancel.Store(true)
		return nil, ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		l.sawDeadline.Store(true)
	}
	return l.entries, l.err
}

func TestNamespaceImmutable(t *testing.T) {
	base := New("gds", "graph")
	a := base.Append("drop")
	b := base.Append("list")

	assert.Equal(t, "gds.graph", base.String())
	assert.Equal(t, "gds.graph.drop", a.String())
	assert.Equal(t, "gds.graph.list", b.String())
	assert.True(t, a.HasPrefix(base))
	assert.False(t, base.HasPrefix(a))
	assert.Equal(t, "list", b.Leaf())

	segs := a.Segments()
	segs[0] = "mutated"
	assert.Equal(t, "gds.graph.drop", a.String())
}

func TestParse(t *testing.T) {
	assert.Equal(t, []string{"gds", "beta", "graphSage", "train"}, Parse("gds.beta.graphSage.train").Segments())
	assert.Equal(t, []string{"gds", "x"}, Parse(".gds..x.").Segments())
	assert.True(t, Parse("").IsZero())
}

func TestResolverIsLazy(t *testing.T) {
	var invoked []string
	inv := InvokerFunc(func(_ context.Context, ns Namespace, _ ...any) (*table.Table, error) {
		invoked = append(invoked, ns.String())
		return table.New(), nil
	})

	root := NewResolver(inv, "gds")
	chain := root.Resolve("beta").Resolve("graphSage").Resolve("train")
	other := root.Path("does.not.exist")

	assert.Empty(t, invoked, "resolving must not dispatch")
	assert.Equal(t, "gds", root.String())
	assert.Equal(t, "gds.beta.graphSage.train", chain.String())
	assert.Equal(t, "gds.does.not.exist", other.String())

	_, err := chain.Invoke(context.Background(), "G")
	require.NoError(t, err)
	assert.Equal(t, []string{"gds.beta.graphSage.train"}, invoked)
}

func TestCatalogLookup(t *testing.T) {
	cat := NewStaticCatalog(testEntries...)
	ctx := context.Background()

	p, err := cat.Lookup(ctx, Parse("gds.pageRank.mutate"))
	require.NoError(t, err)
	assert.Equal(t, marshal.KindProcedure, p.Kind)
	assert.Equal(t, []string{"graph_name", "config"}, p.Signature.FormalParams())

	fn, err := cat.Lookup(ctx, Parse("gds.version"))
	require.NoError(t, err)
	assert.Equal(t, marshal.KindFunction, fn.Kind)
}

func TestCatalogUnknownProcedure(t *testing.T) {
	cat := NewStaticCatalog(testEntries...)

	_, err := cat.Lookup(context.Background(), Parse("gds.bogusAlgo.stream"))
	require.Error(t, err)

	var nsp *errors.NoSuchProcedureError
	require.True(t, stderrors.As(err, &nsp))
	assert.Contains(t, err.Error(), "gds.bogusAlgo.stream")
	assert.False(t, nsp.Prefix)
	assert.True(t, errors.Local(err))
}

func TestCatalogSuggestions(t *testing.T) {
	cat := NewStaticCatalog(testEntries...)
	ctx := context.Background()

	_, err := cat.Lookup(ctx, Parse("gds.pageRank.streem"))
	var nsp *errors.NoSuchProcedureError
	require.True(t, stderrors.As(err, &nsp))
	require.NotEmpty(t, nsp.Suggestions)
	assert.Equal(t, "gds.pageRank.stream", nsp.Suggestions[0])
	assert.Contains(t, err.Error(), "Did you mean: gds.pageRank.stream")

	_, err = cat.Lookup(ctx, Parse("gds.alpha.graphSage.train"))
	require.True(t, stderrors.As(err, &nsp))
	assert.Equal(t, "gds.beta.graphSage.train", nsp.Suggestions[0], "tier moves are suggested first")
}

func TestCatalogPrefixIsNotCallable(t *testing.T) {
	cat := NewStaticCatalog(testEntries...)

	_, err := cat.Lookup(context.Background(), Parse("gds.graph"))
	require.Error(t, err)

	var nsp *errors.NoSuchProcedureError
	require.True(t, stderrors.As(err, &nsp))
	assert.True(t, nsp.Prefix)
	assert.Equal(t, []string{"gds.graph.drop", "gds.graph.list"}, nsp.Suggestions)
	assert.Contains(t, err.Error(), "is a namespace, not a procedure")
}

func TestCatalogList(t *testing.T) {
	cat := NewStaticCatalog(testEntries...)

	procs, err := cat.List(context.Background(), "gds.pageRank")
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, "gds.pageRank.mutate", procs[0].Name)

	all, err := cat.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, len(testEntries))
}

func TestCatalogLoadsOnceConcurrently(t *testing.T) {
	l := &countingLister{entries: testEntries, delay: 20 * time.Millisecond}
	cat := NewCatalog(l)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cat.Lookup(context.Background(), Parse("gds.pageRank.stream"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.calls.Load())
}

func TestCatalogFetchOutlivesCancelledCaller(t *testing.T) {
	l := &countingLister{entries: testEntries, delay: 20 * time.Millisecond}
	cat := NewCatalog(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cat.Lookup(ctx, Parse("gds.pageRank.stream"))
	assert.ErrorIs(t, err, context.Canceled)

	// The shared fetch keeps running and later lookups reuse it.
	_, err = cat.Lookup(context.Background(), Parse("gds.pageRank.stream"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), l.calls.Load())
	assert.False(t, l.sawCancel.Load())
	assert.True(t, l.sawDeadline.Load())
}

func TestCatalogListFailure(t *testing.T) {
	l := &countingLister{err: stderrors.New("connection refused")}
	cat := NewCatalog(l)

	_, err := cat.Lookup(context.Background(), Parse("gds.pageRank.stream"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransport))

	// A failed load is retried on the next lookup.
	l.err = nil
	l.entries = testEntries
	_, err = cat.Lookup(context.Background(), Parse("gds.pageRank.stream"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), l.calls.Load())
}

func TestCatalogUsesCache(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	first := &countingLister{entries: testEntries}
	_, err = NewCatalog(first, WithCache(fc, "catalog:test", time.Hour)).List(ctx, "")
	require.NoError(t, err)

	second := &countingLister{entries: testEntries}
	cat := NewCatalog(second, WithCache(fc, "catalog:test", time.Hour))
	_, err = cat.Lookup(ctx, Parse("gds.graph.drop"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), second.calls.Load(), "listing should come from cache")

	require.NoError(t, cat.Refresh(ctx))
	assert.Equal(t, int32(1), second.calls.Load())
}

func TestServerLister(t *testing.T) {
	q := querierFunc(func(_ context.Context, query string, _ map[string]any) (*table.Table, error) {
		assert.Equal(t, ListQuery, query)
		tbl := table.New("name", "description", "signature", "type")
		tbl.Append("gds.version", "Returns the version", "gds.version() :: STRING", "function")
		return tbl, nil
	})

	entries, err := ServerLister{Querier: q}.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Entry{{
		Name:        "gds.version",
		Description: "Returns the version",
		Signature:   "gds.version() :: STRING",
		Type:        "function",
	}}, entries)
}

func TestUnparsableSignatureIsKept(t *testing.T) {
	cat := NewStaticCatalog(Entry{Name: "gds.weird", Type: "procedure", Signature: "gds.weird(oops"})
	p, err := cat.Lookup(context.Background(), Parse("gds.weird"))
	require.NoError(t, err)
	assert.Error(t, p.SignatureErr)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("stream", "streem"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

type querierFunc func(ctx context.Context, query string, params map[string]any) (*table.Table, error)

func (f querierFunc) Run(ctx context.Context, query string, params map[string]any) (*table.Table, error) {
	return f(ctx, query, params)
}
