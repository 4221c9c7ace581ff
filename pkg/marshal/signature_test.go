package marshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("gds.pageRank.mutate", KindProcedure,
		"gds.pageRank.mutate(graphName :: STRING, configuration = {} :: MAP) :: (mutateMillis :: INTEGER, nodePropertiesWritten :: INTEGER)")
	require.NoError(t, err)

	require.Len(t, sig.Params, 2)
	assert.Equal(t, Param{Name: "graphName", Type: TypeString}, sig.Params[0])
	assert.Equal(t, "configuration", sig.Params[1].Name)
	assert.True(t, sig.Params[1].Optional)
	assert.Equal(t, map[string]any{}, sig.Params[1].Default)

	assert.Equal(t, 1, sig.ConfigIndex())
	assert.Equal(t, []string{"graph_name", "config"}, sig.FormalParams())
	assert.Equal(t, "mutate", sig.Mode())
}

func TestParseSignatureDefaults(t *testing.T) {
	sig, err := ParseSignature("gds.graph.nodeProperties.stream", KindProcedure,
		"gds.graph.nodeProperties.stream(graphName :: STRING, nodeProperties :: ANY, nodeLabels = ['*'] :: LIST<STRING>, configuration = {} :: MAP) :: (nodeId :: INTEGER)")
	require.NoError(t, err)

	require.Len(t, sig.Params, 4)
	assert.Equal(t, TypeAny, sig.Params[1].Type)
	assert.Equal(t, TypeList, sig.Params[2].Type)
	assert.Equal(t, []any{"*"}, sig.Params[2].Default)
	assert.Equal(t, "node_labels", sig.Params[2].Placeholder())
}

func TestParseSignatureLiterals(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"null", nil},
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"0.85", 0.85},
		{"'abc'", "abc"},
		{"__ALL__", "__ALL__"},
		{"{a: 1, b: 'x'}", map[string]any{"a": int64(1), "b": "x"}},
		{"[]", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLiteral(tt.in))
		})
	}
}

func TestParseSignatureNoParams(t *testing.T) {
	sig, err := ParseSignature("gds.version", KindFunction, "gds.version() :: (STRING?)")
	require.NoError(t, err)
	assert.Empty(t, sig.Params)
	assert.Equal(t, -1, sig.ConfigIndex())

	sig, err = ParseSignature("gds.list", KindProcedure, "")
	require.NoError(t, err)
	assert.Empty(t, sig.Params)
}

func TestParseSignatureMalformed(t *testing.T) {
	_, err := ParseSignature("gds.x", KindProcedure, "gds.x :: STRING")
	assert.Error(t, err)

	_, err = ParseSignature("gds.x", KindProcedure, "gds.x(a :: STRING")
	assert.Error(t, err)

	_, err = ParseSignature("gds.x", KindProcedure, "gds.x(a) :: STRING")
	assert.Error(t, err)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "graph_name", snakeCase("graphName"))
	assert.Equal(t, "node_properties", snakeCase("nodeProperties"))
	assert.Equal(t, "config", snakeCase("config"))
}
