package version

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ServerVersion
		wantErr bool
	}{
		{in: "2.6.0", want: New(2, 6, 0)},
		{in: "2.6.0-alpha01", want: New(2, 6, 0)},
		{in: "2.13.4+182", want: New(2, 13, 4)},
		{in: "v1.8.2", want: New(1, 8, 2)},
		{in: "10.0.12", want: New(10, 0, 12)},
		{in: "", wantErr: true},
		{in: "2.6", wantErr: true},
		{in: "two.six.zero", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b ServerVersion
		want int
	}{
		{New(2, 5, 0), New(2, 5, 0), 0},
		{New(2, 2, 0), New(2, 5, 0), -1},
		{New(2, 10, 0), New(2, 9, 9), 1},
		{New(3, 0, 0), New(2, 99, 99), 1},
		{New(2, 5, 1), New(2, 5, 0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"_vs_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
			assert.Equal(t, tt.want >= 0, tt.a.AtLeast(tt.b))
		})
	}
}

func TestWindowContains(t *testing.T) {
	w := Between(New(2, 1, 0), New(2, 4, 0))

	assert.False(t, w.Contains(New(2, 0, 9)))
	assert.True(t, w.Contains(New(2, 1, 0)), "min is inclusive")
	assert.True(t, w.Contains(New(2, 3, 7)))
	assert.False(t, w.Contains(New(2, 4, 0)), "max is exclusive")

	assert.True(t, Window{}.Contains(New(0, 0, 1)))
	assert.True(t, Window{}.Unbounded())
	assert.True(t, Since(New(2, 5, 0)).Contains(New(3, 0, 0)))
	assert.False(t, Before(New(2, 0, 0)).Contains(New(2, 0, 0)))
}

func TestCheck(t *testing.T) {
	params := []string{"graph_name", "config"}

	t.Run("inside window", func(t *testing.T) {
		assert.NoError(t, Check("gds.x", params, Since(New(2, 5, 0)), New(2, 6, 0)))
	})

	t.Run("below min", func(t *testing.T) {
		err := Check("gds.graph.sample.cnarw", params, Since(New(2, 5, 0)), New(2, 2, 0))
		require.Error(t, err)

		var ie *errors.IncompatibleServerVersionError
		require.True(t, stderrors.As(err, &ie))
		assert.Contains(t, err.Error(), "gds.graph.sample.cnarw(graph_name, config)")
		assert.Contains(t, err.Error(), "2.5.0")
		assert.Contains(t, err.Error(), "2.2.0")
		assert.True(t, errors.Is(err, errors.ErrCodeIncompatibleServer))
	})

	t.Run("at max", func(t *testing.T) {
		err := Check("gds.alpha.old", nil, Between(New(2, 0, 0), New(2, 4, 0)), New(2, 4, 0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "in [2.0.0, 2.4.0)")
		assert.Contains(t, err.Error(), "2.4.0")
	})

	t.Run("params are copied", func(t *testing.T) {
		p := []string{"a"}
		err := Check("gds.x", p, Since(New(9, 0, 0)), New(1, 0, 0))
		p[0] = "mutated"
		assert.Contains(t, err.Error(), "gds.x(a)")
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("gds.beta.thing.stream", Since(New(2, 5, 0)), "graph_name", "config")

	_, ok := r.Lookup("gds.unknown")
	assert.False(t, ok)
	assert.NoError(t, r.Check("gds.unknown", New(1, 0, 0)), "unregistered namespaces pass")

	err := r.Check("gds.beta.thing.stream", New(2, 2, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gds.beta.thing.stream(graph_name, config)")

	assert.NoError(t, r.Check("gds.beta.thing.stream", New(2, 5, 0)))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	e, ok := r.Lookup("gds.listProgress")
	require.True(t, ok)
	assert.Equal(t, ListProgressGA, *e.Window.MinInclusive)
}
