package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
)

func TestRootCommandSubcommands(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, LogInfo).RootCommand()

	want := []string{"call", "procedures", "version", "serve", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"config-file", "uri", "database", "no-cache", "no-arrow", "no-progress"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestRootCommandVersion(t *testing.T) {
	var out bytes.Buffer
	root := New(&out, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), buildinfo.Version) {
		t.Errorf("version output %q should contain %q", out.String(), buildinfo.Version)
	}
}

func TestCallRequiresProcedure(t *testing.T) {
	var out bytes.Buffer
	root := New(&out, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"call"})

	if err := root.Execute(); err == nil {
		t.Error("call without a procedure should fail")
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.Logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatal("debug output at info level")
	}
	c.SetLogLevel(LogDebug)
	c.Logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug output missing after SetLogLevel")
	}
}

func TestRenderProcedures(t *testing.T) {
	sig, err := marshal.ParseSignature("gds.pageRank.stream", marshal.KindProcedure,
		"gds.pageRank.stream(graphName :: STRING, configuration = {} :: MAP) :: (nodeId :: INTEGER)")
	if err != nil {
		t.Fatal(err)
	}
	procs := []namespace.Procedure{
		{Name: "gds.pageRank.stream", Kind: marshal.KindProcedure, Description: "PageRank scores", Signature: sig},
		{Name: "gds.version", Kind: marshal.KindFunction, Description: "Installed version"},
	}

	out := renderProcedures(procs, false)
	for _, s := range []string{"gds.pageRank.stream", "PageRank scores", "gds.version", "function"} {
		if !strings.Contains(out, s) {
			t.Errorf("renderProcedures output missing %q", s)
		}
	}

	out = renderProcedures(procs, true)
	if !strings.Contains(out, "graph_name STRING") || !strings.Contains(out, "config MAP?") {
		t.Errorf("signature output missing parameters:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate() = %q, want %q", got, "abcd…")
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"x", "x"},
		{int64(3), "3"},
		{0.15, "0.15"},
		{[]any{"a"}, "[a]"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
