package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "test message: %s", "value")

	if err.Code != ErrCodeInvalidConfig {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_CONFIG: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransport, cause, "failed to reach server")

	if err.Code != ErrCodeTransport {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTransport)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidConfig, "test"),
			code:     ErrCodeInvalidConfig,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidConfig, "test"),
			code:     ErrCodeTransport,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeTransport, New(ErrCodeInvalidConfig, "inner"), "outer"),
			code:     ErrCodeTransport,
			expected: true,
		},
		{
			name:     "typed error",
			err:      &NoSuchProcedureError{Namespace: "gds.foo"},
			code:     ErrCodeNoSuchProcedure,
			expected: true,
		},
		{
			name:     "typed error behind fmt wrap",
			err:      fmt.Errorf("call: %w", &MissingParameterError{Procedure: "gds.foo", Parameter: "graphName"}),
			code:     ErrCodeMissingParameter,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidConfig,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeUnsupported, "test"),
			expected: ErrCodeUnsupported,
		},
		{
			name:     "incompatible server",
			err:      &IncompatibleServerVersionError{Namespace: "gds.foo"},
			expected: ErrCodeIncompatibleServer,
		},
		{
			name:     "procedure error defaults to remote failure",
			err:      &ProcedureError{Namespace: "gds.foo", Err: errors.New("boom")},
			expected: ErrCodeProcedureFailed,
		},
		{
			name:     "procedure error classified as transport",
			err:      &ProcedureError{Namespace: "gds.foo", Code: ErrCodeTransport, Err: errors.New("eof")},
			expected: ErrCodeTransport,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidConfig, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLocal(t *testing.T) {
	local := []error{
		&NoSuchProcedureError{Namespace: "gds.x"},
		&MissingParameterError{Procedure: "gds.x", Parameter: "y"},
		&InvalidParameterError{Procedure: "gds.x", Parameter: "y", Expected: "STRING", Got: 1},
		&IncompatibleServerVersionError{Namespace: "gds.x"},
	}
	for _, err := range local {
		if !Local(err) {
			t.Errorf("Local(%T) = false, want true", err)
		}
	}

	remote := []error{
		&ProcedureError{Namespace: "gds.x", Err: errors.New("remote")},
		New(ErrCodeTransport, "eof"),
		errors.New("plain"),
	}
	for _, err := range remote {
		if Local(err) {
			t.Errorf("Local(%v) = true, want false", err)
		}
	}
}

func TestNoSuchProcedureErrorMessage(t *testing.T) {
	err := &NoSuchProcedureError{
		Namespace:   "gds.pageRnak.stream",
		Suggestions: []string{"gds.pageRank.stream", "gds.pageRank.stats"},
	}
	msg := err.Error()
	for _, want := range []string{"gds.pageRnak.stream", "Did you mean", "gds.pageRank.stream", "gds.pageRank.stats"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	prefix := (&NoSuchProcedureError{Namespace: "gds.graph", Prefix: true}).Error()
	if !strings.Contains(prefix, "is a namespace, not a procedure") {
		t.Errorf("prefix message = %q", prefix)
	}
}

func TestIncompatibleServerVersionErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *IncompatibleServerVersionError
		want []string
	}{
		{
			name: "min only",
			err: &IncompatibleServerVersionError{
				Namespace: "gds.graph.sample.cnarw", Params: []string{"graph_name", "from_graph", "config"},
				MinInclusive: "2.5.0", Server: "2.2.0",
			},
			want: []string{"gds.graph.sample.cnarw(graph_name, from_graph, config)", ">= 2.5.0", "2.2.0"},
		},
		{
			name: "window",
			err: &IncompatibleServerVersionError{
				Namespace: "gds.alpha.x", MinInclusive: "2.1.0", MaxExclusive: "2.4.0", Server: "2.6.1",
			},
			want: []string{"in [2.1.0, 2.4.0)", "2.6.1"},
		},
		{
			name: "max only",
			err:  &IncompatibleServerVersionError{Namespace: "gds.alpha.y", MaxExclusive: "2.0.0", Server: "2.3.0"},
			want: []string{"< 2.0.0", "2.3.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("Error() = %q, missing %q", msg, w)
				}
			}
		})
	}
}

func TestProcedureErrorPreservesCause(t *testing.T) {
	cause := errors.New("Failed to invoke procedure: graph 'g' does not exist")
	err := &ProcedureError{Namespace: "gds.pageRank.stream", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.HasPrefix(err.Error(), "gds.pageRank.stream: ") {
		t.Errorf("Error() = %q, want namespace prefix", err.Error())
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Errorf("Error() = %q, want verbatim cause", err.Error())
	}
}
