// Package marshal converts caller arguments into the parameter shape a GDS
// procedure expects.
//
// A call's arguments are matched against the procedure [Signature] reported
// by the server: positional values fill formal parameters in order,
// [Params] values fill them by name, and [Config] values are merged into the
// free-form configuration map. Required parameters that are not supplied
// fail with [errors.MissingParameterError] before any network call.
//
// For procedures that accept a configuration map (other than estimations),
// the marshaller injects a fresh "jobId" unless the caller supplied one, so
// that progress can be tracked server-side.
package marshal

import (
	"maps"
	"reflect"

	"github.com/google/uuid"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// ConfigKey is the placeholder name of the configuration map parameter.
const ConfigKey = "config"

// JobIDKey is the configuration key carrying the job id.
const JobIDKey = "jobId"

// Config is the free-form configuration map of a call. Entries are forwarded
// verbatim; the server validates their semantics.
type Config map[string]any

// Params supplies formal parameters by name. Both the declared name
// ("graphName") and the placeholder name ("graph_name") are accepted.
type Params map[string]any

// Named is implemented by domain objects (graphs, models, pipelines) that are
// passed to procedures by name.
type Named interface {
	Name() string
}

// Args is the decomposed argument list of a call.
type Args struct {
	Positional []any
	Named      map[string]any
	Config     map[string]any
}

// SplitArgs sorts a variadic argument list into positional values, [Params]
// and [Config]. Multiple Params or Config values are merged left to right.
func SplitArgs(args ...any) Args {
	var a Args
	for _, arg := range args {
		switch v := arg.(type) {
		case Config:
			if a.Config == nil {
				a.Config = map[string]any{}
			}
			maps.Copy(a.Config, v)
		case Params:
			if a.Named == nil {
				a.Named = map[string]any{}
			}
			maps.Copy(a.Named, v)
		default:
			a.Positional = append(a.Positional, arg)
		}
	}
	return a
}

// Value is one positional parameter of a marshalled call.
type Value struct {
	Name        string // Declared name
	Placeholder string // Query parameter name
	Value       any
}

// CallParameters is the marshalled form of a call. It is created fresh per
// call and never reused.
type CallParameters struct {
	Procedure  string
	Kind       Kind
	Positional []Value        // Formal parameters in declaration order, config excluded
	Config     map[string]any // Nil when the procedure takes no configuration map
	JobID      string         // Empty unless the call is tracked
}

// HasConfig reports whether the call carries a configuration map.
func (c CallParameters) HasConfig() bool { return c.Config != nil }

// Placeholders returns the query parameter names in call order, config last.
func (c CallParameters) Placeholders() []string {
	out := make([]string, 0, len(c.Positional)+1)
	for _, v := range c.Positional {
		out = append(out, v.Placeholder)
	}
	if c.HasConfig() {
		out = append(out, ConfigKey)
	}
	return out
}

// Map returns the query parameters keyed by placeholder.
func (c CallParameters) Map() map[string]any {
	m := make(map[string]any, len(c.Positional)+1)
	for _, v := range c.Positional {
		m[v.Placeholder] = v.Value
	}
	if c.HasConfig() {
		m[ConfigKey] = c.Config
	}
	return m
}

// WithoutJobID returns a copy of c with the job id removed from both the
// struct and the configuration map.
func (c CallParameters) WithoutJobID() CallParameters {
	out := c
	out.JobID = ""
	out.Positional = append([]Value(nil), c.Positional...)
	if c.Config != nil {
		out.Config = maps.Clone(c.Config)
		delete(out.Config, JobIDKey)
	}
	return out
}

// Marshaller turns [Args] into [CallParameters] for a signature.
type Marshaller struct {
	// NewJobID generates job ids. Defaults to random UUIDs.
	NewJobID func() string
}

// New creates a Marshaller that generates UUIDv4 job ids.
func New() *Marshaller {
	return &Marshaller{NewJobID: func() string { return uuid.NewString() }}
}

// Marshal validates args against sig and returns the call parameters.
func (m *Marshaller) Marshal(sig Signature, args Args) (CallParameters, error) {
	cp := CallParameters{Procedure: sig.Name, Kind: sig.Kind}
	cfgIdx := sig.ConfigIndex()
	formal := sig.Params
	if cfgIdx >= 0 {
		formal = sig.Params[:cfgIdx]
	}

	values, posConfig, err := m.bind(sig, formal, cfgIdx, args)
	if err != nil {
		return CallParameters{}, err
	}
	cp.Positional = values

	if cfgIdx < 0 {
		if len(args.Config) > 0 {
			return CallParameters{}, &errors.InvalidParameterError{
				Procedure: sig.Name,
				Expected:  "procedure does not accept a configuration map",
			}
		}
		return cp, nil
	}

	cfg := map[string]any{}
	maps.Copy(cfg, posConfig)
	maps.Copy(cfg, args.Config)
	cp.Config = cfg

	if m.tracksJob(sig) {
		if id, ok := cfg[JobIDKey].(string); ok && id != "" {
			cp.JobID = id
		} else {
			cp.JobID = m.newJobID()
			cfg[JobIDKey] = cp.JobID
		}
	}
	return cp, nil
}

// bind matches positional and named arguments to the formal parameters.
// A positional map landing on the configuration slot is returned separately.
func (m *Marshaller) bind(sig Signature, formal []Param, cfgIdx int, args Args) ([]Value, map[string]any, error) {
	supplied := make([]any, len(formal))
	present := make([]bool, len(formal))
	var posConfig map[string]any

	for i, v := range args.Positional {
		switch {
		case i < len(formal):
			supplied[i], present[i] = v, true
		case i == len(formal) && cfgIdx >= 0:
			cfg, ok := asMap(v)
			if !ok {
				return nil, nil, &errors.InvalidParameterError{Procedure: sig.Name, Parameter: ConfigKey, Expected: string(TypeMap), Got: v}
			}
			posConfig = cfg
		default:
			return nil, nil, &errors.InvalidParameterError{
				Procedure: sig.Name,
				Expected:  "too many positional arguments",
			}
		}
	}

	for name, v := range args.Named {
		i := indexOf(formal, name)
		if i < 0 {
			return nil, nil, &errors.InvalidParameterError{Procedure: sig.Name, Parameter: name, Expected: "a declared parameter name", Got: v}
		}
		if present[i] {
			return nil, nil, &errors.InvalidParameterError{Procedure: sig.Name, Parameter: name, Expected: "a single value (given both positionally and by name)", Got: v}
		}
		supplied[i], present[i] = v, true
	}

	// Trailing optional parameters may be omitted; earlier gaps take the default.
	last := -1
	for i := range formal {
		if present[i] {
			last = i
		}
	}

	var out []Value
	for i, p := range formal {
		if !present[i] {
			if !p.Optional {
				return nil, nil, &errors.MissingParameterError{Procedure: sig.Name, Parameter: p.Placeholder()}
			}
			if i > last && cfgIdx < 0 {
				break
			}
			supplied[i] = p.Default
		}
		v := resolveNamed(supplied[i])
		if !typeMatches(p.Type, v) {
			return nil, nil, &errors.InvalidParameterError{Procedure: sig.Name, Parameter: p.Placeholder(), Expected: string(p.Type), Got: v}
		}
		out = append(out, Value{Name: p.Name, Placeholder: p.Placeholder(), Value: v})
	}
	return out, posConfig, nil
}

func (m *Marshaller) tracksJob(sig Signature) bool {
	return sig.Kind != KindFunction && sig.Mode() != "estimate"
}

func (m *Marshaller) newJobID() string {
	if m.NewJobID != nil {
		return m.NewJobID()
	}
	return uuid.NewString()
}

func indexOf(formal []Param, name string) int {
	for i, p := range formal {
		if p.Name == name || p.Placeholder() == name {
			return i
		}
	}
	return -1
}

func resolveNamed(v any) any {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Config:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// typeMatches reports whether v is acceptable for a parameter of type t.
// Nil is always accepted; the server decides whether null is allowed.
func typeMatches(t Type, v any) bool {
	if v == nil {
		return true
	}
	k := reflect.TypeOf(v).Kind()
	switch t {
	case TypeString:
		return k == reflect.String
	case TypeInteger:
		return isInt(k)
	case TypeFloat, TypeNumber:
		return isInt(k) || k == reflect.Float32 || k == reflect.Float64
	case TypeBoolean:
		return k == reflect.Bool
	case TypeMap:
		return k == reflect.Map && reflect.TypeOf(v).Key().Kind() == reflect.String
	case TypeList:
		return k == reflect.Slice || k == reflect.Array
	}
	return true
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
