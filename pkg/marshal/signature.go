package marshal

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// Kind distinguishes procedures (CALL ...) from functions (RETURN ...).
type Kind string

const (
	KindProcedure Kind = "procedure"
	KindFunction  Kind = "function"
)

// Type is the declared Cypher type of a parameter, normalised to its base
// name (LIST<STRING> and LIST OF STRING both become LIST).
type Type string

const (
	TypeAny          Type = "ANY"
	TypeString       Type = "STRING"
	TypeInteger      Type = "INTEGER"
	TypeFloat        Type = "FLOAT"
	TypeNumber       Type = "NUMBER"
	TypeBoolean      Type = "BOOLEAN"
	TypeMap          Type = "MAP"
	TypeList         Type = "LIST"
	TypeNode         Type = "NODE"
	TypeRelationship Type = "RELATIONSHIP"
	TypePath         Type = "PATH"
)

// Param is one formal parameter of a procedure signature.
type Param struct {
	Name     string // Name as declared by the server, e.g. "graphName"
	Type     Type
	Optional bool // Declared with a default value
	Default  any  // Parsed default; only meaningful when Optional
}

// Placeholder returns the query parameter name used for p, e.g. "graph_name".
func (p Param) Placeholder() string {
	if p.Type == TypeMap && isConfigName(p.Name) {
		return ConfigKey
	}
	return snakeCase(p.Name)
}

// Signature is the parsed form of a server-declared procedure signature such
// as "gds.pageRank.mutate(graphName :: STRING, configuration = {} :: MAP) :: (...)".
type Signature struct {
	Name   string
	Kind   Kind
	Params []Param
	Raw    string
}

// ConfigIndex returns the index of the trailing configuration map parameter,
// or -1 if the procedure takes none.
func (s Signature) ConfigIndex() int {
	if n := len(s.Params); n > 0 {
		last := s.Params[n-1]
		if last.Type == TypeMap && isConfigName(last.Name) {
			return n - 1
		}
	}
	return -1
}

// FormalParams returns the placeholder names of all parameters in order.
func (s Signature) FormalParams() []string {
	out := make([]string, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.Placeholder()
	}
	return out
}

// Mode returns the last namespace segment, e.g. "mutate" or "estimate".
func (s Signature) Mode() string {
	if i := strings.LastIndexByte(s.Name, '.'); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

func isConfigName(name string) bool {
	return name == "configuration" || name == "config"
}

// ParseSignature parses a signature string as returned by gds.list().
// An empty signature yields a parameterless procedure named name.
func ParseSignature(name string, kind Kind, raw string) (Signature, error) {
	sig := Signature{Name: name, Kind: kind, Raw: raw}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sig, nil
	}

	open := strings.IndexByte(raw, '(')
	if open < 0 {
		return sig, errors.New(errors.ErrCodeInternal, "signature of %s has no parameter list: %q", name, raw)
	}
	closeIdx := matchingParen(raw, open)
	if closeIdx < 0 {
		return sig, errors.New(errors.ErrCodeInternal, "signature of %s has unbalanced parentheses: %q", name, raw)
	}

	body := strings.TrimSpace(raw[open+1 : closeIdx])
	if body == "" {
		return sig, nil
	}
	for _, part := range splitTopLevel(body, ',') {
		p, err := parseParam(part)
		if err != nil {
			return sig, errors.Wrap(errors.ErrCodeInternal, err, "signature of %s", name)
		}
		sig.Params = append(sig.Params, p)
	}
	return sig, nil
}

// parseParam parses "name = default :: TYPE" or "name :: TYPE".
func parseParam(s string) (Param, error) {
	s = strings.TrimSpace(s)
	decl, typ, ok := cutLast(s, "::")
	if !ok {
		return Param{}, errors.New(errors.ErrCodeInternal, "parameter %q has no type", s)
	}
	p := Param{Type: normaliseType(typ)}

	name, def, hasDefault := strings.Cut(decl, "=")
	p.Name = strings.TrimSpace(name)
	if p.Name == "" {
		return Param{}, errors.New(errors.ErrCodeInternal, "parameter %q has no name", s)
	}
	if hasDefault {
		p.Optional = true
		p.Default = parseLiteral(strings.TrimSpace(def))
	}
	return p, nil
}

func normaliseType(t string) Type {
	t = strings.ToUpper(strings.TrimSpace(t))
	t = strings.TrimSuffix(t, "?")
	t = strings.TrimSuffix(t, " NOT NULL")
	if strings.HasPrefix(t, "LIST") {
		return TypeList
	}
	switch Type(t) {
	case TypeString, TypeInteger, TypeFloat, TypeNumber, TypeBoolean, TypeMap,
		TypeNode, TypeRelationship, TypePath:
		return Type(t)
	}
	return TypeAny
}

// parseLiteral converts a default value as rendered by the server into a Go
// value. Unquoted words that are not keywords are kept as strings
// (e.g. __ALL__).
func parseLiteral(s string) any {
	switch {
	case s == "null" || s == "NULL":
		return nil
	case s == "true" || s == "false":
		return s == "true"
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]:
		return s[1 : len(s)-1]
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		inner := strings.TrimSpace(s[1 : len(s)-1])
		out := []any{}
		if inner == "" {
			return out
		}
		for _, e := range splitTopLevel(inner, ',') {
			out = append(out, parseLiteral(strings.TrimSpace(e)))
		}
		return out
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		inner := strings.TrimSpace(s[1 : len(s)-1])
		out := map[string]any{}
		if inner == "" {
			return out
		}
		for _, e := range splitTopLevel(inner, ',') {
			k, v, ok := strings.Cut(e, ":")
			if !ok {
				continue
			}
			out[strings.Trim(strings.TrimSpace(k), "`'\"")] = parseLiteral(strings.TrimSpace(v))
		}
		return out
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// splitTopLevel splits s on sep, ignoring separators nested in brackets,
// braces, parentheses, angle brackets or quotes.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{' || c == '<':
			depth++
		case c == ')' || c == ']' || c == '}' || c == '>':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// snakeCase converts camelCase identifiers to snake_case.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
