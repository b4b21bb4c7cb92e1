package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Filter decides whether a row image is relevant to a subscription.
type Filter interface {
	Match(row map[string]any) (bool, error)
	String() string
}

type searcher interface {
	Search(data any) (any, error)
}

// JMESPathFilter matches rows for which a JMESPath expression is truthy,
// e.g. `status == 'running'` or `contains(url, 'shop')`.
type JMESPathFilter struct {
	expr     string
	compiled searcher
}

// CompileFilter compiles expr. An empty expression yields a nil Filter,
// which matches everything.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, err)
	}
	return &JMESPathFilter{expr: expr, compiled: compiled}, nil
}

// Match evaluates the expression against row.
func (f *JMESPathFilter) Match(row map[string]any) (bool, error) {
	v, err := f.compiled.Search(row)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.expr, err)
	}
	return truthy(v), nil
}

func (f *JMESPathFilter) String() string { return f.expr }

// truthy applies JMESPath truthiness: false, null and empty values are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// decodeRow turns a row image into the generic form filters search.
func decodeRow(raw json.RawMessage) (map[string]any, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}
