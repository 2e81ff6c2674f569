package tool

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Metadata keys used by error-shaped results.
const (
	MetaErrorCode   = "error_code"
	MetaErrorDetail = "error_detail"
)

// Result is the immutable outcome of one tool invocation.
type Result struct {
	Name     string                 `json:"name"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewResult constructs a successful result.
func NewResult(name, content string, metadata map[string]interface{}) *Result {
	return &Result{Name: name, Content: content, Metadata: metadata}
}

// ErrorResult constructs an error-shaped result. Failures travel as data
// so a turn always reaches its terminal event.
func ErrorResult(name, content, code, detail string) *Result {
	meta := map[string]interface{}{MetaErrorCode: code}
	if detail != "" {
		meta[MetaErrorDetail] = detail
	}
	return &Result{Name: name, Content: content, Metadata: meta}
}

// IsError reports whether the result carries an error code.
func (r *Result) IsError() bool {
	if r == nil || r.Metadata == nil {
		return false
	}
	_, ok := r.Metadata[MetaErrorCode]
	return ok
}

// Equal compares results structurally. Metadata is normalized through a
// JSON round-trip first so key order and numeric representation do not
// affect the outcome.
func (r *Result) Equal(other *Result) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Name != other.Name || r.Content != other.Content {
		return false
	}
	return reflect.DeepEqual(normalizeJSON(r.Metadata), normalizeJSON(other.Metadata))
}

func normalizeJSON(m map[string]interface{}) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}

// Tool represents an executable capability. Invocations are synchronous,
// deterministic for given inputs, and perform no network I/O.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Invoke(args map[string]interface{}) (*Result, error)
}

// Descriptor advertises one registered tool upstream.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
