package detect

import (
	"encoding/json"
	"strings"
)

// startMarker opens an embedded tool invocation. Everything else in the
// token stream passes through as plain text.
const startMarker = `{"tool":`

// MaxCapture bounds how much text a single capture attempt may buffer.
// A capture that reaches this without closing is flushed as text up to
// the cap and scanning resumes on the bytes after it.
const MaxCapture = 32 * 1024

// ToolCall is a structurally valid embedded invocation.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// Segment is one unit of detector output: either plain text or a tool call.
type Segment struct {
	Text string
	Call *ToolCall
}

func textSegment(s string) Segment { return Segment{Text: s} }

// Detector incrementally scans arbitrarily chunked text for a single
// embedded tool-call object of the form
// {"tool":{"name":"...","arguments":{...}}}. Input may be split at any
// byte boundary; output depends only on byte order. All malformed or
// ambiguous input degrades to text, never to an error. At most one tool
// call is extracted per instance; once found, remaining input passes
// through as text.
type Detector struct {
	capturing bool
	found     bool

	// leftover holds a scanning-mode tail that could be the start of a
	// marker split across chunks.
	leftover string

	// prefix holds text that preceded the marker in the chunk that opened
	// the capture; it is only emitted when the capture resolves.
	prefix string

	buf strings.Builder
}

func New() *Detector {
	return &Detector{}
}

// Feed consumes the next chunk and returns zero or more segments in input
// order.
func (d *Detector) Feed(chunk string) []Segment {
	if chunk == "" {
		return nil
	}
	if d.found {
		return []Segment{textSegment(chunk)}
	}

	var out []Segment
	input := chunk
	for input != "" || d.capturing {
		if d.capturing {
			d.buf.WriteString(input)
			input = ""
			segs, rest, resolved := d.tryClose()
			out = append(out, segs...)
			if !resolved {
				break
			}
			input = rest
			if input == "" {
				break
			}
			continue
		}

		data := d.leftover + input
		d.leftover = ""
		input = ""

		idx := strings.Index(data, startMarker)
		if idx < 0 {
			keep := markerPrefixLen(data)
			if emit := data[:len(data)-keep]; emit != "" {
				out = append(out, textSegment(emit))
			}
			d.leftover = data[len(data)-keep:]
			break
		}

		d.prefix = data[:idx]
		d.capturing = true
		d.buf.Reset()
		input = data[idx:]
	}
	return out
}

// Finish flushes any still-buffered input as a trailing text segment. This
// is the only path by which an unclosed capture reaches the caller.
func (d *Detector) Finish() []Segment {
	pending := d.leftover + d.prefix + d.buf.String()
	d.leftover = ""
	d.prefix = ""
	d.buf.Reset()
	d.capturing = false
	if pending == "" {
		return nil
	}
	return []Segment{textSegment(pending)}
}

// tryClose scans the capture buffer for a balanced top-level object. It
// returns any produced segments, the unconsumed remainder of the buffer,
// and whether the capture resolved (by match, mismatch, or size cap).
//
// The cap breach point is a fixed byte offset, so the outcome depends
// only on byte order: bytes past the breach are never swallowed by the
// abandoned capture, they re-enter scanning whether they arrived in the
// same chunk or a later one.
func (d *Detector) tryClose() ([]Segment, string, bool) {
	buf := d.buf.String()
	end := balancedEnd(buf)

	breach := MaxCapture - len(d.prefix) + 1
	if breach < 0 {
		breach = 0
	}
	if end < 0 || end > breach {
		if len(buf) >= breach {
			flushed := d.prefix + buf[:breach]
			rest := buf[breach:]
			d.reset()
			return []Segment{textSegment(flushed)}, rest, true
		}
		return nil, "", false
	}

	span := buf[:end]
	rest := buf[end:]
	call, ok := parseToolCall(span)
	if !ok {
		text := d.prefix + span
		d.reset()
		return []Segment{textSegment(text)}, rest, true
	}

	var out []Segment
	if d.prefix != "" {
		out = append(out, textSegment(d.prefix))
	}
	out = append(out, Segment{Call: call})
	d.reset()
	d.found = true
	if rest != "" {
		out = append(out, textSegment(rest))
		rest = ""
	}
	return out, rest, true
}

func (d *Detector) reset() {
	d.capturing = false
	d.prefix = ""
	d.buf.Reset()
}

// balancedEnd returns the index one past the end of the first balanced
// top-level JSON object in s, or -1 if braces have not closed yet. The
// scan is string-literal aware: braces inside strings are ignored and an
// escaped quote does not toggle string state.
func balancedEnd(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// parseToolCall validates that span is exactly the recognized shape:
// an object whose "tool" member has a string "name" and an object
// "arguments". Anything else is not a tool call.
func parseToolCall(span string) (*ToolCall, bool) {
	var envelope struct {
		Tool json.RawMessage `json:"tool"`
	}
	if err := json.Unmarshal([]byte(span), &envelope); err != nil || len(envelope.Tool) == 0 {
		return nil, false
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Tool, &body); err != nil {
		return nil, false
	}

	var name string
	if raw, ok := body["name"]; !ok || json.Unmarshal(raw, &name) != nil || name == "" {
		return nil, false
	}

	rawArgs, ok := body["arguments"]
	if !ok {
		return nil, false
	}
	var args map[string]interface{}
	if err := json.Unmarshal(rawArgs, &args); err != nil || args == nil {
		return nil, false
	}

	return &ToolCall{Name: name, Arguments: args}, true
}

// markerPrefixLen returns the length of the longest proper suffix of s
// that is also a prefix of the start marker. That tail must be retained
// in case the marker straddles a chunk boundary.
func markerPrefixLen(s string) int {
	max := len(startMarker) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == startMarker[:k] {
			return k
		}
	}
	return 0
}
