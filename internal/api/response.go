package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// StatusClientError is the sentinel status for local/transport failures.
// It is outside the HTTP range so it can never collide with a status the
// server actually returned.
const StatusClientError = -1

// Transform converts a decoded body value into a typed one. Transforms
// must be side-effect-free and deterministic.
type Transform func(interface{}) interface{}

// Response is a normalized result of a backend call or an inbound push
// frame: status code, headers, raw body, and lazy structured accessors.
type Response struct {
	Status  int
	Headers http.Header

	raw []byte

	parseOnce sync.Once
	parsed    interface{}
}

// NewResponse wraps a status code and raw body.
func NewResponse(status int, headers http.Header, body []byte) *Response {
	return &Response{Status: status, Headers: headers, raw: body}
}

// ClientErrorResponse returns the sentinel response representing a
// local/transport failure, as opposed to a server-returned error status.
func ClientErrorResponse() *Response {
	return &Response{Status: StatusClientError}
}

// Raw returns the raw response body.
func (r *Response) Raw() []byte {
	return r.raw
}

// decode lazily parses the JSON body. Numbers decode as json.Number so
// ids above 2^53 survive with exact precision. A body that fails to parse
// leaves parsed nil and all field accessors return nil.
func (r *Response) decode() interface{} {
	r.parseOnce.Do(func() {
		if len(r.raw) == 0 {
			return
		}
		dec := json.NewDecoder(bytes.NewReader(r.raw))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return
		}
		r.parsed = v
	})
	return r.parsed
}

// Body returns the decoded JSON body, or nil if there is none.
func (r *Response) Body() interface{} {
	return r.decode()
}

// BodyField resolves a dotted field name against the decoded body and
// returns its value, or nil if any key along the path is absent.
func (r *Response) BodyField(name string) interface{} {
	current := r.decode()
	if current == nil {
		return nil
	}
	for _, key := range splitFieldPath(name) {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return current
}

// BodyFieldWith resolves a field and applies a transform to the value if
// it is present.
func (r *Response) BodyFieldWith(name string, transform Transform) interface{} {
	v := r.BodyField(name)
	if v == nil {
		return nil
	}
	return transform(v)
}

// BodyString resolves a field as a string, returning "" when absent.
func (r *Response) BodyString(name string) string {
	if v, ok := r.BodyField(name).(string); ok {
		return v
	}
	return ""
}

// BodyList returns the body as a list of objects, or nil if it is not one.
func (r *Response) BodyList() []map[string]interface{} {
	list, ok := r.decode().([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, e := range list {
		if obj, ok := e.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

// IsError reports whether the response carries a failure status, either
// server-returned or the client-error sentinel.
func (r *Response) IsError() bool {
	return r.Status == StatusClientError || r.Status >= http.StatusBadRequest
}

// ErrorDescription extracts a human-readable error message from the body
// if the backend supplied one, falling back to a generic description.
func (r *Response) ErrorDescription() string {
	if msg := r.BodyString("description"); msg != "" {
		return msg
	}
	if msg := r.BodyString("error"); msg != "" {
		return msg
	}
	if r.Status == StatusClientError {
		return "request failed on the client side"
	}
	return fmt.Sprintf("backend returned status %d", r.Status)
}

func splitFieldPath(name string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			parts = append(parts, name[start:i])
			start = i + 1
		}
	}
	return append(parts, name[start:])
}

// UnsignedString converts a numeric JSON value into its unsigned decimal
// representation. Channel ids come over the wire as numbers but are
// handled as strings everywhere locally. Negative values are reinterpreted
// as their two's-complement unsigned ids.
func UnsignedString(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		switch {
		case n < 0:
			return strconv.FormatUint(uint64(int64(n)), 10)
		case n >= 1<<64:
			return strconv.FormatUint(math.MaxUint64, 10)
		default:
			return strconv.FormatUint(uint64(n), 10)
		}
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			// Above int64 range the decimal text is already exact.
			return n.String()
		}
		return strconv.FormatUint(uint64(i), 10)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseTimestamp parses an RFC 3339 timestamp body value into a time.Time.
// Unparseable values map to the zero time.
func ParseTimestamp(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
