package api

import (
	"net/url"
	"strings"
)

// Route is a closed enumeration of backend endpoints. Each route carries a
// path template and whether calls against it must present a bearer token.
type Route int

const (
	RouteAuthenticate Route = iota
	RouteUser
	RouteAccount
	RouteAccountSettings
	RouteChannel
	RouteFriends
	RouteFriendRequest
	RouteStatusUpdate
)

type routeInfo struct {
	template     string
	requiresAuth bool
}

var routeTable = map[Route]routeInfo{
	RouteAuthenticate:    {"authenticate", false},
	RouteUser:            {"user", true},
	RouteAccount:         {"account", true},
	RouteAccountSettings: {"account/settings", true},
	RouteChannel:         {"channel", true},
	RouteFriends:         {"friends", true},
	RouteFriendRequest:   {"friends/request", true},
	RouteStatusUpdate:    {"status/update", true},
}

// Template returns the path template of the route.
func (r Route) Template() string {
	return routeTable[r].template
}

// RequiresAuth reports whether the route needs a bearer token.
func (r Route) RequiresAuth() bool {
	return routeTable[r].requiresAuth
}

// String returns the route template for logging.
func (r Route) String() string {
	return routeTable[r].template
}

// Builder starts building a request against this route.
func (r Route) Builder() *RequestBuilder {
	return &RequestBuilder{req: &Request{
		route:        r,
		requiresAuth: routeTable[r].requiresAuth,
	}}
}

// queryPair preserves the order query parameters were supplied in,
// so built URLs are reproducible.
type queryPair struct {
	key, value string
}

// Request is a typed description of an outgoing backend call.
// It is immutable once built.
type Request struct {
	route        Route
	path         []string
	query        []queryPair
	headers      map[string]string
	fields       map[string]interface{}
	rawBody      []byte
	requiresAuth bool
}

// RequestBuilder assembles a Request. All methods return the builder for
// chaining; Build finalizes the request.
type RequestBuilder struct {
	req *Request
}

// Path appends a path segment.
func (b *RequestBuilder) Path(segment string) *RequestBuilder {
	b.req.path = append(b.req.path, segment)
	return b
}

// Query appends a query parameter.
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	b.req.query = append(b.req.query, queryPair{key, value})
	return b
}

// Header sets an additional request header.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	if b.req.headers == nil {
		b.req.headers = make(map[string]string)
	}
	b.req.headers[key] = value
	return b
}

// Field sets a structured body field, serialized as JSON on send.
func (b *RequestBuilder) Field(key string, value interface{}) *RequestBuilder {
	if b.req.fields == nil {
		b.req.fields = make(map[string]interface{})
	}
	b.req.fields[key] = value
	return b
}

// RawBody supplies a raw byte payload instead of JSON fields.
func (b *RequestBuilder) RawBody(data []byte) *RequestBuilder {
	b.req.rawBody = data
	return b
}

// Build finalizes the request. The returned request is detached from the
// builder, so further builder calls cannot mutate it.
func (b *RequestBuilder) Build() *Request {
	req := *b.req
	req.path = append([]string(nil), b.req.path...)
	req.query = append([]queryPair(nil), b.req.query...)
	if b.req.headers != nil {
		req.headers = make(map[string]string, len(b.req.headers))
		for k, v := range b.req.headers {
			req.headers[k] = v
		}
	}
	if b.req.fields != nil {
		req.fields = make(map[string]interface{}, len(b.req.fields))
		for k, v := range b.req.fields {
			req.fields[k] = v
		}
	}
	return &req
}

// Route returns the request's route.
func (r *Request) Route() Route {
	return r.route
}

// RequiresAuth reports whether the request needs a bearer token.
func (r *Request) RequiresAuth() bool {
	return r.requiresAuth
}

// URL builds the concrete URL for this request:
// {base}/{template}/{seg1}/{seg2}...?key=value&key2=value2
func (r *Request) URL(base string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "/"))
	sb.WriteByte('/')
	sb.WriteString(r.route.Template())

	for _, seg := range r.path {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(seg))
	}

	for i, q := range r.query {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(q.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(q.value))
	}

	return sb.String()
}

// String renders the request for log output. Body fields are omitted so
// message content never lands in plain logs.
func (r *Request) String() string {
	return r.URL("")
}
