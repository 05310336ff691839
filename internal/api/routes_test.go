package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestURL(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "bare route",
			req:  RouteFriends.Builder().Build(),
			want: "https://backend.example/friends",
		},
		{
			name: "path segments in order",
			req:  RouteChannel.Builder().Path("42").Path("messages").Build(),
			want: "https://backend.example/channel/42/messages",
		},
		{
			name: "single query parameter",
			req:  RouteChannel.Builder().Path("42").Path("messages").Query("before", "123").Build(),
			want: "https://backend.example/channel/42/messages?before=123",
		},
		{
			name: "query parameters joined by ampersand",
			req:  RouteUser.Builder().Query("a", "1").Query("b", "2").Build(),
			want: "https://backend.example/user?a=1&b=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.URL("https://backend.example"))
		})
	}
}

func TestRequestURLTrimsTrailingSlash(t *testing.T) {
	req := RouteUser.Builder().Path("abc").Build()
	assert.Equal(t, "https://backend.example/user/abc", req.URL("https://backend.example/"))
}

func TestBuildDetachesFromBuilder(t *testing.T) {
	builder := RouteChannel.Builder().
		Path("42").
		Query("before", "1").
		Field("content", "hi").
		Header("X-Extra", "a")
	req := builder.Build()

	// Mutating the builder afterwards must not leak into the built request.
	builder.Path("messages").Query("limit", "5").Field("content", "changed").Header("X-Extra", "b")

	assert.Equal(t, "https://backend.example/channel/42?before=1", req.URL("https://backend.example"))
	assert.Equal(t, "hi", req.fields["content"])
	assert.Equal(t, "a", req.headers["X-Extra"])
}

func TestRouteAuthFlags(t *testing.T) {
	assert.False(t, RouteAuthenticate.RequiresAuth())
	assert.True(t, RouteUser.RequiresAuth())
	assert.True(t, RouteChannel.RequiresAuth())
	assert.True(t, RouteStatusUpdate.RequiresAuth())
}

func TestRequestQueryValuesAreEscaped(t *testing.T) {
	req := RouteChannel.Builder().Path("42").Query("before", "2024-01-01T00:00:00Z").Build()
	assert.Equal(t,
		"https://backend.example/channel/42?before=2024-01-01T00%3A00%3A00Z",
		req.URL("https://backend.example"))
}
