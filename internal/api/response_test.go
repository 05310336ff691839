package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseBodyField(t *testing.T) {
	res := NewResponse(http.StatusOK, nil, []byte(`{"target":"chat_message","nested":{"value":5}}`))

	assert.Equal(t, "chat_message", res.BodyString("target"))
	assert.Equal(t, json.Number("5"), res.BodyField("nested.value"))
	assert.Nil(t, res.BodyField("missing"))
	assert.Nil(t, res.BodyField("nested.missing"))
	assert.Nil(t, res.BodyField("target.not_an_object"))
}

func TestResponseBodyFieldWithTransform(t *testing.T) {
	res := NewResponse(http.StatusOK, nil, []byte(`{"channel":9007199254740993,"timestamp":"2024-05-01T12:00:00Z"}`))

	ts := res.BodyFieldWith("timestamp", ParseTimestamp)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), ts)

	// Absent fields skip the transform entirely.
	assert.Nil(t, res.BodyFieldWith("missing", ParseTimestamp))
}

func TestUnsignedString(t *testing.T) {
	assert.Equal(t, "42", UnsignedString(float64(42)))
	assert.Equal(t, "42", UnsignedString(json.Number("42")))
	assert.Equal(t, "42", UnsignedString("42"))

	// Negative wire values map onto their unsigned representation.
	assert.Equal(t, "18446744073709551615", UnsignedString(float64(-1)))
	assert.Equal(t, "18446744073709551615", UnsignedString(json.Number("-1")))

	// Ids beyond 2^53 stay exact on the json.Number path.
	assert.Equal(t, "9007199254740993", UnsignedString(json.Number("9007199254740993")))
	assert.Equal(t, "18446744073709551615", UnsignedString(json.Number("18446744073709551615")))
}

func TestUnsignedStringFromDecodedBody(t *testing.T) {
	res := NewResponse(http.StatusOK, nil, []byte(`{"channel":9007199254740993}`))
	assert.Equal(t, "9007199254740993", res.BodyFieldWith("channel", UnsignedString))
}

func TestResponseIsError(t *testing.T) {
	assert.False(t, NewResponse(http.StatusOK, nil, nil).IsError())
	assert.False(t, NewResponse(http.StatusNoContent, nil, nil).IsError())
	assert.True(t, NewResponse(http.StatusBadRequest, nil, nil).IsError())
	assert.True(t, NewResponse(http.StatusInternalServerError, nil, nil).IsError())
	assert.True(t, ClientErrorResponse().IsError())
}

func TestResponseErrorDescription(t *testing.T) {
	res := NewResponse(http.StatusConflict, nil, []byte(`{"description":"name already taken"}`))
	assert.Equal(t, "name already taken", res.ErrorDescription())

	res = NewResponse(http.StatusTeapot, nil, nil)
	assert.Equal(t, "backend returned status 418", res.ErrorDescription())

	assert.Equal(t, "request failed on the client side", ClientErrorResponse().ErrorDescription())
}

func TestResponseBodyList(t *testing.T) {
	res := NewResponse(http.StatusOK, nil, []byte(`[{"content":"a"},{"content":"b"}]`))
	list := res.BodyList()
	assert.Len(t, list, 2)
	assert.Equal(t, "a", list[0]["content"])

	// An object body is not a list.
	res = NewResponse(http.StatusOK, nil, []byte(`{"content":"a"}`))
	assert.Nil(t, res.BodyList())
}

func TestResponseMalformedBody(t *testing.T) {
	res := NewResponse(http.StatusOK, nil, []byte(`not json`))
	assert.Nil(t, res.Body())
	assert.Equal(t, "", res.BodyString("anything"))
}
