package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallAwait(t *testing.T) {
	call := newCall()
	go call.settle(NewResponse(http.StatusOK, nil, nil), nil)

	res, err := call.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestCallSettlesAtMostOnce(t *testing.T) {
	call := newCall()
	call.settle(NewResponse(http.StatusOK, nil, nil), nil)
	call.settle(nil, errors.New("late failure"))

	res, err := call.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestCallThenAfterSettle(t *testing.T) {
	call := resolvedCall(nil, errors.New("rejected"))

	var got error
	call.Then(func(res *Response, err error) {
		got = err
	})
	assert.EqualError(t, got, "rejected")
}

func TestCallThenBeforeSettle(t *testing.T) {
	call := newCall()
	done := make(chan *Response, 1)
	call.Then(func(res *Response, err error) {
		done <- res
	})

	call.settle(NewResponse(http.StatusAccepted, nil, nil), nil)

	select {
	case res := <-done:
		assert.Equal(t, http.StatusAccepted, res.Status)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestCallAwaitRespectsContext(t *testing.T) {
	call := newCall()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := call.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
