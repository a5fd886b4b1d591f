package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_NonStreaming(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hello", "world")

	resp, err := Collect(context.Background(), m, UserRequest("sys", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sys", reqs[0].System)
}

func TestCollect_Streaming(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("*", "chunked")

	req := UserRequest("", "anything")
	req.Stream = true
	resp, err := Collect(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "chunked", resp.Text)
}

func TestCollect_Error(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	boom := errors.New("boom")
	m.SetError(boom)

	_, err := Collect(context.Background(), m, UserRequest("", "x"))
	assert.ErrorIs(t, err, boom)

	m.SetError(nil)
	resp, err := Collect(context.Background(), m, UserRequest("", "x"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: x", resp.Text)
}

func TestCollect_NoMessages(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	_, err := Collect(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestInfo_String(t *testing.T) {
	assert.Equal(t, "ollama/llama3", Info{Name: "llama3", Provider: "ollama"}.String())
	assert.Equal(t, "llama3", Info{Name: "llama3"}.String())
}
