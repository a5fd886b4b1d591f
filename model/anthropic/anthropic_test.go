package anthropic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/roundtable/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client, func(o *Options) {
		o.Model = "claude-test"
		o.MaxTokens = 256
	})
}

func TestModel_NonStreaming(t *testing.T) {
	var body []byte
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Trains, "},{"type":"text","text":"not cars."}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":20,"output_tokens":4}}`)
	})

	resp, err := model.Collect(context.Background(), m, model.UserRequest("be brief", "Transport?"))
	require.NoError(t, err)
	assert.Equal(t, "Trains, not cars.", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 24, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-test", gjson.GetBytes(body, "model").String())
	assert.Equal(t, int64(256), gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, "be brief", gjson.GetBytes(body, "system.0.text").String())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "Transport?", gjson.GetBytes(body, "messages.0.content.0.text").String())
}

func TestModel_Streaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []struct{ name, data string }{
			{"message_start", `{"type":"message_start","message":{"id":"msg_2","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":0}}}`},
			{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
			{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bikes "}}`},
			{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"win."}}`},
			{"content_block_stop", `{"type":"content_block_stop","index":0}`},
			{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`},
			{"message_stop", `{"type":"message_stop"}`},
		}
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	})

	req := model.UserRequest("", "go")
	req.Stream = true
	resp, err := model.Collect(context.Background(), m, req)
	require.NoError(t, err)
	assert.Equal(t, "Bikes win.", resp.Text)
}

func TestModel_APIError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := model.Collect(context.Background(), m, model.UserRequest("", "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
}

func TestModel_SkipsEmptyMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleUser, Text: "a"},
		{Role: model.RoleAssistant, Text: ""},
		{Role: model.RoleAssistant, Text: "b"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
}
