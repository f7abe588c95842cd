package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botgpt/botgpt/internal/testutils"
	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/handlers"
	"github.com/botgpt/botgpt/pkg/models"
)

func TestSendMessage_ReturnsReplyAndBothMessages(t *testing.T) {
	fake := &testutils.FakeLLM{Reply: "It is sunny in Berlin."}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: "Weather in Berlin?"})
	req := httptest.NewRequest("POST", "/conversations/"+conversation.ID.String()+"/messages", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.SendMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "It is sunny in Berlin.", resp.Response)
	assert.Equal(t, models.MessageRoleUser, resp.UserMessage.Role)
	assert.Equal(t, "Weather in Berlin?", resp.UserMessage.Content)
	assert.Equal(t, models.MessageRoleAssistant, resp.AssistantMessage.Role)
	assert.Equal(t, "It is sunny in Berlin.", resp.AssistantMessage.Content)
}

func TestSendMessage_SecondTurnCarriesContext(t *testing.T) {
	fake := &testutils.FakeLLM{Reply: "ok"}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	send := func(message string) {
		payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: message})
		req := httptest.NewRequest("POST", "/conversations/"+conversation.ID.String()+"/messages", payload)
		w := httptest.NewRecorder()
		srv.Mux().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	send("My name is Ada.")
	send("What is my name?")

	count, err := st.CountMessages(conversation.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	// The second request contains the first turn as history
	last := fake.Requests[len(fake.Requests)-1]
	require.Len(t, last.Messages, 4)
	assert.Equal(t, "My name is Ada.", last.Messages[1].Content)
	assert.Equal(t, "ok", last.Messages[2].Content)
	assert.Equal(t, "What is my name?", last.Messages[3].Content)

	// The title is set on the first turn only
	reloaded, err := st.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "My name is Ada.", reloaded.Title)
}

func TestSendMessage_ConversationNotFound(t *testing.T) {
	fake := &testutils.FakeLLM{Reply: "ok"}
	srv, _ := testutils.GetTestMockServer(t, fake)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: "hello"})
	req := httptest.NewRequest("POST", "/conversations/"+uuid.New().String()+"/messages", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage_EmptyMessageRejected(t *testing.T) {
	fake := &testutils.FakeLLM{Reply: "ok"}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{})
	req := httptest.NewRequest("POST", "/conversations/"+conversation.ID.String()+"/messages", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessages_ChronologicalOrder(t *testing.T) {
	fake := &testutils.FakeLLM{Reply: "ok"}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleUser, "hello", 0)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleAssistant, "hi", 0)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/conversations/"+conversation.ID.String()+"/messages", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var messages []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestStreamMessage_EmitsTokensAndPersists(t *testing.T) {
	fake := &testutils.FakeLLM{StreamToks: []string{"It is ", "sunny."}}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: "Weather?"})
	req := httptest.NewRequest("POST", "/conversations/"+conversation.ID.String()+"/messages/stream", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"token":"It is "}`)
	assert.Contains(t, body, `data: {"token":"sunny."}`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))

	// The full turn is persisted once the stream ends
	messages, err := st.Messages(conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Weather?", messages[0].Content)
	assert.Equal(t, "It is sunny.", messages[1].Content)

	reloaded, err := st.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weather?", reloaded.Title)
}

func TestStreamMessage_FailurePersistsFallback(t *testing.T) {
	fake := &testutils.FakeLLM{StreamErr: assert.AnError}
	srv, st := testutils.GetTestMockServer(t, fake)

	user, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: "Weather?"})
	req := httptest.NewRequest("POST", "/conversations/"+conversation.ID.String()+"/messages/stream", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Contains(t, w.Body.String(), "data: [DONE]")

	messages, err := st.Messages(conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, chat.FallbackReply, messages[1].Content)
}

func TestStreamMessage_ConversationNotFound(t *testing.T) {
	fake := &testutils.FakeLLM{StreamToks: []string{"hi"}}
	srv, _ := testutils.GetTestMockServer(t, fake)

	payload := testutils.GetRequestPayload(handlers.SendMessageRequest{Message: "Weather?"})
	req := httptest.NewRequest("POST", "/conversations/"+uuid.New().String()+"/messages/stream", payload)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
