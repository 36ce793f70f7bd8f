package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptchat/models"
)

func TestChatRelay_SendsTrimmedPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"bot_response":"  Hi there!  ","session_id":"abc"}`))
	}))
	defer srv.Close()

	relay := NewChatRelay(srv.URL, time.Second)
	rc := RelayContext{
		ScenarioIndex: 2,
		Answers:       []models.AnswerRecord{{StepKey: "0", SelectedOptionText: "Weekly", ScoreDelta: 2}},
		History:       []models.ChatMessage{{ID: "m1", Role: models.RoleAssistant, Text: "Welcome"}},
	}

	reply, err := relay.Send(context.Background(), models.PersonaDoctor, "   Hello   ", 7, rc)
	require.NoError(t, err)
	assert.Equal(t, "  Hi there!  ", reply)

	assert.Equal(t, "Hello", got["message"])
	assert.Equal(t, "doctor", got["chatbot_type"])
	assert.EqualValues(t, 7, got["risk_score"])
	ctxPayload := got["conversation_context"].(map[string]interface{})
	assert.EqualValues(t, 2, ctxPayload["party_scenario"])
	assert.Len(t, ctxPayload["answers"], 1)
	assert.Len(t, ctxPayload["history"], 1)
}

func TestChatRelay_OmitsScenarioZero(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"bot_response":"ok"}`))
	}))
	defer srv.Close()

	_, err := NewChatRelay(srv.URL, time.Second).Send(context.Background(), models.PersonaAI, "hi", 0, RelayContext{})
	require.NoError(t, err)

	ctxPayload := got["conversation_context"].(map[string]interface{})
	assert.NotContains(t, ctxPayload, "party_scenario")
}

func TestChatRelay_EmptyMessageMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	relay := NewChatRelay(srv.URL, time.Second)
	for _, text := range []string{"", "   ", "\n\t "} {
		reply, err := relay.Send(context.Background(), models.PersonaAI, text, 0, RelayContext{})
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, reply)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestChatRelay_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "error payload on 200", status: http.StatusOK, body: `{"error":"quota exceeded"}`, want: "Error: quota exceeded"},
		{name: "error payload on 503", status: http.StatusServiceUnavailable, body: `{"error":"model offline"}`, want: "Error: model offline"},
		{name: "non-json 500", status: http.StatusInternalServerError, body: `boom`, want: "Error: 500 Internal Server Error"},
		{name: "empty 200", status: http.StatusOK, body: `{}`, want: MalformedReply},
		{name: "garbage 200", status: http.StatusOK, body: `<html>`, want: MalformedReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			reply, err := NewChatRelay(srv.URL, time.Second).Send(context.Background(), models.PersonaStudent, "hi", 3, RelayContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestChatRelay_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	reply, err := NewChatRelay(url, time.Second).Send(context.Background(), models.PersonaAI, "hello", 0, RelayContext{})
	require.NoError(t, err)
	assert.Equal(t, TransportFailureReply, reply)
}
