package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, answer string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return newChoiceServer(t, status, map[string]interface{}{
		"index":         0,
		"finish_reason": "stop",
		"message":       map[string]interface{}{"role": "assistant", "content": answer},
	}, seen)
}

func newChoiceServer(t *testing.T, status int, choice map[string]interface{}, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]interface{}{choice},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateFromImageSendsDataURL(t *testing.T) {
	var seen chatRequest
	srv := newServer(t, http.StatusOK, " transcribed ", &seen)

	client, err := NewOpenAIClient("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	text, err := client.GenerateFromImage(context.Background(), "Transcribe:", models.ImagePart{MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, " transcribed ", text)

	assert.Equal(t, "test-model", seen.Model)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "user", seen.Messages[0].Role)
	require.Len(t, seen.Messages[0].Content, 2)
	assert.Equal(t, "Transcribe:", seen.Messages[0].Content[0].Text)
	assert.Equal(t, "image_url", seen.Messages[0].Content[1].Type)
	assert.Equal(t, "data:image/png;base64,AQID", seen.Messages[0].Content[1].ImageURL.URL)
}

func TestGenerateFromTextSendsTwoParts(t *testing.T) {
	var seen chatRequest
	srv := newServer(t, http.StatusOK, "restructured", &seen)

	client, err := NewOpenAIClient("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	text, err := client.GenerateFromText(context.Background(), "Restructure:", "merged text")
	require.NoError(t, err)
	assert.Equal(t, "restructured", text)
	require.Len(t, seen.Messages[0].Content, 2)
	assert.Equal(t, "merged text", seen.Messages[0].Content[1].Text)
}

func TestRefusalSignals(t *testing.T) {
	tests := []struct {
		name   string
		choice map[string]interface{}
	}{
		{
			name: "refusal message",
			choice: map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": "", "refusal": "I can't help with that."},
			},
		},
		{
			name: "content filter",
			choice: map[string]interface{}{
				"index":         0,
				"finish_reason": "content_filter",
				"message":       map[string]interface{}{"role": "assistant", "content": "partial"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChoiceServer(t, http.StatusOK, tt.choice, nil)
			client, err := NewOpenAIClient("test-key", srv.URL, "test-model")
			require.NoError(t, err)

			_, err = client.GenerateFromText(context.Background(), "Restructure:", "text")
			assert.ErrorIs(t, err, models.ErrRefused)
		})
	}
}

func TestRefusalWordingInContentIsReturned(t *testing.T) {
	srv := newServer(t, http.StatusOK, "Dear Sir, I am unable to attend the meeting.", nil)
	client, err := NewOpenAIClient("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	text, err := client.GenerateFromText(context.Background(), "Restructure:", "text")
	require.NoError(t, err)
	assert.Equal(t, "Dear Sir, I am unable to attend the meeting.", text)
}

func TestServiceErrorIsReturned(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, "", nil)

	client, err := NewOpenAIClient("test-key", srv.URL, "test-model")
	require.NoError(t, err)

	_, err = client.GenerateFromText(context.Background(), "Restructure:", "text")
	assert.Error(t, err)
}

func TestNewOpenAIClientValidates(t *testing.T) {
	_, err := NewOpenAIClient("", "", "model")
	assert.Error(t, err)
}
