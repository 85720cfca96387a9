package perplexity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const footprintAnswer = `{"id":"fp-1","choices":[{"index":0,"message":{"role":"assistant","content":"{\"followers\":1200,\"linkedin\":\"https://www.linkedin.com/company/boulangerie-martin\"}"}}],"citations":["https://www.linkedin.com/company/boulangerie-martin"],"usage":{"prompt_tokens":42,"completion_tokens":18}}`

func footprintRequest() ChatCompletionRequest {
	return ChatCompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "Return JSON only."},
			{Role: "user", Content: "Boulangerie Martin, Lyon: professional network page and follower count"},
		},
	}
}

func TestChatCompletion_FootprintLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(footprintAnswer))
	}))
	defer srv.Close()

	resp, err := NewClient("pplx-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), footprintRequest())
	require.NoError(t, err)
	assert.Equal(t, "fp-1", resp.ID)
	assert.Contains(t, resp.Content(), `"followers":1200`)
	assert.Equal(t, []string{"https://www.linkedin.com/company/boulangerie-martin"}, resp.Citations)
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 18, resp.Usage.CompletionTokens)

	var empty *ChatCompletionResponse
	assert.Empty(t, empty.Content())
	assert.Empty(t, (&ChatCompletionResponse{}).Content())
}

func TestChatCompletion_RequestShape(t *testing.T) {
	temp := 0.1
	maxTokens := 300

	tests := []struct {
		name      string
		opts      []Option
		mutate    func(*ChatCompletionRequest)
		wantModel string
		check     func(t *testing.T, raw map[string]any)
	}{
		{
			name:      "default model, sampling fields omitted",
			wantModel: defaultModel,
			check: func(t *testing.T, raw map[string]any) {
				_, hasTemp := raw["temperature"]
				_, hasMax := raw["max_tokens"]
				assert.False(t, hasTemp)
				assert.False(t, hasMax)
			},
		},
		{
			name:      "client model option",
			opts:      []Option{WithModel("sonar")},
			wantModel: "sonar",
		},
		{
			name:      "request model wins over client default",
			opts:      []Option{WithModel("sonar")},
			mutate:    func(r *ChatCompletionRequest) { r.Model = "sonar-reasoning" },
			wantModel: "sonar-reasoning",
		},
		{
			name: "sampling fields sent when set",
			mutate: func(r *ChatCompletionRequest) {
				r.Temperature = &temp
				r.MaxTokens = &maxTokens
			},
			wantModel: defaultModel,
			check: func(t *testing.T, raw map[string]any) {
				assert.InDelta(t, 0.1, raw["temperature"], 0.001)
				assert.EqualValues(t, 300, raw["max_tokens"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				var raw map[string]any
				require.NoError(t, json.Unmarshal(body, &raw))
				assert.Equal(t, tt.wantModel, raw["model"])
				if tt.check != nil {
					tt.check(t, raw)
				}
				_, _ = w.Write([]byte(footprintAnswer))
			}))
			defer srv.Close()

			req := footprintRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			client := NewClient("pplx-key", append([]Option{WithBaseURL(srv.URL)}, tt.opts...)...)
			_, err := client.ChatCompletion(context.Background(), req)
			require.NoError(t, err)
		})
	}
}

func TestChatCompletion_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		failStatus   int
		wantErr      string
		wantAttempts int32
	}{
		{"recovers after two 5xx", 2, http.StatusBadGateway, "", 3},
		{"recovers after a 429", 1, http.StatusTooManyRequests, "", 2},
		{"no retry on 400", 99, http.StatusBadRequest, "400", 1},
		{"forbidden body is reported", 99, http.StatusForbidden, "invalid api key", 1},
		{"gives up after max attempts", 99, http.StatusInternalServerError, "500", maxRetryAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
					return
				}
				_, _ = w.Write([]byte(footprintAnswer))
			}))
			defer srv.Close()

			resp, err := NewClient("pplx-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), footprintRequest())
			assert.Equal(t, tt.wantAttempts, attempts.Load())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "fp-1", resp.ID)
		})
	}
}

func TestChatCompletion_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer srv.Close()

	_, err := NewClient("pplx-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), footprintRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestChatCompletion_Cancellation(t *testing.T) {
	t.Run("before the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(footprintAnswer))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient("pplx-key", WithBaseURL(srv.URL)).ChatCompletion(ctx, footprintRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during backoff", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		_, err := NewClient("pplx-key", WithBaseURL(srv.URL)).ChatCompletion(ctx, footprintRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, attempts.Load(), int32(maxRetryAttempts))
	})
}

func TestNewClient_Options(t *testing.T) {
	t.Parallel()

	hc := NewClient("pplx-key").(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultModel, hc.model)
	assert.NotNil(t, hc.http.Transport)
	assert.Equal(t, maxRetryAttempts, hc.retry.MaxAttempts)

	custom := &http.Client{Timeout: time.Second}
	hc = NewClient("pplx-key", WithHTTPClient(custom), WithBaseURL("http://local")).(*httpClient)
	assert.Same(t, custom, hc.http)
	assert.Equal(t, "http://local", hc.baseURL)
}
