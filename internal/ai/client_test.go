package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/config"
)

func chatServer(t *testing.T, handler func(req map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		status, content := handler(req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
		} else {
			fmt.Fprintf(w, `{"error":{"message":%q}}`, content)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, maxPromptChars int) *Client {
	t.Helper()
	client, err := NewClient(&config.OpenAIConfig{
		BaseURL:        baseURL,
		Model:          "gpt-4o-mini",
		MaxPromptChars: maxPromptChars,
		TimeoutSeconds: 5,
		APIKey:         "test-key",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{BaseURL: "http://localhost", Model: "m"})
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		return http.StatusOK, "- bullet one\n- bullet two"
	})
	client := newTestClient(t, srv.URL, 0)

	summary, err := client.Summarize(context.Background(), "Paris is the capital of France.")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "- bullet one\n- bullet two" {
		t.Errorf("summary = %q", summary)
	}
}

func TestSummarizeEmptyResponse(t *testing.T) {
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		return http.StatusOK, "   "
	})
	client := newTestClient(t, srv.URL, 0)

	_, err := client.Summarize(context.Background(), "text")
	if !apperr.Is(err, apperr.KindGeneration) {
		t.Errorf("expected generation error for empty summary, got %v", err)
	}
}

func TestSummarizeUpstreamError(t *testing.T) {
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		return http.StatusTooManyRequests, "rate limited"
	})
	client := newTestClient(t, srv.URL, 0)

	_, err := client.Summarize(context.Background(), "text")
	if !apperr.Is(err, apperr.KindGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("upstream detail lost: %v", err)
	}
}

func TestSummarizeUpstreamErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html><body>502 Bad Gateway</body></html>")
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv.URL, 0)

	_, err := client.Summarize(context.Background(), "text")
	if !apperr.Is(err, apperr.KindGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "generation service returned 502") {
		t.Errorf("status code lost for non-JSON error body: %v", err)
	}
	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Errorf("body snippet lost for non-JSON error body: %v", err)
	}
}

func TestPromptTruncation(t *testing.T) {
	var seenPrompt string
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		messages := req["messages"].([]interface{})
		seenPrompt = messages[0].(map[string]interface{})["content"].(string)
		return http.StatusOK, "ok"
	})
	client := newTestClient(t, srv.URL, 50)

	long := strings.Repeat("a", 500)
	if _, err := client.Summarize(context.Background(), long); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if strings.Count(seenPrompt, "a") != 50 {
		t.Errorf("prompt not capped at 50 chars: %d a's sent", strings.Count(seenPrompt, "a"))
	}
}

func TestGenerateFlashcards(t *testing.T) {
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		if req["response_format"] == nil {
			t.Error("flashcard request should ask for json_object output")
		}
		return http.StatusOK, `{"cards":[{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}]}`
	})
	client := newTestClient(t, srv.URL, 0)

	cards, err := client.GenerateFlashcards(context.Background(), "some study text")
	if err != nil {
		t.Fatalf("GenerateFlashcards failed: %v", err)
	}
	if len(cards) != 2 || cards[0].Question != "Q1" || cards[1].Answer != "A2" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestGenerateFlashcardsMalformed(t *testing.T) {
	srv := chatServer(t, func(req map[string]interface{}) (int, string) {
		return http.StatusOK, `{"note":"no cards here"}`
	})
	client := newTestClient(t, srv.URL, 0)

	_, err := client.GenerateFlashcards(context.Background(), "text")
	if !apperr.Is(err, apperr.KindGeneration) {
		t.Errorf("expected generation error for malformed output, got %v", err)
	}
}

func TestParseCardPairs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"question":"Q","answer":"A"}]`, 1, false},
		{"cards wrapper", `{"cards":[{"question":"Q","answer":"A"},{"question":"Q2","answer":"A2"}]}`, 2, false},
		{"flashcards wrapper", `{"flashcards":[{"question":"Q","answer":"A"}]}`, 1, false},
		{"empty cards array", `{"cards":[]}`, 0, false},
		{"no array at all", `{"summary":"text"}`, 0, true},
		{"empty input", ``, 0, true},
		{"not json", `sure, here are your flashcards`, 0, true},
		{"empty question", `[{"question":"","answer":"A"}]`, 0, true},
		{"empty answer", `[{"question":"Q","answer":"  "}]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := ParseCardPairs([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", cards)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCardPairs failed: %v", err)
			}
			if len(cards) != tt.want {
				t.Errorf("got %d cards, want %d", len(cards), tt.want)
			}
		})
	}
}

func TestMockGeneratorDeterministic(t *testing.T) {
	gen := NewMockGenerator()
	ctx := context.Background()
	text := "Paris is the capital of France. The Seine flows through it."

	first, err := gen.Summarize(ctx, text)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	second, _ := gen.Summarize(ctx, text)
	if first != second {
		t.Error("mock summary is not deterministic")
	}

	cards, err := gen.GenerateFlashcards(ctx, text)
	if err != nil {
		t.Fatalf("GenerateFlashcards failed: %v", err)
	}
	if len(cards) == 0 || len(cards) > 3 {
		t.Errorf("expected 1-3 cards, got %d", len(cards))
	}
}
