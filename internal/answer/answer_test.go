package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"
)

func TestAnswerSkipsSearchWhenDisabled(t *testing.T) {
	p := New(Config{SearchEnabled: false}, nil, openai.Client{}, "")

	a := p.Answer(context.Background(), "what is the capital of france")

	if strings.Contains(a.SpokenText, sourceMarkerPrefix) {
		t.Error("spoken text must never carry the source marker")
	}
	if a.SpokenText == "" {
		t.Error("expected a non-empty fallback answer")
	}
}

func TestAnswerSkipsSearchWhenCredentialAbsent(t *testing.T) {
	p := New(Config{SearchEnabled: true, SearchCredential: ""}, &stubSearch{}, openai.Client{}, "")

	a := p.Answer(context.Background(), "what time is it in tokyo")
	if strings.Contains(a.SpokenText, sourceMarkerPrefix) {
		t.Error("spoken text must never carry the source marker")
	}
}

type stubSearch struct{}

func (s *stubSearch) Search(ctx context.Context, query, country string) ([]Snippet, error) {
	return []Snippet{{Text: "Tokyo is nine hours ahead of UTC.", URL: "https://example.test"}}, nil
}

func (s *stubSearch) Name() string { return "stub" }
