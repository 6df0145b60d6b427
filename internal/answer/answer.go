// Package answer implements the Answer Path (§4.H): search, summarise, and
// split the result into a spoken form and a display form carrying a
// trailing source marker the TTS sink must never speak.
package answer

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
)

// Answer is routed to OSD and TTS in parallel (§4.H step 5).
type Answer struct {
	SpokenText  string
	DisplayText string
}

// sourceMarkerPrefix begins the trailing line display_text carries and
// spoken_text never does (§4.H step 4-5, §8 Invariant 5).
const sourceMarkerPrefix = ":source: "

// Config mirrors §6's search.* settings.
type Config struct {
	SearchEnabled    bool
	SearchTimeout    time.Duration
	SearchCountry    string
	SearchCredential string
}

// Path answers informational questions.
type Path struct {
	cfg    Config
	search SearchClient
	api    openai.Client
	model  openai.ChatModel
}

// New builds an Answer Path. search may be nil; in that case (or when
// cfg.SearchEnabled is false, or cfg.SearchCredential is empty) Answer
// always takes the "I don't know" short-circuit (§4.H step 1).
func New(cfg Config, search SearchClient, api openai.Client, model string) *Path {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &Path{cfg: cfg, search: search, api: api, model: openai.ChatModel(model)}
}

// Answer resolves a Question transcript into spoken and display text.
func (p *Path) Answer(ctx context.Context, question string) Answer {
	if !p.cfg.SearchEnabled || p.cfg.SearchCredential == "" || p.search == nil {
		return dontKnowAnswer(question)
	}

	searchCtx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	snippets, err := p.search.Search(searchCtx, question, p.cfg.SearchCountry)
	if err != nil || len(snippets) == 0 {
		return dontKnowAnswer(question)
	}

	summary, err := p.summarize(ctx, question, snippets)
	if err != nil {
		return dontKnowAnswer(question)
	}

	return Answer{
		SpokenText:  summary,
		DisplayText: summary + "\n" + sourceMarkerPrefix + fmt.Sprintf("%s/%s", p.search.Name(), "llm"),
	}
}

func dontKnowAnswer(question string) Answer {
	text := "I don't know the answer to that."
	return Answer{SpokenText: text, DisplayText: text}
}

// summarize sends the search snippets and original question to the LLM
// under a fixed single-paragraph-factual-answer instruction (§4.H step 3).
func (p *Path) summarize(ctx context.Context, question string, snippets []Snippet) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	prompt := buildSummaryPrompt(question, snippets)

	resp, err := p.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Answer the question in a single factual paragraph, using only the provided snippets. Do not mention the snippets explicitly."),
			openai.UserMessage(prompt),
		},
		Model: p.model,
	})
	if err != nil {
		return "", fmt.Errorf("answer: summarize: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("answer: summarize: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

func buildSummaryPrompt(question string, snippets []Snippet) string {
	out := "Question: " + question + "\n\nSnippets:\n"
	for _, s := range snippets {
		out += "- " + s.Text + " (" + s.URL + ")\n"
	}
	return out
}
