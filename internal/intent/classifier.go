package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

// rawProposal is the JSON shape the classifier is instructed to emit. It is
// parsed into a Proposal and treated as untrusted data by the router —
// nothing here is executed directly (§4.E, §9).
type rawProposal struct {
	CommandID  string         `json:"command_id"`
	Bindings   map[string]any `json:"bindings"`
	Confidence float32        `json:"confidence"`
	IsQuestion bool           `json:"is_question"`
}

// LLMClassifier asks a chat-completion model to classify a transcript
// against the allow-listed candidates, folding in the same JSON-only
// contract the teacher's NLU prompt used.
type LLMClassifier struct {
	api     openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// NewLLMClassifier builds a classifier bound to api (already configured
// with the provider's base URL, credential, and SOCKS-proxied client).
func NewLLMClassifier(api openai.Client, model string, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &LLMClassifier{api: api, model: openai.ChatModel(model), timeout: timeout}
}

const systemPrompt = `You are the intent classifier for a voice command daemon.
Your ONLY job is to convert the user's transcript into minimal structured JSON.

GENERAL RULES:
1. Do NOT converse. Do NOT answer the question. Do NOT add explanations.
2. Output ONLY JSON. No markdown.
3. Never invent a command_id that isn't in the candidate list below.
4. If the transcript is an informational question rather than a command,
   set "is_question": true and leave "command_id" empty.
5. "bindings" maps each of the command's declared parameter names to a
   value extracted from the transcript, shaped to match that parameter's
   kind: a whole number for "int", a number for "float", one of the listed
   options verbatim for "enum", or text for "string". Omit a parameter you
   cannot confidently fill.

OUTPUT FORMAT:
{"command_id": "<id or empty>", "bindings": {"<name>": <value>, ...}, "confidence": <0..1>, "is_question": <bool>}
`

// Classify implements Router's Classifier interface.
func (c *LLMClassifier) Classify(transcript string, candidates []Descriptor) (Proposal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.SystemMessage(candidateList(candidates)),
			openai.UserMessage(transcript),
		},
		Model: c.model,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("intent: classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Proposal{}, fmt.Errorf("intent: classify: no choices returned")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Proposal{}, fmt.Errorf("intent: classify: empty message content")
	}

	var raw rawProposal
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		slog.Debug("intent classifier returned non-JSON content", "content", content)
		return Proposal{}, fmt.Errorf("intent: classify: unmarshal proposal: %w", err)
	}

	return Proposal{
		CommandID:  raw.CommandID,
		Bindings:   raw.Bindings,
		Confidence: raw.Confidence,
		IsQuestion: raw.IsQuestion,
		Text:       transcript,
	}, nil
}

func candidateList(candidates []Descriptor) string {
	var b strings.Builder
	b.WriteString("CANDIDATE COMMANDS:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id=%q description=%q parameters=[", c.ID, c.Description)
		for i, p := range c.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			if p.Kind == "enum" {
				fmt.Fprintf(&b, "%s:enum%v", p.Name, p.Enum)
			} else {
				fmt.Fprintf(&b, "%s:%s", p.Name, p.Kind)
			}
		}
		b.WriteString("]\n")
	}
	return b.String()
}
