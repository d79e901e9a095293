package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"video-content-factory/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ScriptGenerator = (*OpenAIScriptGenerator)(nil)

// promptTokenBudget caps how many tokens of style context go into the
// prompt before we start trimming.
const promptTokenBudget = 3000

// OpenAIScriptGenerator writes short-form scripts via the Chat
// Completions API, asking for a structured JSON object.
type OpenAIScriptGenerator struct {
	apiKey string
	base   string
	model  string
	client *http.Client
	enc    *tiktoken.Tiktoken
}

func NewOpenAIScriptGenerator(apiKey, base, model string) (*OpenAIScriptGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &OpenAIScriptGenerator{
		apiKey: apiKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
		enc:    enc,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *OpenAIScriptGenerator) GenerateScript(ctx context.Context, topic string, style adapter.StyleConfig) (*adapter.Script, error) {
	system := g.fitBudget(systemPrompt(style))
	user := fmt.Sprintf("Write a script about: %s", topic)

	reqBody := struct {
		Model          string        `json:"model"`
		Messages       []chatMessage `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}{Model: g.model, Messages: []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}}
	reqBody.ResponseFormat.Type = "json_object"

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message.Content == "" {
		return nil, errors.New("no choice content")
	}
	return parseScript(payload.Choices[0].Message.Content)
}

// fitBudget trims the prompt down to the token budget, cutting from the
// end so the core instructions survive.
func (g *OpenAIScriptGenerator) fitBudget(prompt string) string {
	tokens := g.enc.Encode(prompt, nil, nil)
	if len(tokens) <= promptTokenBudget {
		return prompt
	}
	return g.enc.Decode(tokens[:promptTokenBudget])
}

func systemPrompt(style adapter.StyleConfig) string {
	var sb strings.Builder
	sb.WriteString("You write scripts for short vertical videos. ")
	sb.WriteString(`Reply with a JSON object {"hook":..., "body":..., "cta":...}. `)
	if style.Niche != "" {
		fmt.Fprintf(&sb, "Niche: %s. ", style.Niche)
	}
	if style.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s. ", style.Tone)
	}
	if style.Language != "" {
		fmt.Fprintf(&sb, "Language: %s. ", style.Language)
	}
	if style.MaxWords > 0 {
		fmt.Fprintf(&sb, "Keep the whole script under %d words. ", style.MaxWords)
	}
	return sb.String()
}

// parseScript decodes the model's JSON reply, tolerating code fences.
func parseScript(raw string) (*adapter.Script, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s adapter.Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse script json: %w", err)
	}
	if s.Hook == "" && s.Body == "" {
		return nil, errors.New("script reply missing hook and body")
	}
	s.FullText = strings.TrimSpace(strings.Join([]string{s.Hook, s.Body, s.CTA}, "\n\n"))
	return &s, nil
}
