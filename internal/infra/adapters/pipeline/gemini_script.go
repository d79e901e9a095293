package pipeline

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.ScriptGenerator = (*GeminiScriptGenerator)(nil)

// GeminiScriptGenerator writes scripts via the official Gemini SDK.
type GeminiScriptGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiScriptGenerator(ctx context.Context, apiKey, baseURL, model string) (*GeminiScriptGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiScriptGenerator{client: c, model: model}, nil
}

func (g *GeminiScriptGenerator) GenerateScript(ctx context.Context, topic string, style adapter.StyleConfig) (*adapter.Script, error) {
	chat, err := g.client.Chats.Create(
		ctx,
		g.model,
		&genai.GenerateContentConfig{
			MaxOutputTokens: 1024,
		},
		[]*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: systemPrompt(style)}},
		}},
	)
	if err != nil {
		return nil, err
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: fmt.Sprintf("Write a script about: %s", topic)})
	if err != nil {
		return nil, err
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}
	if text == "" {
		return nil, errors.New("gemini: empty reply")
	}
	return parseScript(text)
}
