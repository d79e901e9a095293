package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.AudioSynthesizer = (*OpenAISpeechSynthesizer)(nil)

// OpenAISpeechSynthesizer renders narration audio with the speech API
// and writes the mp3 into the shared media directory.
type OpenAISpeechSynthesizer struct {
	apiKey   string
	base     string
	model    string
	mediaDir string
	client   *http.Client
}

func NewOpenAISpeechSynthesizer(apiKey, base, mediaDir string) (*OpenAISpeechSynthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if mediaDir == "" {
		mediaDir = os.TempDir()
	}
	return &OpenAISpeechSynthesizer{
		apiKey:   apiKey,
		base:     strings.TrimRight(base, "/"),
		model:    "tts-1",
		mediaDir: mediaDir,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (s *OpenAISpeechSynthesizer) SynthesizeAudio(ctx context.Context, text string, voice adapter.VoiceConfig) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty narration text")
	}
	voiceID := voice.VoiceID
	if voiceID == "" {
		voiceID = "alloy"
	}
	reqBody := struct {
		Model string  `json:"model"`
		Input string  `json:"input"`
		Voice string  `json:"voice"`
		Speed float64 `json:"speed,omitempty"`
	}{Model: s.model, Input: text, Voice: voiceID, Speed: voice.Speed}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/audio/speech", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai speech http %d", resp.StatusCode)
	}

	out := filepath.Join(s.mediaDir, fmt.Sprintf("narration_%d.mp3", time.Now().UnixNano()))
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return out, nil
}
