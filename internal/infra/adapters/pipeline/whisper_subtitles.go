package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.SubtitleTranscriber = (*WhisperTranscriber)(nil)

// WhisperTranscriber produces an SRT subtitle file from narration audio
// via the transcriptions endpoint.
type WhisperTranscriber struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewWhisperTranscriber(apiKey, base, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperTranscriber{
		apiKey: apiKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

func (w *WhisperTranscriber) TranscribeSubtitles(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", audio.Name())
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "srt")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/audio/transcriptions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("whisper http %d", resp.StatusCode)
	}

	srt, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(audioPath, ".mp3") + ".srt"
	if err := os.WriteFile(out, srt, 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	return out, nil
}
