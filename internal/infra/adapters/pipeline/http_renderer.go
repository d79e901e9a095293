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

	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.VideoRenderer = (*HTTPRenderer)(nil)

// HTTPRenderer delegates compositing to the render service, which
// shares the media volume and replies with final file paths. Backend
// fallback (templated vs generative scenes) happens inside the service.
type HTTPRenderer struct {
	base   string
	client *http.Client
}

func NewHTTPRenderer(base string) (*HTTPRenderer, error) {
	if base == "" {
		return nil, errors.New("renderer url empty")
	}
	return &HTTPRenderer{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Minute},
	}, nil
}

func (r *HTTPRenderer) RenderVideo(ctx context.Context, req adapter.RenderRequest) (*adapter.RenderResult, error) {
	b, _ := json.Marshal(req)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/render", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("renderer http %d", resp.StatusCode)
	}

	var payload struct {
		VideoPath     string `json:"video_path"`
		ThumbnailPath string `json:"thumbnail_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.VideoPath == "" {
		return nil, errors.New("renderer returned no video path")
	}
	return &adapter.RenderResult{
		VideoPath:     payload.VideoPath,
		ThumbnailPath: payload.ThumbnailPath,
	}, nil
}
