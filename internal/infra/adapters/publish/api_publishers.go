package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
)

var (
	_ adapter.PlatformPublisher = (*YouTubePublisher)(nil)
	_ adapter.PlatformPublisher = (*TikTokPublisher)(nil)
	_ adapter.PlatformPublisher = (*InstagramPublisher)(nil)
)

// uploadGateway talks to the platform upload proxy, which holds the
// OAuth exchanges and exposes one POST per platform. credentialRef
// names the stored credential the proxy should use.
type uploadGateway struct {
	base   string
	client *http.Client
}

func newUploadGateway(base string) (*uploadGateway, error) {
	if base == "" {
		return nil, errors.New("upload gateway url empty")
	}
	return &uploadGateway{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 20 * time.Minute},
	}, nil
}

func (g *uploadGateway) upload(ctx context.Context, platform model.Platform, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	video, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", video.Name())
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, video); err != nil {
		return nil, err
	}
	metaJSON, _ := json.Marshal(struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}{meta.Title, meta.Description, meta.Tags})
	_ = mw.WriteField("metadata", string(metaJSON))
	_ = mw.WriteField("credential_ref", credentialRef)
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/upload/%s", g.base, platform)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s upload http %d: %s", platform, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		PlatformID string `json:"platform_id"`
		URL        string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.PlatformID == "" {
		return nil, fmt.Errorf("%s upload returned no id", platform)
	}
	return &adapter.PublishOutcome{PlatformID: payload.PlatformID, URL: payload.URL}, nil
}

// YouTubePublisher publishes Shorts through the upload proxy.
type YouTubePublisher struct{ gw *uploadGateway }

func NewYouTubePublisher(gatewayURL string) (*YouTubePublisher, error) {
	gw, err := newUploadGateway(gatewayURL)
	if err != nil {
		return nil, err
	}
	return &YouTubePublisher{gw: gw}, nil
}

func (p *YouTubePublisher) Platform() model.Platform { return model.PlatformYouTube }

func (p *YouTubePublisher) Publish(ctx context.Context, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	return p.gw.upload(ctx, model.PlatformYouTube, videoPath, meta, credentialRef)
}

// TikTokPublisher publishes through the upload proxy.
type TikTokPublisher struct{ gw *uploadGateway }

func NewTikTokPublisher(gatewayURL string) (*TikTokPublisher, error) {
	gw, err := newUploadGateway(gatewayURL)
	if err != nil {
		return nil, err
	}
	return &TikTokPublisher{gw: gw}, nil
}

func (p *TikTokPublisher) Platform() model.Platform { return model.PlatformTikTok }

func (p *TikTokPublisher) Publish(ctx context.Context, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	return p.gw.upload(ctx, model.PlatformTikTok, videoPath, meta, credentialRef)
}

// InstagramPublisher publishes Reels through the upload proxy.
type InstagramPublisher struct{ gw *uploadGateway }

func NewInstagramPublisher(gatewayURL string) (*InstagramPublisher, error) {
	gw, err := newUploadGateway(gatewayURL)
	if err != nil {
		return nil, err
	}
	return &InstagramPublisher{gw: gw}, nil
}

func (p *InstagramPublisher) Platform() model.Platform { return model.PlatformInstagram }

func (p *InstagramPublisher) Publish(ctx context.Context, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	return p.gw.upload(ctx, model.PlatformInstagram, videoPath, meta, credentialRef)
}
