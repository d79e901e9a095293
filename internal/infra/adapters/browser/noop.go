package browser

import (
	"context"
	"fmt"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.BrowserDriver = (*NoopDriver)(nil)

// NoopDriver hands out sessions that always report a logged-in state
// and succeed, for dev mode.
type NoopDriver struct{}

func NewNoopDriver() *NoopDriver { return &NoopDriver{} }

func (d *NoopDriver) OpenSession(ctx context.Context, account *model.Account, platform model.Platform) (adapter.BrowserSession, error) {
	return &noopSession{platform: platform}, nil
}

type noopSession struct {
	platform model.Platform
	seq      int
}

func (s *noopSession) OpenLogin(ctx context.Context) error { return nil }

func (s *noopSession) VerifyLogin(ctx context.Context) (bool, error) { return true, nil }

func (s *noopSession) UploadAndFillMetadata(ctx context.Context, videoPath string, meta adapter.VideoMetadata) error {
	return ctx.Err()
}

func (s *noopSession) ConfirmPublish(ctx context.Context) (*adapter.PublishOutcome, error) {
	s.seq++
	id := fmt.Sprintf("noop-browser-%s-%d", s.platform, s.seq)
	return &adapter.PublishOutcome{
		PlatformID: id,
		URL:        fmt.Sprintf("https://%s.example.com/watch/%s", s.platform, id),
	}, nil
}

func (s *noopSession) Screenshot(ctx context.Context) (string, error) {
	return "noop_screenshot.png", nil
}

func (s *noopSession) Close() {}
