package publish

import (
	"context"
	"fmt"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
)

var _ adapter.PlatformPublisher = (*NoopPublisher)(nil)

// NoopPublisher fakes a successful upload for dev mode. Configure one
// per platform.
type NoopPublisher struct {
	platform model.Platform
	seq      int
}

func NewNoopPublisher(platform model.Platform) *NoopPublisher {
	return &NoopPublisher{platform: platform}
}

func (p *NoopPublisher) Platform() model.Platform { return p.platform }

func (p *NoopPublisher) Publish(ctx context.Context, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.seq++
	id := fmt.Sprintf("noop-%s-%d", p.platform, p.seq)
	return &adapter.PublishOutcome{
		PlatformID: id,
		URL:        fmt.Sprintf("https://%s.example.com/watch/%s", p.platform, id),
	}, nil
}
