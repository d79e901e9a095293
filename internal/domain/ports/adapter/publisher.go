package adapter

import (
	"context"

	"video-content-factory/internal/domain/model"
)

// PublishOutcome is the platform's answer to a successful upload.
type PublishOutcome struct {
	PlatformID string
	URL        string
}

// PlatformPublisher publishes via a platform's upload API. One
// implementation per platform; the publish protocol picks by enum.
type PlatformPublisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, videoPath string, meta VideoMetadata, credentialRef string) (*PublishOutcome, error)
}
