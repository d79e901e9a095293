package adapter

import (
	"context"

	"video-content-factory/internal/domain/model"
)

// BrowserSession is a live automation session against one platform
// account. The publish protocol owns the handle for the duration of a
// single attempt; it is never shared or kept as a global.
type BrowserSession interface {
	// OpenLogin navigates to the platform's login page for out-of-band
	// human login.
	OpenLogin(ctx context.Context) error
	// VerifyLogin reports whether a valid session cookie is present.
	VerifyLogin(ctx context.Context) (bool, error)
	// UploadAndFillMetadata uploads the file and fills the publish form,
	// stopping just before the platform-visible publish action.
	UploadAndFillMetadata(ctx context.Context, videoPath string, meta VideoMetadata) error
	// ConfirmPublish performs the final publish action.
	ConfirmPublish(ctx context.Context) (*PublishOutcome, error)
	// Screenshot captures the page for the audit trail.
	Screenshot(ctx context.Context) (string, error)
	Close()
}

// BrowserDriver opens sessions bound to an account/platform pair.
type BrowserDriver interface {
	OpenSession(ctx context.Context, account *model.Account, platform model.Platform) (BrowserSession, error)
}
