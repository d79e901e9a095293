package browser

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

var _ adapter.BrowserDriver = (*RemoteDriver)(nil)

// RemoteDriver drives the browser automation service over HTTP. The
// service keeps the real browser contexts; each OpenSession call maps
// to one remote context bound to an account/platform pair.
type RemoteDriver struct {
	base   string
	client *http.Client
}

func NewRemoteDriver(base string) (*RemoteDriver, error) {
	if base == "" {
		return nil, errors.New("browser service url empty")
	}
	return &RemoteDriver{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (d *RemoteDriver) OpenSession(ctx context.Context, account *model.Account, platform model.Platform) (adapter.BrowserSession, error) {
	reqBody := struct {
		AccountID int64  `json:"account_id"`
		Platform  string `json:"platform"`
	}{account.ID, string(platform)}

	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := d.postJSON(ctx, "/sessions", reqBody, &payload); err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	if payload.SessionID == "" {
		return nil, errors.New("browser service returned no session id")
	}
	return &remoteSession{driver: d, id: payload.SessionID}, nil
}

func (d *RemoteDriver) postJSON(ctx context.Context, path string, in, out any) error {
	b, _ := json.Marshal(in)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, d.base+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("browser http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type remoteSession struct {
	driver *RemoteDriver
	id     string
}

func (s *remoteSession) path(action string) string {
	return fmt.Sprintf("/sessions/%s/%s", s.id, action)
}

func (s *remoteSession) OpenLogin(ctx context.Context) error {
	return s.driver.postJSON(ctx, s.path("open-login"), struct{}{}, nil)
}

func (s *remoteSession) VerifyLogin(ctx context.Context) (bool, error) {
	var payload struct {
		LoggedIn bool `json:"logged_in"`
	}
	if err := s.driver.postJSON(ctx, s.path("verify-login"), struct{}{}, &payload); err != nil {
		return false, err
	}
	return payload.LoggedIn, nil
}

func (s *remoteSession) UploadAndFillMetadata(ctx context.Context, videoPath string, meta adapter.VideoMetadata) error {
	video, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", video.Name())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, video); err != nil {
		return err
	}
	metaJSON, _ := json.Marshal(struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}{meta.Title, meta.Description, meta.Tags})
	_ = mw.WriteField("metadata", string(metaJSON))
	if err := mw.Close(); err != nil {
		return err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.driver.base+s.path("upload"), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.driver.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("browser upload http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (s *remoteSession) ConfirmPublish(ctx context.Context) (*adapter.PublishOutcome, error) {
	var payload struct {
		PlatformID string `json:"platform_id"`
		URL        string `json:"url"`
	}
	if err := s.driver.postJSON(ctx, s.path("confirm"), struct{}{}, &payload); err != nil {
		return nil, err
	}
	return &adapter.PublishOutcome{PlatformID: payload.PlatformID, URL: payload.URL}, nil
}

func (s *remoteSession) Screenshot(ctx context.Context) (string, error) {
	var payload struct {
		Path string `json:"path"`
	}
	if err := s.driver.postJSON(ctx, s.path("screenshot"), struct{}{}, &payload); err != nil {
		return "", err
	}
	return payload.Path, nil
}

func (s *remoteSession) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.driver.postJSON(ctx, s.path("close"), struct{}{}, nil)
}
