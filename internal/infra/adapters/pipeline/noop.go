package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"video-content-factory/internal/domain/ports/adapter"
)

var (
	_ adapter.ScriptGenerator     = (*NoopPipeline)(nil)
	_ adapter.AudioSynthesizer    = (*NoopPipeline)(nil)
	_ adapter.SubtitleTranscriber = (*NoopPipeline)(nil)
	_ adapter.VideoRenderer       = (*NoopPipeline)(nil)
)

// NoopPipeline fakes every generation stage for local development. It
// sleeps a beat per stage and fabricates deterministic paths so the
// rest of the system can be exercised without external services.
type NoopPipeline struct {
	mediaDir string
	delay    time.Duration
}

func NewNoopPipeline(mediaDir string) *NoopPipeline {
	return &NoopPipeline{mediaDir: mediaDir, delay: 100 * time.Millisecond}
}

func (n *NoopPipeline) pause(ctx context.Context) error {
	select {
	case <-time.After(n.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NoopPipeline) GenerateScript(ctx context.Context, topic string, style adapter.StyleConfig) (*adapter.Script, error) {
	if err := n.pause(ctx); err != nil {
		return nil, err
	}
	s := &adapter.Script{
		Hook: fmt.Sprintf("Did you know about %s?", topic),
		Body: fmt.Sprintf("Here is everything about %s in under a minute.", topic),
		CTA:  "Follow for more.",
	}
	s.FullText = s.Hook + "\n\n" + s.Body + "\n\n" + s.CTA
	return s, nil
}

func (n *NoopPipeline) SynthesizeAudio(ctx context.Context, text string, voice adapter.VoiceConfig) (string, error) {
	if err := n.pause(ctx); err != nil {
		return "", err
	}
	return filepath.Join(n.mediaDir, "noop_narration.mp3"), nil
}

func (n *NoopPipeline) TranscribeSubtitles(ctx context.Context, audioPath string) (string, error) {
	if err := n.pause(ctx); err != nil {
		return "", err
	}
	return filepath.Join(n.mediaDir, "noop_narration.srt"), nil
}

func (n *NoopPipeline) RenderVideo(ctx context.Context, req adapter.RenderRequest) (*adapter.RenderResult, error) {
	if err := n.pause(ctx); err != nil {
		return nil, err
	}
	return &adapter.RenderResult{
		VideoPath:     filepath.Join(n.mediaDir, "noop_video.mp4"),
		ThumbnailPath: filepath.Join(n.mediaDir, "noop_thumb.jpg"),
	}, nil
}
