package adapter

import (
	"context"

	"video-content-factory/internal/domain/model"
)

// StyleConfig steers script tone per account niche.
type StyleConfig struct {
	Niche    string
	Tone     string
	Language string
	MaxWords int
}

// Script is the structured output of the script stage.
type Script struct {
	Hook     string `json:"hook"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
	FullText string `json:"full_text"`
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	VoiceID string
	Speed   float64
}

// RenderRequest carries everything the renderer needs.
type RenderRequest struct {
	Topic        string
	Script       Script
	AudioPath    string
	SubtitlePath string
	BrandingID   string
}

// RenderResult is the renderer's output; the renderer may fall back
// between backends internally, the core only sees the paths.
type RenderResult struct {
	VideoPath     string
	ThumbnailPath string
}

// ScriptGenerator writes the script for a topic.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, topic string, style StyleConfig) (*Script, error)
}

// AudioSynthesizer turns the script text into narration audio.
type AudioSynthesizer interface {
	SynthesizeAudio(ctx context.Context, text string, voice VoiceConfig) (string, error)
}

// SubtitleTranscriber produces a subtitle file from narration audio.
type SubtitleTranscriber interface {
	TranscribeSubtitles(ctx context.Context, audioPath string) (string, error)
}

// VideoRenderer composites the final video.
type VideoRenderer interface {
	RenderVideo(ctx context.Context, req RenderRequest) (*RenderResult, error)
}

// VideoMetadata is what publishers receive alongside the file.
type VideoMetadata struct {
	Title       string
	Description string
	Tags        []string
	Platform    model.Platform
}
