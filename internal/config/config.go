// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WorkerConfig struct {
	// PollInterval drives the immediate-queue sweep.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ScheduleInterval drives the due-schedule sweep.
	ScheduleInterval time.Duration `yaml:"schedule_interval"`
	// Concurrency bounds jobs in flight at once.
	Concurrency int `yaml:"concurrency"`
	// HeavyConcurrency bounds simultaneous GPU-bound stages (audio, render).
	HeavyConcurrency int `yaml:"heavy_concurrency"`
	// StageTimeout bounds each collaborator call.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

type SchedulerConfig struct {
	// Cooldown is the dedup window for recurring materialization.
	Cooldown time.Duration `yaml:"cooldown"`
	// ProvenRatio is the probability of drawing from the proven half of
	// the template set (default 0.7).
	ProvenRatio float64 `yaml:"proven_ratio"`
	Timezone    string  `yaml:"timezone"`
}

type PipelineConfig struct {
	ScriptProvider string `yaml:"script_provider"` // openai | gemini
	OpenAIKey      string `yaml:"openai_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	ScriptModel    string `yaml:"script_model"`
	GeminiKey      string `yaml:"gemini_key"`
	GeminiURL      string `yaml:"gemini_url"`
	TTSVoice       string `yaml:"tts_voice"`
	WhisperModel   string `yaml:"whisper_model"`
	RendererURL    string `yaml:"renderer_url"`
	UploadURL      string `yaml:"upload_url"`  // platform upload proxy endpoint
	BrowserURL     string `yaml:"browser_url"` // remote browser automation endpoint
	MediaDir       string `yaml:"media_dir"`
}

type WebConfig struct {
	Port       int           `yaml:"port"`
	JWTSecret  string        `yaml:"jwt_secret"`
	AdminUser  string        `yaml:"admin_user"`
	AdminPass  string        `yaml:"admin_pass"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type AlertsConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Web       WebConfig       `yaml:"web"`
	Alerts    AlertsConfig    `yaml:"alerts"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Web.JWTSecret == "" && !dev {
		return nil, errors.New("web.jwt_secret is required outside dev mode")
	}
	if cfg.Scheduler.ProvenRatio < 0 || cfg.Scheduler.ProvenRatio > 1 {
		return nil, errors.New("scheduler.proven_ratio must be within [0,1]")
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = 5 * time.Second
	}
	if cfg.Worker.ScheduleInterval <= 0 {
		cfg.Worker.ScheduleInterval = time.Minute
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.HeavyConcurrency <= 0 {
		cfg.Worker.HeavyConcurrency = 1
	}
	if cfg.Worker.StageTimeout <= 0 {
		cfg.Worker.StageTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.Cooldown <= 0 {
		cfg.Scheduler.Cooldown = 4 * time.Hour
	}
	if cfg.Scheduler.ProvenRatio == 0 {
		cfg.Scheduler.ProvenRatio = 0.7
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Pipeline.ScriptModel == "" {
		cfg.Pipeline.ScriptModel = "gpt-4o-mini"
	}
	if cfg.Pipeline.OpenAIBaseURL == "" {
		cfg.Pipeline.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Pipeline.TTSVoice == "" {
		cfg.Pipeline.TTSVoice = "alloy"
	}
	if cfg.Pipeline.WhisperModel == "" {
		cfg.Pipeline.WhisperModel = "whisper-1"
	}
	if cfg.Pipeline.MediaDir == "" {
		cfg.Pipeline.MediaDir = "media"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
}
