// Package speech transcribes recorded answers with the Whisper API.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/pkg/logger"
)

// ErrUnsupportedFormat is returned for audio types the API does not accept.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SupportedFormats lists accepted file extensions.
var SupportedFormats = []string{".flac", ".m4a", ".mp3", ".mp4", ".mpeg", ".mpga", ".oga", ".ogg", ".wav", ".webm"} //nolint:gochecknoglobals // fixed format list

// AudioClient is the subset of *openai.Client used here.
type AudioClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Option applies a configuration option to the Transcriber.
type Option func(*Transcriber)

// WithAudioClient replaces the API client.
func WithAudioClient(c AudioClient) Option {
	return func(t *Transcriber) {
		if c != nil {
			t.client = c
		}
	}
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithLanguage hints the spoken language as ISO-639-1.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithTimeout bounds a single transcription request.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcriber) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transcriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transcriber converts audio to text.
type Transcriber struct {
	client   AudioClient
	model    string
	language string
	timeout  time.Duration
	logger   logger.Logger
}

var _ session.Transcriber = (*Transcriber)(nil)

// New creates a Transcriber for the given API credentials.
func New(apiKey, baseURL string, opts ...Option) *Transcriber {
	t := &Transcriber{
		model:    openai.Whisper1,
		language: "en",
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		t.client = openai.NewClientWithConfig(cfg)
	}
	if t.logger == nil {
		t.logger = logger.Get().Named("speech")
	}
	return t
}

// Supported reports whether filename has an accepted audio extension.
func Supported(filename string) bool {
	return slices.Contains(SupportedFormats, strings.ToLower(filepath.Ext(filename)))
}

// Transcribe streams audio to the API. All failures wrap
// session.ErrTranscription.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if !Supported(filename) {
		return "", fmt.Errorf("%w: %w: %q", session.ErrTranscription, ErrUnsupportedFormat, filepath.Ext(filename))
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filepath.Base(filename),
		Reader:   audio,
		Language: t.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		t.logger.Warn(ctx, "transcription failed", logger.String("file", filename), logger.Error(err))
		return "", fmt.Errorf("%w: %w", session.ErrTranscription, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", session.ErrTranscription)
	}
	t.logger.Debug(ctx, "audio transcribed",
		logger.String("file", filename),
		logger.Int("chars", len(text)),
		logger.Duration("latency", time.Since(start)),
	)
	return text, nil
}
