// Package greeting renders the spoken welcome message a candidate hears when the call connects.
package greeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callpilot/internal/blob"
	"callpilot/internal/config"
	"callpilot/internal/metrics"

	"github.com/google/uuid"
)

// ErrSpeechGeneration matches every *SpeechGenerationError via errors.Is.
var ErrSpeechGeneration = errors.New("greeting: speech generation failed")

// SpeechGenerationError wraps the TTS or storage failure that prevented a greeting.
type SpeechGenerationError struct {
	Cause error
}

func (e *SpeechGenerationError) Error() string {
	return fmt.Sprintf("greeting: speech generation failed: %v", e.Cause)
}

func (e *SpeechGenerationError) Unwrap() error { return e.Cause }

func (e *SpeechGenerationError) Is(target error) bool { return target == ErrSpeechGeneration }

// Audio is a rendered greeting: where to fetch it and what it says.
type Audio struct {
	URL    string `json:"url"`
	Script string `json:"script"`
}

// Speaker is what campaign and retry depend on.
type Speaker interface {
	Generate(ctx context.Context, script, voiceID string) (Audio, error)
}

// WelcomeScript is the standard opening line for an organization and job.
func WelcomeScript(organization, jobTitle string) string {
	return fmt.Sprintf(
		"Welcome to the %s Platform and thank you for your application for the %s position. May I talk with you for some moments please?",
		organization, jobTitle,
	)
}

// Generator calls the ElevenLabs text-to-speech API and persists the MP3 to blob storage.
// Every call produces a new object; nothing is cached.
type Generator struct {
	client       *http.Client
	url          string
	apiKey       string
	modelID      string
	defaultVoice string
	timeout      time.Duration
	store        blob.Store
	newKey       func() string
}

func NewGenerator(cfg config.TTSConfig, store blob.Store, client *http.Client) *Generator {
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		client:       client,
		url:          strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
		defaultVoice: cfg.DefaultVoiceID,
		timeout:      timeout,
		store:        store,
		newKey:       func() string { return "welcome_messages/" + uuid.NewString() + ".mp3" },
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (g *Generator) Generate(ctx context.Context, script, voiceID string) (Audio, error) {
	audio, err := g.generate(ctx, script, voiceID)
	if err != nil {
		metrics.SpeechGenerations.WithLabelValues("error").Inc()
		return Audio{}, &SpeechGenerationError{Cause: err}
	}
	metrics.SpeechGenerations.WithLabelValues("ok").Inc()
	return audio, nil
}

func (g *Generator) generate(ctx context.Context, script, voiceID string) (Audio, error) {
	if strings.TrimSpace(script) == "" {
		return Audio{}, errors.New("empty script")
	}
	if voiceID == "" {
		voiceID = g.defaultVoice
	}

	body, err := json.Marshal(ttsRequest{
		Text:          script,
		ModelID:       g.modelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return Audio{}, err
	}

	data, err := g.synthesize(ctx, voiceID, body)
	if err != nil {
		return Audio{}, err
	}

	url, err := g.store.Put(ctx, g.newKey(), data)
	if err != nil {
		return Audio{}, err
	}
	return Audio{URL: url, Script: script}, nil
}

// synthesize posts one TTS request. The timeout holds whatever client was injected.
func (g *Generator) synthesize(ctx context.Context, voiceID string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/"+voiceID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, truncate(data, 200))
	}
	if len(data) == 0 {
		return nil, errors.New("tts returned empty audio")
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
