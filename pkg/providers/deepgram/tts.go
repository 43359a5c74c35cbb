package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cruxhq/crux/pkg/adapters/tts"
	"github.com/cruxhq/crux/pkg/errorsx"
	"github.com/cruxhq/crux/pkg/logging"
	"github.com/cruxhq/crux/pkg/resilience"
)

const speakURL = "https://api.deepgram.com/v1/speak"

type TTSConfig struct {
	APIKey     string
	Container  string
	Encoding   string
	SampleRate int
	SessionID  string
	BaseURL    string
	Client     *http.Client
}

// SpeakSynthesizer voices text through Deepgram's Aura speak API. Output is
// a browser-playable WAV stream; the caller treats it as opaque bytes.
type SpeakSynthesizer struct {
	cfg    TTSConfig
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func NewSpeakSynthesizer(cfg TTSConfig) *SpeakSynthesizer {
	if cfg.Container == "" {
		cfg.Container = "wav"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = speakURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	return &SpeakSynthesizer{
		cfg:    cfg,
		retry:  resilience.NewRetryPolicy(2, 250*time.Millisecond),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_tts"),
	}
}

func (s *SpeakSynthesizer) Name() string { return "deepgram_speak" }

// Synthesize streams audio fragments as the speak API produces them.
func (s *SpeakSynthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) (<-chan []byte, error) {
	resp, err := s.request(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		buf := make([]byte, 8192)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case <-ctx.Done():
					return
				case out <- chunk:
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.logger.Error("tts_stream_read_error",
						slog.String("session_id", s.cfg.SessionID),
						slog.String("error", err.Error()))
				}
				return
			}
		}
	}()
	return out, nil
}

// SynthesizeAll materializes the full audio payload before returning.
func (s *SpeakSynthesizer) SynthesizeAll(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	var payload []byte
	err := s.retry.Do(ctx, func() error {
		resp, err := s.request(ctx, text, voice)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *SpeakSynthesizer) request(ctx context.Context, text string, voice tts.Voice) (*http.Response, error) {
	model := pickModel(voice.Model, voice.Gender)

	q := url.Values{}
	q.Set("model", model)
	q.Set("container", s.cfg.Container)
	q.Set("encoding", s.cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	req.Header.Set("Authorization", "Token "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug("tts_request",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("model", model),
		slog.Int("text_len", len(text)))

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, resilience.RateLimitError{Provider: s.Name(), Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		s.logger.Error("tts_api_error",
			slog.String("session_id", s.cfg.SessionID),
			slog.Int("status", resp.StatusCode))
		return nil, errorsx.Wrap(fmt.Errorf("deepgram speak: %d: %s", resp.StatusCode, msg), errorsx.ReasonTTSSynthesize)
	}
	return resp, nil
}

var _ tts.Synthesizer = (*SpeakSynthesizer)(nil)
