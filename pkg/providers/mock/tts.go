package mock

import (
	"context"
	"sync"

	"github.com/cruxhq/crux/pkg/adapters/tts"
)

// Synthesizer produces deterministic audio derived from the input text.
// AudioFor can swap in per-text payloads; FailFor injects per-text errors;
// Release gates completion so tests can force an arbitrary finish order for
// concurrent syntheses.
type Synthesizer struct {
	// AudioFor maps text to the payload returned for it. Text without a
	// mapping yields "audio:" + text.
	AudioFor map[string][]byte
	// FailFor maps text to an error returned instead of audio.
	FailFor map[string]error
	// Release, when non-nil, is consulted per call. SynthesizeAll blocks
	// until the gate channel for the text is closed (or ctx ends). Text
	// without a gate completes immediately.
	Release map[string]chan struct{}

	mu    sync.Mutex
	calls []string
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) payload(text string) []byte {
	if s.AudioFor != nil {
		if audio, ok := s.AudioFor[text]; ok {
			return audio
		}
	}
	return []byte("audio:" + text)
}

func (s *Synthesizer) record(text string) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
}

func (s *Synthesizer) wait(ctx context.Context, text string) error {
	if s.Release == nil {
		return nil
	}
	gate, ok := s.Release[text]
	if !ok {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) (<-chan []byte, error) {
	s.record(text)
	if s.FailFor != nil {
		if err, ok := s.FailFor[text]; ok {
			return nil, err
		}
	}
	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		if err := s.wait(ctx, text); err != nil {
			return
		}
		select {
		case out <- s.payload(text):
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (s *Synthesizer) SynthesizeAll(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	s.record(text)
	if s.FailFor != nil {
		if err, ok := s.FailFor[text]; ok {
			return nil, err
		}
	}
	if err := s.wait(ctx, text); err != nil {
		return nil, err
	}
	return s.payload(text), nil
}

// Calls returns every text synthesized so far, in call order.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
