package tts

import "context"

// Synthesizer converts text to audio in one agreed container format.
// The audio is opaque to the caller; no transcoding happens server-side.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize streams audio fragments for the text as they arrive.
	// The channel is closed when the stream ends; a stream that ends
	// before any fragment is an empty (but successful) synthesis.
	Synthesize(ctx context.Context, text string, voice Voice) (<-chan []byte, error)
	// SynthesizeAll materializes the full audio payload before returning.
	// An error is distinct from empty audio.
	SynthesizeAll(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// Voice selects a synthesis voice. Gender picks the pool; Model, when set,
// pins an exact vendor model instead.
type Voice struct {
	Gender string
	Model  string
}
