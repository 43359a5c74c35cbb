package stt

import "context"

// Transcriber is one push-to-talk capture window against an STT vendor.
// A session opens one while the user holds the talk button, forwards audio
// fragments into it, and closes it to obtain the final transcript.
// Implementations must tolerate zero Send calls and return an empty
// transcript in that case.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start opens the vendor connection.
	Start(ctx context.Context) error
	// Send forwards one raw audio fragment.
	Send(chunk []byte) error
	// Stop closes the connection and returns the accumulated transcript.
	Stop() (string, error)
}

// Factory creates a fresh Transcriber per capture window. The session owns
// at most one open Transcriber at a time.
type Factory func() Transcriber
