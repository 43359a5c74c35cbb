// Package mock provides in-memory vendor doubles used in tests and as a
// vendor choice for local runs without credentials.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/cruxhq/crux/pkg/adapters/stt"
)

// Transcriber returns a preset transcript and records everything sent to it.
type Transcriber struct {
	// Transcript is returned by Stop regardless of what was sent.
	Transcript string
	// StartErr, SendErr and StopErr force failures at each stage.
	StartErr error
	SendErr  error
	StopErr  error

	mu      sync.Mutex
	started bool
	stopped bool
	chunks  [][]byte
}

var _ stt.Transcriber = (*Transcriber)(nil)

func (t *Transcriber) Name() string { return "mock" }

func (t *Transcriber) Start(ctx context.Context) error {
	if t.StartErr != nil {
		return t.StartErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	return nil
}

func (t *Transcriber) Send(chunk []byte) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.stopped {
		return fmt.Errorf("mock stt: send on closed transcriber")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	t.chunks = append(t.chunks, buf)
	return nil
}

func (t *Transcriber) Stop() (string, error) {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	if t.StopErr != nil {
		return "", t.StopErr
	}
	return t.Transcript, nil
}

// Chunks returns copies of every fragment sent so far.
func (t *Transcriber) Chunks() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.chunks))
	copy(out, t.chunks)
	return out
}

// Stopped reports whether Stop has been called.
func (t *Transcriber) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// TranscriberFactory yields a fresh Transcriber per capture window, all
// returning the same transcript. Created transcribers are retained for
// inspection.
type TranscriberFactory struct {
	Transcript string

	mu      sync.Mutex
	created []*Transcriber
}

// Factory adapts the mock to the stt.Factory shape.
func (f *TranscriberFactory) Factory() stt.Factory {
	return func() stt.Transcriber {
		t := &Transcriber{Transcript: f.Transcript}
		f.mu.Lock()
		f.created = append(f.created, t)
		f.mu.Unlock()
		return t
	}
}

// Created returns every transcriber the factory has handed out.
func (f *TranscriberFactory) Created() []*Transcriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Transcriber, len(f.created))
	copy(out, f.created)
	return out
}
