// Package client implements the receiving half of the game protocol: it
// correlates interleaved control and binary frames back into playable
// utterances and replays them in the announced order, regardless of the
// order the transport delivered them.
package client

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cruxhq/crux/pkg/protocol"
)

// Player renders one audio payload. Play blocks until playback finishes or
// the context is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Countdown is the client's view of the game clock. The engine pauses it
// while AI audio is audibly playing and resumes it afterwards.
type Countdown interface {
	Pause()
	Resume()
}

// slot is one outburst position awaiting its text and audio.
type slot struct {
	text  string
	audio []byte
	// announced marks that the text-bearing control frame arrived.
	announced bool
}

// Config wires an Engine.
type Config struct {
	Player    Player
	Countdown Countdown
	// SettleDelay is the gap between outburst utterances during replay.
	SettleDelay time.Duration
	// OnText observes displayed text lines (user transcript, AI lines).
	OnText func(role, text string)
	// OnGameOver observes the terminal verdict.
	OnGameOver func(score int, justification string)
	// OnError observes server-reported errors.
	OnError func(message string)
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 300 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Engine is the client correlation and playback state machine. HandleControl
// and HandleAudio are driven by the connection read loop; playback runs on
// its own goroutine so the read loop never blocks behind the speaker.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	// spamMode switches binary-frame routing from the FIFO queue to the
	// indexed slot buffer.
	spamMode bool
	queue    [][]byte
	slots    []slot
	// lastSlot is the slot of the most recent spam_message frame; the next
	// binary frame binds to it.
	lastSlot int

	// playCancel aborts the active playback goroutine, if any.
	playCancel context.CancelFunc
	playDone   chan struct{}

	logger *slog.Logger
}

// NewEngine creates an idle engine.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		lastSlot: -1,
		logger:   cfg.Logger.With(slog.String("component", "playback")),
	}
}

// HandleControl dispatches one server control frame.
func (e *Engine) HandleControl(msg protocol.ServerMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Status {
	case protocol.StatusAISpeaking:
		// A new AI turn supersedes anything still queued or playing.
		e.stopPlaybackLocked()
		e.queue = nil
		e.spamMode = false

	case protocol.StatusAIFinishedSpeaking:
		if e.spamMode {
			return
		}
		audio := bytes.Join(e.queue, nil)
		e.queue = nil
		if len(audio) == 0 {
			return
		}
		e.startPlaybackLocked(func(ctx context.Context) {
			if err := e.cfg.Player.Play(ctx, audio); err != nil && ctx.Err() == nil {
				e.logger.Warn("playback_failed", slog.String("error", err.Error()))
			}
		})

	case protocol.StatusAngrySpamStreak:
		e.stopPlaybackLocked()
		e.queue = nil
		e.slots = nil
		e.lastSlot = -1
		e.spamMode = true

	case protocol.StatusSpamMessage:
		if !e.spamMode || msg.Index == nil {
			return
		}
		idx := *msg.Index
		if msg.Total > len(e.slots) {
			grown := make([]slot, msg.Total)
			copy(grown, e.slots)
			e.slots = grown
		}
		if idx < 0 || idx >= len(e.slots) {
			e.logger.Warn("spam_index_out_of_range", slog.Int("index", idx), slog.Int("total", msg.Total))
			return
		}
		e.slots[idx].text = msg.Text
		e.slots[idx].announced = true
		e.lastSlot = idx

	case protocol.StatusSpamStreakComplete:
		if !e.spamMode {
			return
		}
		e.spamMode = false
		e.lastSlot = -1
		slots := e.slots
		e.slots = nil
		e.startPlaybackLocked(func(ctx context.Context) {
			e.drainOutburst(ctx, slots)
		})

	case protocol.StatusUserResponseText:
		e.emitText("user", msg.Text)

	case protocol.StatusAIResponseText:
		e.emitText("ai", msg.Text)

	case protocol.StatusGameOver:
		e.stopPlaybackLocked()
		if e.cfg.OnGameOver != nil && msg.Score != nil {
			e.cfg.OnGameOver(*msg.Score, msg.Justification)
		}

	case protocol.StatusError:
		if e.cfg.OnError != nil {
			e.cfg.OnError(msg.Message)
		}
	}
}

// HandleAudio routes one binary frame. In normal mode it queues; in spam
// mode it binds to the slot of the most recent spam_message frame.
func (e *Engine) HandleAudio(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	if !e.spamMode {
		e.queue = append(e.queue, buf)
		return
	}
	if e.lastSlot < 0 || e.lastSlot >= len(e.slots) {
		e.logger.Warn("unbound_audio_frame", slog.Int("bytes", len(buf)))
		return
	}
	e.slots[e.lastSlot].audio = buf
}

// Interrupt stops playback because the user started speaking. Queued audio
// for the superseded turn is discarded and the game clock resumes.
func (e *Engine) Interrupt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlaybackLocked()
	e.queue = nil
	e.slots = nil
	e.lastSlot = -1
	e.spamMode = false
}

// Wait blocks until the active playback goroutine, if any, finishes.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.playDone
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// drainOutburst replays collected slots strictly by index. Slots whose
// synthesis failed server-side carry no audio and are skipped after showing
// their text; the sequence never stalls on them.
func (e *Engine) drainOutburst(ctx context.Context, slots []slot) {
	for i, s := range slots {
		if ctx.Err() != nil {
			return
		}
		if !s.announced {
			continue
		}
		e.emitText("ai", s.text)
		if len(s.audio) > 0 {
			if err := e.cfg.Player.Play(ctx, s.audio); err != nil && ctx.Err() == nil {
				e.logger.Warn("playback_failed", slog.Int("index", i), slog.String("error", err.Error()))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.SettleDelay):
		}
	}
}

// startPlaybackLocked launches fn on the playback goroutine, holding the
// countdown for its duration. Any previous playback is stopped first.
func (e *Engine) startPlaybackLocked(fn func(ctx context.Context)) {
	e.stopPlaybackLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.playCancel = cancel
	e.playDone = done

	if e.cfg.Countdown != nil {
		e.cfg.Countdown.Pause()
	}
	go func() {
		defer close(done)
		defer func() {
			if e.cfg.Countdown != nil {
				e.cfg.Countdown.Resume()
			}
		}()
		fn(ctx)
	}()
}

func (e *Engine) stopPlaybackLocked() {
	if e.playCancel == nil {
		return
	}
	e.playCancel()
	e.playCancel = nil
	done := e.playDone
	e.playDone = nil
	if done != nil {
		// The playback goroutine never takes e.mu, so waiting here under
		// the lock cannot deadlock.
		<-done
	}
}

func (e *Engine) emitText(role, text string) {
	if e.cfg.OnText != nil {
		e.cfg.OnText(role, text)
	}
}
