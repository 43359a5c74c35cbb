package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cruxhq/crux/pkg/protocol"
)

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	// hold, when set, blocks Play until cancelled.
	hold bool
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	buf := make([]byte, len(audio))
	copy(buf, audio)
	p.played = append(p.played, buf)
	hold := p.hold
	p.mu.Unlock()
	if hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePlayer) playedAudio() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.played...)
}

type fakeClock struct {
	mu      sync.Mutex
	paused  bool
	pauses  int
	resumes int
}

func (c *fakeClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.pauses++
}

func (c *fakeClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.resumes++
}

func (c *fakeClock) state() (bool, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, c.pauses, c.resumes
}

func newTestEngine(p *fakePlayer, clock *fakeClock) *Engine {
	cfg := Config{
		Player:      p,
		SettleDelay: time.Millisecond,
	}
	// Assign only when non-nil so a nil *fakeClock does not become a
	// non-nil Countdown interface holding a nil pointer.
	if clock != nil {
		cfg.Countdown = clock
	}
	return NewEngine(cfg)
}

func control(status string) protocol.ServerMessage {
	return protocol.Status(status)
}

func TestEngineNormalPathConcatenatesFragments(t *testing.T) {
	p := &fakePlayer{}
	e := newTestEngine(p, nil)

	e.HandleControl(control(protocol.StatusAISpeaking))
	e.HandleAudio([]byte("aa"))
	e.HandleAudio([]byte("bb"))
	e.HandleAudio([]byte("cc"))
	e.HandleControl(control(protocol.StatusAIFinishedSpeaking))
	e.Wait()

	played := p.playedAudio()
	if len(played) != 1 {
		t.Fatalf("playbacks = %d, want 1", len(played))
	}
	if string(played[0]) != "aabbcc" {
		t.Fatalf("played = %q, want aabbcc", played[0])
	}
}

func TestEngineNewTurnDiscardsStaleAudio(t *testing.T) {
	p := &fakePlayer{}
	e := newTestEngine(p, nil)

	e.HandleControl(control(protocol.StatusAISpeaking))
	e.HandleAudio([]byte("stale"))
	// A new turn begins before the previous one finished.
	e.HandleControl(control(protocol.StatusAISpeaking))
	e.HandleAudio([]byte("fresh"))
	e.HandleControl(control(protocol.StatusAIFinishedSpeaking))
	e.Wait()

	played := p.playedAudio()
	if len(played) != 1 || string(played[0]) != "fresh" {
		t.Fatalf("played = %v, want only fresh", played)
	}
}

func TestEngineSpamReplayInIndexOrder(t *testing.T) {
	p := &fakePlayer{}
	var texts []string
	var mu sync.Mutex
	e := NewEngine(Config{
		Player:      p,
		SettleDelay: time.Millisecond,
		OnText: func(role, text string) {
			if role == "ai" {
				mu.Lock()
				texts = append(texts, text)
				mu.Unlock()
			}
		},
	})

	e.HandleControl(control(protocol.StatusAngrySpamStreak))
	e.HandleControl(protocol.SpamMessage("A", 0, 3))
	e.HandleAudio([]byte("audio-a"))
	e.HandleControl(protocol.SpamMessage("B", 1, 3))
	e.HandleAudio([]byte("audio-b"))
	e.HandleControl(protocol.SpamMessage("C", 2, 3))
	e.HandleAudio([]byte("audio-c"))
	e.HandleControl(control(protocol.StatusSpamStreakComplete))
	e.Wait()

	played := p.playedAudio()
	want := []string{"audio-a", "audio-b", "audio-c"}
	if len(played) != len(want) {
		t.Fatalf("playbacks = %d, want %d", len(played), len(want))
	}
	for i := range want {
		if string(played[i]) != want[i] {
			t.Fatalf("played[%d] = %q, want %q", i, played[i], want[i])
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 3 || texts[0] != "A" || texts[1] != "B" || texts[2] != "C" {
		t.Fatalf("texts = %v, want [A B C]", texts)
	}
}

func TestEngineSpamSkipsSlotWithoutAudio(t *testing.T) {
	p := &fakePlayer{}
	e := newTestEngine(p, nil)

	// Slot 1 never receives a binary frame (its synthesis failed).
	e.HandleControl(control(protocol.StatusAngrySpamStreak))
	e.HandleControl(protocol.SpamMessage("A", 0, 3))
	e.HandleAudio([]byte("audio-a"))
	e.HandleControl(protocol.SpamMessage("B", 1, 3))
	e.HandleControl(protocol.SpamMessage("C", 2, 3))
	e.HandleAudio([]byte("audio-c"))
	e.HandleControl(control(protocol.StatusSpamStreakComplete))
	e.Wait()

	played := p.playedAudio()
	if len(played) != 2 || string(played[0]) != "audio-a" || string(played[1]) != "audio-c" {
		t.Fatalf("played = %v, want [audio-a audio-c]", played)
	}
}

func TestEngineSpamModeSuppressesNormalPath(t *testing.T) {
	p := &fakePlayer{}
	e := newTestEngine(p, nil)

	e.HandleControl(control(protocol.StatusAngrySpamStreak))
	e.HandleControl(protocol.SpamMessage("A", 0, 1))
	e.HandleAudio([]byte("audio-a"))
	// A stray terminator inside spam mode must not trigger FIFO playback.
	e.HandleControl(control(protocol.StatusAIFinishedSpeaking))
	if got := p.playedAudio(); len(got) != 0 {
		t.Fatalf("played %v before streak completed", got)
	}

	e.HandleControl(control(protocol.StatusSpamStreakComplete))
	e.Wait()
	if got := p.playedAudio(); len(got) != 1 {
		t.Fatalf("playbacks = %d, want 1", len(got))
	}
}

func TestEngineCountdownPausedDuringPlayback(t *testing.T) {
	p := &fakePlayer{hold: true}
	clock := &fakeClock{}
	e := newTestEngine(p, clock)

	e.HandleControl(control(protocol.StatusAISpeaking))
	e.HandleAudio([]byte("xx"))
	e.HandleControl(control(protocol.StatusAIFinishedSpeaking))

	deadline := time.After(time.Second)
	for {
		paused, _, _ := clock.state()
		if paused {
			break
		}
		select {
		case <-deadline:
			t.Fatal("countdown never paused for playback")
		case <-time.After(time.Millisecond):
		}
	}

	// Interrupting resumes the clock and discards the held playback.
	e.Interrupt()
	e.Wait()
	paused, pauses, resumes := clock.state()
	if paused {
		t.Fatal("countdown still paused after interrupt")
	}
	if pauses != 1 || resumes != 1 {
		t.Fatalf("pauses=%d resumes=%d, want 1 and 1", pauses, resumes)
	}
}

func TestEngineInterruptClearsSpamState(t *testing.T) {
	p := &fakePlayer{}
	e := newTestEngine(p, nil)

	e.HandleControl(control(protocol.StatusAngrySpamStreak))
	e.HandleControl(protocol.SpamMessage("A", 0, 2))
	e.HandleAudio([]byte("audio-a"))
	e.Interrupt()

	// After the interrupt the engine is back on the normal path.
	e.HandleControl(control(protocol.StatusAISpeaking))
	e.HandleAudio([]byte("next"))
	e.HandleControl(control(protocol.StatusAIFinishedSpeaking))
	e.Wait()

	played := p.playedAudio()
	if len(played) != 1 || string(played[0]) != "next" {
		t.Fatalf("played = %v, want only next-turn audio", played)
	}
}

func TestEngineGameOverCallback(t *testing.T) {
	var gotScore int
	var gotJustification string
	e := NewEngine(Config{
		Player: &fakePlayer{},
		OnGameOver: func(score int, justification string) {
			gotScore = score
			gotJustification = justification
		},
	})

	e.HandleControl(protocol.GameOver(7, "Held it together."))
	if gotScore != 7 || gotJustification != "Held it together." {
		t.Fatalf("game over = %d %q", gotScore, gotJustification)
	}
}
