package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/protocol"
	"github.com/cruxhq/crux/pkg/providers/mock"
	"github.com/cruxhq/crux/pkg/scenario"
	"github.com/cruxhq/crux/pkg/store"
)

// frame is one recorded wire frame, control or binary.
type frame struct {
	control *protocol.ServerMessage
	audio   []byte
}

type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	closed bool
}

func (c *fakeConn) WriteControl(msg protocol.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame{control: &msg})
	return nil
}

func (c *fakeConn) WriteAudio(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	c.frames = append(c.frames, frame{audio: buf})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func (c *fakeConn) snapshot() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// statuses extracts the status of every control frame, in order.
func statuses(frames []frame) []string {
	var out []string
	for _, f := range frames {
		if f.control != nil {
			out = append(out, f.control.Status)
		}
	}
	return out
}

func testScenario() scenario.Scenario {
	return scenario.Scenario{
		ID:                "forgotten_birthday",
		Title:             "The Forgotten Birthday",
		CharacterName:     "Sarah",
		CharacterGender:   scenario.GenderFemale,
		PersonalityPrompt: "You are Sarah and you are hurt.",
		InitialDialogue:   "I can't believe you forgot.",
	}
}

type sessionFixture struct {
	session *Session
	conn    *fakeConn
	stt     *mock.TranscriberFactory
	tts     *mock.Synthesizer
	llm     *mock.Generator
	record  *scenario.GameSession
}

func newFixture(t *testing.T, mutate func(*SessionConfig)) *sessionFixture {
	t.Helper()
	sc := testScenario()
	record := scenario.NewGameSession("user-1", sc)
	f := &sessionFixture{
		conn:   &fakeConn{},
		stt:    &mock.TranscriberFactory{Transcript: "I'm sorry I was late"},
		tts:    &mock.Synthesizer{},
		llm:    &mock.Generator{Responses: []string{"It's fine."}},
		record: &record,
	}
	cfg := SessionConfig{
		Conn:         f.conn,
		Record:       f.record,
		Scenario:     sc,
		Transcribers: f.stt.Factory(),
		Synth:        f.tts,
		Generator:    f.llm,
		TickInterval: 10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.session = NewSession(cfg)
	return f
}

func TestSessionStartVoicesOpeningLine(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	frames := f.conn.snapshot()
	want := []string{
		protocol.StatusAIResponseText,
		protocol.StatusAISpeaking,
		protocol.StatusAIFinishedSpeaking,
	}
	got := statuses(frames)
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
	if frames[0].control.Text != "I can't believe you forgot." {
		t.Fatalf("opening text = %q", frames[0].control.Text)
	}
	// One binary frame between ai_speaking and ai_finished_speaking.
	if frames[2].audio == nil {
		t.Fatal("expected an audio frame after ai_speaking")
	}
	if f.session.Phase() != PhaseListening {
		t.Fatalf("phase = %s, want listening", f.session.Phase())
	}
	// The opening line is seeded at session creation, not appended again.
	if len(f.record.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(f.record.History))
	}
}

func TestSessionNormalTurn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("start_speaking: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := f.session.HandleAudio([]byte{byte(i)}); err != nil {
			t.Fatalf("audio %d: %v", i, err)
		}
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStopSpeaking}); err != nil {
		t.Fatalf("stop_speaking: %v", err)
	}

	created := f.stt.Created()
	if len(created) != 1 {
		t.Fatalf("transcribers created = %d, want 1", len(created))
	}
	if got := len(created[0].Chunks()); got != 3 {
		t.Fatalf("chunks forwarded = %d, want 3", got)
	}

	got := statuses(f.conn.snapshot())
	want := []string{
		protocol.StatusUserResponseText,
		protocol.StatusAIThinking,
		protocol.StatusAIResponseText,
		protocol.StatusAISpeaking,
		protocol.StatusAIFinishedSpeaking,
	}
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}

	// History gained the user line and the AI reply.
	if len(f.record.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(f.record.History))
	}
	if f.record.History[1].Role != scenario.RoleUser || f.record.History[1].Message != "I'm sorry I was late" {
		t.Fatalf("user entry = %+v", f.record.History[1])
	}
	if f.record.History[2].Role != scenario.RoleAI || f.record.History[2].Message != "It's fine." {
		t.Fatalf("ai entry = %+v", f.record.History[2])
	}
}

func TestSessionOutburstDeliveredInOrder(t *testing.T) {
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	gateC := make(chan struct{})
	f := newFixture(t, func(cfg *SessionConfig) {
		cfg.Generator = &mock.Generator{Responses: []string{"It's fine BREAK No it's NOT fine BREAK Ugh."}}
		cfg.Synth = &mock.Synthesizer{Release: map[string]chan struct{}{
			"It's fine":        gateA,
			"No it's NOT fine": gateB,
			"Ugh.":             gateC,
		}}
	})
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("start_speaking: %v", err)
	}
	if err := f.session.HandleAudio([]byte{1}); err != nil {
		t.Fatalf("audio: %v", err)
	}

	// Force completion order C, A, B. Delivery must still be A, B, C.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gateC)
		time.Sleep(10 * time.Millisecond)
		close(gateA)
		time.Sleep(10 * time.Millisecond)
		close(gateB)
	}()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStopSpeaking}); err != nil {
		t.Fatalf("stop_speaking: %v", err)
	}

	frames := f.conn.snapshot()
	// Skip user_response_text and ai_thinking; the streak starts after.
	var i int
	for i = range frames {
		if frames[i].control != nil && frames[i].control.Status == protocol.StatusAngrySpamStreak {
			break
		}
	}
	rest := frames[i:]
	wantTexts := []string{"It's fine", "No it's NOT fine", "Ugh."}
	if len(rest) != 1+2*len(wantTexts)+1 {
		t.Fatalf("streak frames = %d, want %d", len(rest), 1+2*len(wantTexts)+1)
	}
	for j, text := range wantTexts {
		ctl := rest[1+2*j]
		bin := rest[2+2*j]
		if ctl.control == nil || ctl.control.Status != protocol.StatusSpamMessage {
			t.Fatalf("frame %d is not spam_message", 1+2*j)
		}
		if ctl.control.Text != text {
			t.Fatalf("spam text[%d] = %q, want %q", j, ctl.control.Text, text)
		}
		if ctl.control.Index == nil || *ctl.control.Index != j {
			t.Fatalf("spam index[%d] = %v", j, ctl.control.Index)
		}
		if ctl.control.Total != 3 {
			t.Fatalf("spam total[%d] = %d, want 3", j, ctl.control.Total)
		}
		if string(bin.audio) != "audio:"+text {
			t.Fatalf("audio[%d] = %q", j, bin.audio)
		}
	}
	last := rest[len(rest)-1]
	if last.control == nil || last.control.Status != protocol.StatusSpamStreakComplete {
		t.Fatal("streak did not end with spam_streak_complete")
	}

	// Each utterance became its own history entry, in order.
	aiTail := f.record.History[len(f.record.History)-3:]
	for j, text := range wantTexts {
		if aiTail[j].Role != scenario.RoleAI || aiTail[j].Message != text {
			t.Fatalf("history tail[%d] = %+v, want ai %q", j, aiTail[j], text)
		}
	}
	if f.session.Phase() != PhaseListening {
		t.Fatalf("phase = %s, want listening", f.session.Phase())
	}
}

func TestSessionOutburstDegradesFailedSlot(t *testing.T) {
	f := newFixture(t, func(cfg *SessionConfig) {
		cfg.Generator = &mock.Generator{Responses: []string{"A BREAK B BREAK C"}}
		cfg.Synth = &mock.Synthesizer{FailFor: map[string]error{"B": errors.New("synthesis down")}}
	})
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("start_speaking: %v", err)
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStopSpeaking}); err != nil {
		t.Fatalf("stop_speaking: %v", err)
	}

	frames := f.conn.snapshot()
	var texts []string
	var audioCount int
	for _, fr := range frames {
		if fr.control != nil && fr.control.Status == protocol.StatusSpamMessage {
			texts = append(texts, fr.control.Text)
		}
		if fr.audio != nil {
			audioCount++
		}
	}
	if len(texts) != 3 {
		t.Fatalf("spam messages = %v, want 3", texts)
	}
	if texts[1] != "B" {
		t.Fatalf("failed slot text = %q, want B", texts[1])
	}
	if audioCount != 2 {
		t.Fatalf("audio frames = %d, want 2 (failed slot carries none)", audioCount)
	}
}

func TestSessionEmptyTranscriptReleasesTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.stt.Transcript = "   "
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("start_speaking: %v", err)
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStopSpeaking}); err != nil {
		t.Fatalf("stop_speaking: %v", err)
	}

	got := statuses(f.conn.snapshot())
	if len(got) != 1 || got[0] != protocol.StatusAIFinishedSpeaking {
		t.Fatalf("statuses = %v, want only ai_finished_speaking", got)
	}
	if f.llm.RespondCalls() != 0 {
		t.Fatal("generator invoked on empty transcript")
	}
	if len(f.record.History) != 1 {
		t.Fatalf("history grew to %d on empty transcript", len(f.record.History))
	}
	if f.session.Phase() != PhaseListening {
		t.Fatalf("phase = %s, want listening", f.session.Phase())
	}
}

func TestSessionDiscardsAudioWithoutCapture(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.session.HandleAudio([]byte{1, 2, 3}); err != nil {
		t.Fatalf("audio without capture: %v", err)
	}
	if got := len(f.stt.Created()); got != 0 {
		t.Fatalf("transcribers created = %d, want 0", got)
	}
}

func TestSessionSecondStartSpeakingIgnored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("first start_speaking: %v", err)
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("second start_speaking: %v", err)
	}
	if got := len(f.stt.Created()); got != 1 {
		t.Fatalf("transcribers created = %d, want 1", got)
	}
	if f.session.Phase() != PhaseListening {
		t.Fatalf("phase = %s, want listening", f.session.Phase())
	}
}

func TestSessionEndGameEvaluatesAndCloses(t *testing.T) {
	mem := store.NewMemory()
	f := newFixture(t, func(cfg *SessionConfig) {
		cfg.Store = mem
		cfg.Generator = &mock.Generator{Eval: llm.Evaluation{Score: 7, Justification: "Showed empathy."}}
	})
	ctx := context.Background()
	if err := mem.CreateSession(ctx, *f.record); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionEndGame}); err != nil {
		t.Fatalf("end_game: %v", err)
	}

	frames := f.conn.snapshot()
	got := statuses(frames)
	if len(got) != 2 || got[0] != protocol.StatusEvaluating || got[1] != protocol.StatusGameOver {
		t.Fatalf("statuses = %v, want [evaluating game_over]", got)
	}
	over := frames[1].control
	if over.Score == nil || *over.Score != 7 || over.Justification != "Showed empathy." {
		t.Fatalf("game_over frame = %+v", over)
	}
	if !f.conn.isClosed() {
		t.Fatal("connection not closed after game over")
	}
	if f.session.Phase() != PhaseEnded {
		t.Fatalf("phase = %s, want ended", f.session.Phase())
	}

	persisted, err := mem.GetSession(ctx, f.record.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if persisted.Status != scenario.SessionFinished || persisted.FinalScore == nil || *persisted.FinalScore != 7 {
		t.Fatalf("persisted session = %+v", persisted)
	}
}

func TestSessionEvaluationFailureStillCloses(t *testing.T) {
	f := newFixture(t, func(cfg *SessionConfig) {
		cfg.Generator = &mock.Generator{EvaluateErr: errors.New("model down")}
	})
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionEndGame}); err != nil {
		t.Fatalf("end_game: %v", err)
	}

	got := statuses(f.conn.snapshot())
	if len(got) != 2 || got[0] != protocol.StatusEvaluating || got[1] != protocol.StatusError {
		t.Fatalf("statuses = %v, want [evaluating error]", got)
	}
	if !f.conn.isClosed() {
		t.Fatal("connection left open after evaluation failure")
	}
	if f.session.Phase() != PhaseEnded {
		t.Fatalf("phase = %s, want ended", f.session.Phase())
	}
}

func TestSessionCountdownExpiryEndsGame(t *testing.T) {
	f := newFixture(t, func(cfg *SessionConfig) {
		cfg.CountdownSeconds = 2
		cfg.TickInterval = 5 * time.Millisecond
		cfg.Generator = &mock.Generator{Eval: llm.Evaluation{Score: 3, Justification: "Ran out the clock."}}
	})
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.conn.reset()

	deadline := time.After(time.Second)
	for f.session.Phase() != PhaseEnded {
		select {
		case <-deadline:
			t.Fatalf("session never ended, phase %s", f.session.Phase())
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := statuses(f.conn.snapshot())
	if len(got) != 2 || got[0] != protocol.StatusEvaluating || got[1] != protocol.StatusGameOver {
		t.Fatalf("statuses = %v, want [evaluating game_over]", got)
	}
	if !f.conn.isClosed() {
		t.Fatal("connection not closed after timeout")
	}

	// No further frames accepted once ended.
	before := len(f.conn.snapshot())
	_ = f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking})
	_ = f.session.HandleAudio([]byte{1})
	if after := len(f.conn.snapshot()); after != before {
		t.Fatalf("frames written after end: %d -> %d", before, after)
	}
}

func TestSessionDisconnectTearsDown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.session.HandleControl(ctx, protocol.ClientMessage{Action: protocol.ActionStartSpeaking}); err != nil {
		t.Fatalf("start_speaking: %v", err)
	}

	f.session.HandleDisconnect()
	if f.session.Phase() != PhaseEnded {
		t.Fatalf("phase = %s, want ended", f.session.Phase())
	}
	created := f.stt.Created()
	if len(created) != 1 || !created[0].Stopped() {
		t.Fatal("open transcriber not released on disconnect")
	}
}
