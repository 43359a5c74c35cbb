package game

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cruxhq/crux/pkg/adapters/stt"
	"github.com/cruxhq/crux/pkg/adapters/tts"
	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/protocol"
	"github.com/cruxhq/crux/pkg/scenario"
	"github.com/cruxhq/crux/pkg/store"
)

// Conn is the session's view of one full-duplex connection. Implementations
// must preserve call order on the wire: a WriteAudio following a
// WriteControl lands as the next frame after it.
type Conn interface {
	WriteControl(msg protocol.ServerMessage) error
	WriteAudio(chunk []byte) error
	Close() error
}

// EndReason distinguishes why a game ended for user-facing messaging.
type EndReason string

const (
	EndReasonUser    EndReason = "user_request"
	EndReasonTimeout EndReason = "time_up"
)

// SessionConfig wires one session's collaborators.
type SessionConfig struct {
	Conn         Conn
	Record       *scenario.GameSession
	Scenario     scenario.Scenario
	Store        store.Store
	Transcribers stt.Factory
	Synth        tts.Synthesizer
	Generator    llm.ResponseGenerator

	// BreakMarker is the in-band delimiter signaling an outburst.
	BreakMarker string
	// CountdownSeconds is the game clock ceiling.
	CountdownSeconds int
	// TickInterval is the countdown tick length; tests shrink it.
	TickInterval time.Duration
	Logger       *slog.Logger
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.BreakMarker == "" {
		c.BreakMarker = "BREAK"
	}
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 120
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Session is the per-connection controller. It owns the phase machine, the
// countdown, and the at-most-one open transcriber, and sequences every frame
// the server emits for this connection. All entry points serialize on one
// mutex; there is no cross-session shared state.
type Session struct {
	mu sync.Mutex

	cfg       SessionConfig
	conn      Conn
	record    *scenario.GameSession
	profile   llm.Profile
	voice     tts.Voice
	machine   Machine
	countdown *Countdown

	// transcriber is the open capture window, nil while the user is not
	// allowed to speak.
	transcriber stt.Transcriber

	synth     tts.Synthesizer
	generator llm.ResponseGenerator
	logger    *slog.Logger
}

// NewSession builds a session around an accepted connection.
func NewSession(cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:    cfg,
		conn:   cfg.Conn,
		record: cfg.Record,
		profile: llm.Profile{
			ScenarioTitle:     cfg.Scenario.Title,
			CharacterName:     cfg.Scenario.CharacterName,
			PersonalityPrompt: cfg.Scenario.PersonalityPrompt,
		},
		voice:     tts.Voice{Gender: string(cfg.Scenario.CharacterGender)},
		synth:     cfg.Synth,
		generator: cfg.Generator,
		logger: cfg.Logger.With(
			slog.String("component", "session"),
			slog.String("session_id", cfg.Record.SessionID.String()),
		),
	}
	s.countdown = NewCountdown(cfg.CountdownSeconds, cfg.TickInterval, s.expire)
	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Phase()
}

// Remaining returns the countdown's remaining ticks.
func (s *Session) Remaining() int { return s.countdown.Remaining() }

// Start voices the scenario's opening line and arms the game clock. The
// opening line is already the first history entry; it is not appended again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Transition(PhaseAwaitingFirst); err != nil {
		return err
	}
	s.logger.Info("session_started",
		slog.String("scenario_id", s.cfg.Scenario.ID),
		slog.String("character", s.cfg.Scenario.CharacterName),
	)

	if err := s.machine.Transition(PhaseSpeaking); err != nil {
		return err
	}
	if err := s.speakLocked(ctx, s.cfg.Scenario.InitialDialogue); err != nil {
		return err
	}
	if err := s.machine.Transition(PhaseListening); err != nil {
		return err
	}
	s.countdown.Start()
	return nil
}

// HandleControl dispatches one client control frame.
func (s *Session) HandleControl(ctx context.Context, msg protocol.ClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Action {
	case protocol.ActionStartSpeaking:
		return s.startSpeakingLocked(ctx)
	case protocol.ActionStopSpeaking:
		return s.stopSpeakingLocked(ctx)
	case protocol.ActionEndGame:
		return s.endGameLocked(ctx, EndReasonUser)
	default:
		// Unknown actions are protocol violations, never fatal.
		s.logger.Warn("unknown_action", slog.String("action", msg.Action))
		return nil
	}
}

// HandleAudio routes one binary frame into the open capture window. Audio
// with no window open models "the user may not speak now" and is discarded.
func (s *Session) HandleAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcriber == nil {
		return nil
	}
	if err := s.transcriber.Send(chunk); err != nil {
		s.logger.Warn("audio_forward_failed", slog.String("error", err.Error()))
	}
	return nil
}

// HandleDisconnect tears the session down after a transport failure. The
// game is not evaluated; a new connection starts a fresh session.
func (s *Session) HandleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countdown.Stop()
	if s.transcriber != nil {
		_, _ = s.transcriber.Stop()
		s.transcriber = nil
	}
	if s.machine.Phase() != PhaseEnded {
		_ = s.machine.Transition(PhaseEnded)
		s.logger.Info("session_disconnected")
	}
}

func (s *Session) startSpeakingLocked(ctx context.Context) error {
	if s.machine.Phase() != PhaseListening {
		s.logger.Warn("start_speaking_out_of_phase", slog.String("phase", s.machine.Phase().String()))
		return nil
	}
	if s.transcriber != nil {
		// One capture window at a time; a second start is a protocol
		// violation but never fatal.
		s.logger.Warn("transcriber_already_open")
		return nil
	}

	// The user interrupting AI playback puts the clock back on them.
	s.countdown.Resume()

	t := s.cfg.Transcribers()
	if err := t.Start(ctx); err != nil {
		s.logger.Error("transcriber_open_failed", slog.String("error", err.Error()))
		return s.conn.WriteControl(protocol.Error("could not start listening"))
	}
	s.transcriber = t
	s.logger.Debug("capture_opened")
	return nil
}

func (s *Session) stopSpeakingLocked(ctx context.Context) error {
	if s.transcriber == nil {
		s.logger.Warn("stop_speaking_without_capture")
		return nil
	}

	if err := s.machine.Transition(PhaseTranscribing); err != nil {
		return err
	}
	transcript, err := s.transcriber.Stop()
	s.transcriber = nil
	if err != nil {
		s.logger.Error("transcription_failed", slog.String("error", err.Error()))
		if werr := s.conn.WriteControl(protocol.Error("could not transcribe speech")); werr != nil {
			return werr
		}
		return s.machine.Transition(PhaseListening)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		// No speech captured. Release the turn without an AI response.
		s.logger.Debug("empty_transcript")
		if err := s.conn.WriteControl(protocol.Status(protocol.StatusAIFinishedSpeaking)); err != nil {
			return err
		}
		return s.machine.Transition(PhaseListening)
	}

	s.record.History = append(s.record.History, scenario.Entry{
		Role:      scenario.RoleUser,
		Message:   transcript,
		Timestamp: time.Now().UTC(),
	})
	if err := s.conn.WriteControl(protocol.UserResponseText(transcript)); err != nil {
		return err
	}

	if err := s.machine.Transition(PhaseThinking); err != nil {
		return err
	}
	if err := s.conn.WriteControl(protocol.Status(protocol.StatusAIThinking)); err != nil {
		return err
	}

	response, err := s.generator.Respond(ctx, s.record.History, s.profile)
	if err != nil {
		s.logger.Error("response_generation_failed", slog.String("error", err.Error()))
		if werr := s.conn.WriteControl(protocol.Error("the character is at a loss for words")); werr != nil {
			return werr
		}
		return s.machine.Transition(PhaseListening)
	}

	return s.respondLocked(ctx, response)
}

// respondLocked delivers one generated response over the normal or the
// outburst path, then returns the session to listening.
func (s *Session) respondLocked(ctx context.Context, response string) error {
	if strings.Contains(response, s.cfg.BreakMarker) {
		if err := s.machine.Transition(PhaseSpamming); err != nil {
			return err
		}
		s.countdown.Pause()
		segments := SplitOutburst(response, s.cfg.BreakMarker)
		err := s.runOutburst(ctx, segments)
		s.countdown.Resume()
		if err != nil {
			return err
		}
		return s.machine.Transition(PhaseListening)
	}

	if err := s.machine.Transition(PhaseSpeaking); err != nil {
		return err
	}
	s.record.History = append(s.record.History, scenario.Entry{
		Role:      scenario.RoleAI,
		Message:   response,
		Timestamp: time.Now().UTC(),
	})
	if err := s.speakLocked(ctx, response); err != nil {
		return err
	}
	return s.machine.Transition(PhaseListening)
}

// speakLocked streams one utterance over the normal path: text frame,
// speaking announcement, audio fragments, finished announcement. The
// countdown is held for the whole window so it never ticks against playback.
func (s *Session) speakLocked(ctx context.Context, text string) error {
	if err := s.conn.WriteControl(protocol.AIResponseText(text)); err != nil {
		return err
	}

	s.countdown.Pause()
	defer s.countdown.Resume()

	if err := s.conn.WriteControl(protocol.Status(protocol.StatusAISpeaking)); err != nil {
		return err
	}

	fragments, err := s.synth.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.logger.Error("synthesis_failed", slog.String("error", err.Error()))
		if werr := s.conn.WriteControl(protocol.Error("could not voice the response")); werr != nil {
			return werr
		}
		// The turn ends without audio; the client still needs the
		// terminator to leave its collecting state.
		return s.conn.WriteControl(protocol.Status(protocol.StatusAIFinishedSpeaking))
	}
	for fragment := range fragments {
		if len(fragment) == 0 {
			continue
		}
		if err := s.conn.WriteAudio(fragment); err != nil {
			return err
		}
	}

	return s.conn.WriteControl(protocol.Status(protocol.StatusAIFinishedSpeaking))
}

// endGameLocked runs the terminal evaluation and closes the connection. An
// evaluation failure still closes; a stuck terminal state is worse than a
// missing score.
func (s *Session) endGameLocked(ctx context.Context, reason EndReason) error {
	phase := s.machine.Phase()
	if phase == PhaseEvaluating || phase == PhaseEnded {
		return nil
	}
	if err := s.machine.Transition(PhaseEvaluating); err != nil {
		return err
	}
	s.countdown.Stop()
	if s.transcriber != nil {
		_, _ = s.transcriber.Stop()
		s.transcriber = nil
	}

	s.logger.Info("game_ending", slog.String("reason", string(reason)))
	if err := s.conn.WriteControl(protocol.Status(protocol.StatusEvaluating)); err != nil {
		return err
	}

	eval, err := s.generator.Evaluate(ctx, s.record.History, s.profile)
	if err != nil {
		s.logger.Error("evaluation_failed", slog.String("error", err.Error()))
		_ = s.conn.WriteControl(protocol.Error("could not evaluate the conversation"))
		_ = s.machine.Transition(PhaseEnded)
		return s.conn.Close()
	}

	if s.cfg.Store != nil {
		if serr := s.cfg.Store.EndSession(ctx, s.record.SessionID, eval.Score, eval.Justification); serr != nil {
			s.logger.Error("session_persist_failed", slog.String("error", serr.Error()))
		}
	}
	s.record.Status = scenario.SessionFinished
	s.record.FinalScore = &eval.Score
	s.record.Justification = eval.Justification

	if err := s.conn.WriteControl(protocol.GameOver(eval.Score, eval.Justification)); err != nil {
		return err
	}
	if err := s.machine.Transition(PhaseEnded); err != nil {
		return err
	}
	s.logger.Info("game_over", slog.Int("score", eval.Score))
	return s.conn.Close()
}

// expire runs on the countdown goroutine when the clock hits zero.
// It serializes with the control handlers on the session mutex.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.endGameLocked(ctx, EndReasonTimeout); err != nil {
		s.logger.Error("timeout_end_failed", slog.String("error", err.Error()))
	}
}
