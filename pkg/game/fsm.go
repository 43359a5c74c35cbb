// Package game contains the server-side session controller: the per
// connection phase machine, the countdown timer, and the outburst
// orchestrator that fans synthesis out while keeping delivery ordered.
package game

import "fmt"

// Phase is the lifecycle state of one live session.
type Phase int

const (
	// PhaseIdle is the zero value before the session is started.
	PhaseIdle Phase = iota
	// PhaseAwaitingFirst holds until the scenario's opening line is voiced.
	PhaseAwaitingFirst
	// PhaseSpeaking covers the normal synthesis path for one AI turn.
	PhaseSpeaking
	// PhaseSpamming covers the outburst path for one AI turn.
	PhaseSpamming
	// PhaseListening is the rest state: the user may start speaking.
	PhaseListening
	// PhaseTranscribing covers closing the capture and collecting text.
	PhaseTranscribing
	// PhaseThinking covers the response generation round trip.
	PhaseThinking
	// PhaseEvaluating covers the terminal scoring round trip.
	PhaseEvaluating
	// PhaseEnded is terminal.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirst:
		return "awaiting_first_utterance"
	case PhaseSpeaking:
		return "speaking"
	case PhaseSpamming:
		return "spamming"
	case PhaseListening:
		return "listening"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseThinking:
		return "thinking"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// InvalidTransitionError reports an attempted transition the table forbids.
type InvalidTransitionError struct {
	From Phase
	To   Phase
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}

// transitions lists the legal next phases per phase. PhaseEnded is terminal.
var transitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseAwaitingFirst, PhaseEnded},
	PhaseAwaitingFirst: {PhaseSpeaking, PhaseEnded},
	PhaseSpeaking:      {PhaseListening, PhaseEvaluating, PhaseEnded},
	PhaseSpamming:      {PhaseListening, PhaseEvaluating, PhaseEnded},
	PhaseListening:     {PhaseTranscribing, PhaseEvaluating, PhaseEnded},
	PhaseTranscribing:  {PhaseThinking, PhaseListening, PhaseEvaluating, PhaseEnded},
	PhaseThinking:      {PhaseSpeaking, PhaseSpamming, PhaseListening, PhaseEvaluating, PhaseEnded},
	PhaseEvaluating:    {PhaseEnded},
	PhaseEnded:         {},
}

// Machine tracks a session's phase and enforces the transition table.
// Not safe for concurrent use; the owning session serializes access.
type Machine struct {
	phase Phase
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Transition moves to the given phase or fails with InvalidTransitionError.
func (m *Machine) Transition(to Phase) error {
	for _, allowed := range transitions[m.phase] {
		if allowed == to {
			m.phase = to
			return nil
		}
	}
	return InvalidTransitionError{From: m.phase, To: to}
}
