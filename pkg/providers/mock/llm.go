package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/scenario"
)

// Generator returns scripted responses in order, then repeats the last one.
type Generator struct {
	// Responses are returned by successive Respond calls.
	Responses []string
	// RespondErr fails every Respond call.
	RespondErr error
	// Eval is returned by Evaluate.
	Eval llm.Evaluation
	// EvaluateErr fails Evaluate.
	EvaluateErr error

	mu    sync.Mutex
	calls int
	// LastHistory is the history passed to the most recent call.
	lastHistory []scenario.Entry
}

var _ llm.ResponseGenerator = (*Generator)(nil)

func (g *Generator) Name() string { return "mock" }

func (g *Generator) Respond(ctx context.Context, history []scenario.Entry, profile llm.Profile) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.lastHistory = append([]scenario.Entry(nil), history...)
	g.mu.Unlock()

	if g.RespondErr != nil {
		return "", g.RespondErr
	}
	if len(g.Responses) == 0 {
		return "Okay.", nil
	}
	if n > len(g.Responses) {
		n = len(g.Responses)
	}
	return g.Responses[n-1], nil
}

func (g *Generator) Evaluate(ctx context.Context, history []scenario.Entry, profile llm.Profile) (llm.Evaluation, error) {
	g.mu.Lock()
	g.lastHistory = append([]scenario.Entry(nil), history...)
	g.mu.Unlock()
	if g.EvaluateErr != nil {
		return llm.Evaluation{}, g.EvaluateErr
	}
	return g.Eval, nil
}

// RespondCalls reports how many times Respond ran.
func (g *Generator) RespondCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// LastHistory returns the history passed to the most recent call.
func (g *Generator) LastHistory() []scenario.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]scenario.Entry(nil), g.lastHistory...)
}

// ScenarioGenerator returns a fixed custom scenario built from the
// description.
type ScenarioGenerator struct {
	Err error
}

var _ llm.ScenarioGenerator = (*ScenarioGenerator)(nil)

func (g *ScenarioGenerator) GenerateScenario(ctx context.Context, description string) (scenario.Scenario, error) {
	if g.Err != nil {
		return scenario.Scenario{}, g.Err
	}
	return scenario.Scenario{
		ID:                uuid.NewString(),
		Title:             "Custom: " + description,
		CharacterName:     "Alex",
		CharacterGender:   scenario.GenderFemale,
		PersonalityPrompt: "You are Alex. " + description,
		InitialDialogue:   "We need to talk.",
		IsCustom:          true,
		CreatedAt:         time.Now().UTC(),
	}, nil
}
