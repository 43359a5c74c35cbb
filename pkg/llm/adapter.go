// Package llm defines the narrow contract the game loop has with a language
// model: produce the character's next line, and score the finished
// conversation.
package llm

import (
	"context"

	"github.com/cruxhq/crux/pkg/scenario"
)

// Profile is the behavior profile driving a character's responses.
type Profile struct {
	ScenarioTitle     string
	CharacterName     string
	PersonalityPrompt string
}

// Evaluation is the terminal verdict on the user's performance.
type Evaluation struct {
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// ResponseGenerator produces character responses and final evaluations.
// Respond may embed break markers signaling a rapid-fire outburst; the game
// layer owns splitting them.
type ResponseGenerator interface {
	Name() string
	Respond(ctx context.Context, history []scenario.Entry, profile Profile) (string, error)
	Evaluate(ctx context.Context, history []scenario.Entry, profile Profile) (Evaluation, error)
}

// ScenarioGenerator builds a complete custom scenario from a free-text
// description.
type ScenarioGenerator interface {
	GenerateScenario(ctx context.Context, description string) (scenario.Scenario, error)
}

// FormatHistory renders the conversation as a plain transcript for prompting.
func FormatHistory(history []scenario.Entry) string {
	out := ""
	for _, entry := range history {
		switch entry.Role {
		case scenario.RoleAI:
			out += "AI: " + entry.Message + "\n"
		case scenario.RoleUser:
			out += "User: " + entry.Message + "\n"
		}
	}
	for len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out
}
