// Package store persists scenarios and game sessions. Sessions are loaded
// once when a websocket connects and written back when the game ends; the
// live conversation is not persisted turn by turn.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cruxhq/crux/pkg/scenario"
)

// ErrNotFound is returned when a scenario or session does not exist.
var ErrNotFound = errors.New("not found")

type Store interface {
	CreateScenario(ctx context.Context, sc scenario.Scenario) error
	GetScenario(ctx context.Context, id string) (scenario.Scenario, error)
	ListScenarios(ctx context.Context) ([]scenario.Scenario, error)

	CreateSession(ctx context.Context, gs scenario.GameSession) error
	GetSession(ctx context.Context, id uuid.UUID) (scenario.GameSession, error)
	// EndSession marks the session finished and records the verdict.
	EndSession(ctx context.Context, id uuid.UUID, score int, justification string) error

	Close(ctx context.Context) error
}

// Seed inserts any builtin scenarios missing from the store.
func Seed(ctx context.Context, s Store, scenarios []scenario.Scenario) (int, error) {
	inserted := 0
	for _, sc := range scenarios {
		_, err := s.GetScenario(ctx, sc.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return inserted, err
		}
		if err := s.CreateScenario(ctx, sc); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
