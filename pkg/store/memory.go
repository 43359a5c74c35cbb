package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cruxhq/crux/pkg/scenario"
)

// Memory is an in-process Store used by tests and local development.
type Memory struct {
	mu        sync.RWMutex
	scenarios map[string]scenario.Scenario
	sessions  map[uuid.UUID]scenario.GameSession
}

func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[string]scenario.Scenario),
		sessions:  make(map[uuid.UUID]scenario.GameSession),
	}
}

func (m *Memory) CreateScenario(ctx context.Context, sc scenario.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[sc.ID] = sc
	return nil
}

func (m *Memory) GetScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scenarios[id]
	if !ok {
		return scenario.Scenario{}, ErrNotFound
	}
	return sc, nil
}

func (m *Memory) ListScenarios(ctx context.Context) ([]scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]scenario.Scenario, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CreateSession(ctx context.Context, gs scenario.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[gs.SessionID] = gs
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (scenario.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gs, ok := m.sessions[id]
	if !ok {
		return scenario.GameSession{}, ErrNotFound
	}
	return gs, nil
}

func (m *Memory) EndSession(ctx context.Context, id uuid.UUID, score int, justification string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	gs.Status = scenario.SessionFinished
	gs.FinalScore = &score
	gs.Justification = justification
	gs.EndedAt = &now
	m.sessions[id] = gs
	return nil
}

func (m *Memory) Close(ctx context.Context) error { return nil }

var _ Store = (*Memory)(nil)
