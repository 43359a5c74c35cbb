// Package scenario holds the content model for the conversation simulator:
// the scenarios users rehearse against and the per-game session records.
package scenario

import (
	"time"

	"github.com/google/uuid"
)

// Gender selects the synthesis voice pool for a character.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Scenario is one rehearsable situation with a fully specified AI character.
type Scenario struct {
	ID                string    `json:"id" bson:"id"`
	Title             string    `json:"title" bson:"title"`
	CharacterName     string    `json:"character_name" bson:"character_name"`
	CharacterGender   Gender    `json:"character_gender" bson:"character_gender"`
	PersonalityPrompt string    `json:"personality_prompt" bson:"personality_prompt"`
	InitialDialogue   string    `json:"initial_dialogue" bson:"initial_dialogue"`
	IsCustom          bool      `json:"is_custom" bson:"is_custom"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Entry is a single line of the conversation transcript.
type Entry struct {
	Role      Role      `json:"role" bson:"role"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SessionStatus is the persistence-level state of a game session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionFinished SessionStatus = "finished"
)

// GameSession is the persisted record of one game. The live connection state
// lives in the game package; this struct is what the store reads and writes.
type GameSession struct {
	SessionID     uuid.UUID     `json:"session_id" bson:"session_id"`
	UserID        string        `json:"user_id" bson:"user_id"`
	ScenarioID    string        `json:"scenario_id" bson:"scenario_id"`
	Status        SessionStatus `json:"status" bson:"status"`
	History       []Entry       `json:"conversation_history" bson:"conversation_history"`
	FinalScore    *int          `json:"final_score,omitempty" bson:"final_score,omitempty"`
	Justification string        `json:"final_justification,omitempty" bson:"final_justification,omitempty"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

// NewGameSession creates an active session seeded with the scenario's
// opening line as the first AI entry.
func NewGameSession(userID string, sc Scenario) GameSession {
	now := time.Now().UTC()
	return GameSession{
		SessionID:  uuid.New(),
		UserID:     userID,
		ScenarioID: sc.ID,
		Status:     SessionActive,
		History: []Entry{
			{Role: RoleAI, Message: sc.InitialDialogue, Timestamp: now},
		},
		CreatedAt: now,
	}
}
