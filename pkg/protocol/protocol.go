// Package protocol defines the JSON control frames exchanged over a game
// websocket. The same connection also carries binary frames holding raw
// audio; a binary frame is semantically bound to the most recent control
// frame sent on the same side.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client actions (client → server).
const (
	ActionStartSpeaking = "start_speaking"
	ActionStopSpeaking  = "stop_speaking"
	ActionEndGame       = "end_game"
)

// Server statuses (server → client).
const (
	StatusAISpeaking         = "ai_speaking"
	StatusAIFinishedSpeaking = "ai_finished_speaking"
	StatusAIThinking         = "ai_thinking"
	StatusEvaluating         = "evaluating"
	StatusAngrySpamStreak    = "angry_spam_streak"
	StatusSpamMessage        = "spam_message"
	StatusSpamStreakComplete = "spam_streak_complete"
	StatusUserResponseText   = "user_response_text"
	StatusAIResponseText     = "ai_response_text"
	StatusGameOver           = "game_over"
	StatusError              = "error"
)

// ClientMessage is a control frame sent by the client.
type ClientMessage struct {
	Action string `json:"action"`
}

// ServerMessage is a control frame sent by the server. Fields beyond Status
// are populated only for the statuses that carry them.
type ServerMessage struct {
	Status        string `json:"status"`
	Text          string `json:"text,omitempty"`
	Index         *int   `json:"index,omitempty"`
	Total         int    `json:"total,omitempty"`
	Score         *int   `json:"score,omitempty"`
	Justification string `json:"justification,omitempty"`
	Message       string `json:"message,omitempty"`
}

func Status(status string) ServerMessage {
	return ServerMessage{Status: status}
}

func UserResponseText(text string) ServerMessage {
	return ServerMessage{Status: StatusUserResponseText, Text: text}
}

func AIResponseText(text string) ServerMessage {
	return ServerMessage{Status: StatusAIResponseText, Text: text}
}

func SpamMessage(text string, index, total int) ServerMessage {
	return ServerMessage{Status: StatusSpamMessage, Text: text, Index: &index, Total: total}
}

func GameOver(score int, justification string) ServerMessage {
	return ServerMessage{Status: StatusGameOver, Score: &score, Justification: justification}
}

func Error(message string) ServerMessage {
	return ServerMessage{Status: StatusError, Message: message}
}

// DecodeClientMessage parses a client control frame.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	if strings.TrimSpace(msg.Action) == "" {
		return ClientMessage{}, fmt.Errorf("client message missing action")
	}
	return msg, nil
}

// DecodeServerMessage parses a server control frame.
func DecodeServerMessage(raw []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("decode server message: %w", err)
	}
	if strings.TrimSpace(msg.Status) == "" {
		return ServerMessage{}, fmt.Errorf("server message missing status")
	}
	return msg, nil
}
