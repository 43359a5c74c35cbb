// Command crux-client is a terminal probe for the game websocket. It starts
// a game over REST, attaches to the socket, and drives the playback engine
// with keyboard commands instead of a microphone.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cruxhq/crux/pkg/client"
	"github.com/cruxhq/crux/pkg/logging"
	"github.com/cruxhq/crux/pkg/protocol"
)

// consolePlayer simulates playback pacing so the countdown coupling is
// observable from the terminal.
type consolePlayer struct{}

func (consolePlayer) Play(ctx context.Context, audio []byte) error {
	fmt.Printf("[audio] playing %d bytes\n", len(audio))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	scenarioID := flag.String("scenario", "forgotten_birthday", "scenario to play")
	userID := flag.String("user", "probe", "user id")
	flag.Parse()

	logger := logging.InitLogger(slog.LevelInfo, "text")
	slog.SetDefault(logger)

	sessionID, err := startGame(*server, *scenarioID, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start game: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("game %s started, connecting...\n", sessionID)

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws/game/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	engine := client.NewEngine(client.Config{
		Player: consolePlayer{},
		OnText: func(role, text string) {
			fmt.Printf("[%s] %s\n", role, text)
		},
		OnGameOver: func(score int, justification string) {
			fmt.Printf("\n=== GAME OVER: %d/10 — %s ===\n", score, justification)
		},
		OnError: func(message string) {
			fmt.Printf("[server error] %s\n", message)
		},
		Logger: logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.TextMessage:
				msg, err := protocol.DecodeServerMessage(payload)
				if err != nil {
					continue
				}
				engine.HandleControl(msg)
			case websocket.BinaryMessage:
				engine.HandleAudio(payload)
			}
		}
	}()

	fmt.Println("commands: start | stop | end | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var action string
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			engine.Interrupt()
			action = protocol.ActionStartSpeaking
		case "stop":
			action = protocol.ActionStopSpeaking
		case "end":
			action = protocol.ActionEndGame
		case "quit":
			_ = conn.Close()
			<-done
			return
		default:
			fmt.Println("commands: start | stop | end | quit")
			continue
		}
		if err := conn.WriteJSON(protocol.ClientMessage{Action: action}); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			break
		}
		select {
		case <-done:
			return
		default:
		}
	}
	<-done
}

func startGame(server, scenarioID, userID string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"scenario_id": scenarioID,
		"user_id":     userID,
	})
	resp, err := http.Post(server+"/api/games", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.SessionID, nil
}
