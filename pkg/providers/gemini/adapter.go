// Package gemini implements response generation, conversation evaluation and
// scenario generation on top of the Google Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/cruxhq/crux/pkg/errorsx"
	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/resilience"
	"github.com/cruxhq/crux/pkg/scenario"
)

// Config holds the Gemini adapter settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	BreakMarker string
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.9
	}
	if c.BreakMarker == "" {
		c.BreakMarker = "BREAK"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Generator talks to the Gemini API. It implements both llm.ResponseGenerator
// and llm.ScenarioGenerator.
type Generator struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

var (
	_ llm.ResponseGenerator = (*Generator)(nil)
	_ llm.ScenarioGenerator = (*Generator)(nil)
)

// NewGenerator creates a Gemini-backed generator.
func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, errorsx.Wrap(fmt.Errorf("gemini: api key is required"), errorsx.ReasonLLMRespond)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("gemini: create client: %w", err), errorsx.ReasonLLMRespond)
	}

	return &Generator{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With(slog.String("component", "gemini")),
	}, nil
}

func (g *Generator) Name() string { return "gemini" }

// Respond generates the character's next line. The returned text may contain
// the configured break marker when the character erupts into an outburst.
func (g *Generator) Respond(ctx context.Context, history []scenario.Entry, profile llm.Profile) (string, error) {
	prompt := respondPrompt(history, profile, g.cfg.BreakMarker)

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.cfg.Temperature),
	})
	if err != nil {
		if isRateLimited(err) {
			return "", resilience.RateLimitError{Provider: "gemini", Message: err.Error()}
		}
		return "", errorsx.Wrap(fmt.Errorf("gemini: generate response: %w", err), errorsx.ReasonLLMRespond)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errorsx.Wrap(fmt.Errorf("gemini: empty response"), errorsx.ReasonLLMRespond)
	}

	g.logger.Debug("llm_response_generated",
		slog.Int("history_len", len(history)),
		slog.Int("chars", len(text)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return text, nil
}

// Evaluate scores the finished conversation. Gemini is asked for structured
// JSON so the score and justification parse deterministically.
func (g *Generator) Evaluate(ctx context.Context, history []scenario.Entry, profile llm.Profile) (llm.Evaluation, error) {
	prompt := evaluatePrompt(history, profile)

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"score":         {Type: genai.TypeInteger},
				"justification": {Type: genai.TypeString},
			},
			Required: []string{"score", "justification"},
		},
	})
	if err != nil {
		if isRateLimited(err) {
			return llm.Evaluation{}, resilience.RateLimitError{Provider: "gemini", Message: err.Error()}
		}
		return llm.Evaluation{}, errorsx.Wrap(fmt.Errorf("gemini: evaluate conversation: %w", err), errorsx.ReasonLLMEvaluate)
	}

	var eval llm.Evaluation
	if err := json.Unmarshal([]byte(resp.Text()), &eval); err != nil {
		return llm.Evaluation{}, errorsx.Wrap(fmt.Errorf("gemini: parse evaluation: %w", err), errorsx.ReasonLLMEvaluate)
	}
	if eval.Score < 0 {
		eval.Score = 0
	}
	if eval.Score > 10 {
		eval.Score = 10
	}

	g.logger.Info("conversation_evaluated", slog.Int("score", eval.Score))
	return eval, nil
}

type generatedScenario struct {
	Title             string `json:"title"`
	CharacterName     string `json:"character_name"`
	CharacterGender   string `json:"character_gender"`
	PersonalityPrompt string `json:"personality_prompt"`
	InitialDialogue   string `json:"initial_dialogue"`
}

// GenerateScenario builds a custom scenario from a player's free-form
// description.
func (g *Generator) GenerateScenario(ctx context.Context, description string) (scenario.Scenario, error) {
	prompt := generateScenarioPrompt(description)

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":              {Type: genai.TypeString},
				"character_name":     {Type: genai.TypeString},
				"character_gender":   {Type: genai.TypeString, Enum: []string{"male", "female"}},
				"personality_prompt": {Type: genai.TypeString},
				"initial_dialogue":   {Type: genai.TypeString},
			},
			Required: []string{"title", "character_name", "character_gender", "personality_prompt", "initial_dialogue"},
		},
	})
	if err != nil {
		if isRateLimited(err) {
			return scenario.Scenario{}, resilience.RateLimitError{Provider: "gemini", Message: err.Error()}
		}
		return scenario.Scenario{}, errorsx.Wrap(fmt.Errorf("gemini: generate scenario: %w", err), errorsx.ReasonScenarioGenerate)
	}

	var gen generatedScenario
	if err := json.Unmarshal([]byte(resp.Text()), &gen); err != nil {
		return scenario.Scenario{}, errorsx.Wrap(fmt.Errorf("gemini: parse scenario: %w", err), errorsx.ReasonScenarioParseFailed)
	}
	if gen.Title == "" || gen.CharacterName == "" || gen.PersonalityPrompt == "" || gen.InitialDialogue == "" {
		return scenario.Scenario{}, errorsx.Wrap(fmt.Errorf("gemini: scenario missing required fields"), errorsx.ReasonScenarioParseFailed)
	}

	gender := scenario.GenderFemale
	if strings.EqualFold(gen.CharacterGender, "male") {
		gender = scenario.GenderMale
	}

	sc := scenario.Scenario{
		ID:                uuid.NewString(),
		Title:             gen.Title,
		CharacterName:     gen.CharacterName,
		CharacterGender:   gender,
		PersonalityPrompt: gen.PersonalityPrompt,
		InitialDialogue:   gen.InitialDialogue,
		IsCustom:          true,
		CreatedAt:         time.Now().UTC(),
	}

	g.logger.Info("scenario_generated", slog.String("scenario_id", sc.ID), slog.String("title", sc.Title))
	return sc, nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "resource_exhausted")
}
