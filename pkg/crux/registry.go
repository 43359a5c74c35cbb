package crux

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cruxhq/crux/pkg/adapters/stt"
	"github.com/cruxhq/crux/pkg/adapters/tts"
	"github.com/cruxhq/crux/pkg/configutil"
	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/providers/deepgram"
	"github.com/cruxhq/crux/pkg/providers/gemini"
	"github.com/cruxhq/crux/pkg/providers/mock"
)

// STTBuilder returns a per-session transcriber factory for a vendor.
type STTBuilder func(cfg Config) (func(sessionID string) stt.Factory, error)

// TTSBuilder returns a synthesizer for a vendor.
type TTSBuilder func(cfg Config) (tts.Synthesizer, error)

// LLMBuilder returns the response generator and, when the vendor supports
// it, a scenario generator for a vendor. The scenario generator may be nil.
type LLMBuilder func(ctx context.Context, cfg Config) (llm.ResponseGenerator, llm.ScenarioGenerator, error)

// ProviderRegistry maps vendor names to builders.
type ProviderRegistry struct {
	stt map[string]STTBuilder
	tts map[string]TTSBuilder
	llm map[string]LLMBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTBuilder),
		tts: make(map[string]TTSBuilder),
		llm: make(map[string]LLMBuilder),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, builder STTBuilder) {
	r.stt[normalizeProvider(name)] = builder
}

func (r *ProviderRegistry) RegisterTTS(name string, builder TTSBuilder) {
	r.tts[normalizeProvider(name)] = builder
}

func (r *ProviderRegistry) RegisterLLM(name string, builder LLMBuilder) {
	r.llm[normalizeProvider(name)] = builder
}

func (r *ProviderRegistry) BuildSTT(cfg Config) (func(sessionID string) stt.Factory, error) {
	builder := r.stt[normalizeProvider(cfg.Vendors.STT.Provider)]
	if builder == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", cfg.Vendors.STT.Provider)
	}
	return builder(cfg)
}

func (r *ProviderRegistry) BuildTTS(cfg Config) (tts.Synthesizer, error) {
	builder := r.tts[normalizeProvider(cfg.Vendors.TTS.Provider)]
	if builder == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", cfg.Vendors.TTS.Provider)
	}
	return builder(cfg)
}

func (r *ProviderRegistry) BuildLLM(ctx context.Context, cfg Config) (llm.ResponseGenerator, llm.ScenarioGenerator, error) {
	builder := r.llm[normalizeProvider(cfg.Vendors.LLM.Provider)]
	if builder == nil {
		return nil, nil, fmt.Errorf("llm provider not registered: %s", cfg.Vendors.LLM.Provider)
	}
	return builder(ctx, cfg)
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultRegistry registers the built-in vendors: deepgram for speech both
// ways, gemini for generation, and mock versions of all three for local
// runs without credentials.
func DefaultRegistry(logger *slog.Logger) *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterSTT("deepgram", func(cfg Config) (func(sessionID string) stt.Factory, error) {
		if err := validateSettings("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "encoding"},
		}); err != nil {
			return nil, err
		}
		var settings struct {
			APIKey   string `mapstructure:"api_key"`
			Model    string `mapstructure:"model"`
			Language string `mapstructure:"language"`
			Encoding string `mapstructure:"encoding"`
		}
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, fmt.Errorf("decode stt settings: %w", err)
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return func(sessionID string) stt.Factory {
			return deepgram.Factory(deepgram.STTConfig{
				APIKey:    settings.APIKey,
				Model:     settings.Model,
				Language:  settings.Language,
				Encoding:  settings.Encoding,
				SessionID: sessionID,
			})
		}, nil
	})

	r.RegisterSTT("mock", func(cfg Config) (func(sessionID string) stt.Factory, error) {
		if err := validateSettings("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcript"},
		}); err != nil {
			return nil, err
		}
		var settings struct {
			Transcript string `mapstructure:"transcript"`
		}
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, fmt.Errorf("decode stt settings: %w", err)
		}
		factory := &mock.TranscriberFactory{Transcript: settings.Transcript}
		return func(sessionID string) stt.Factory {
			return factory.Factory()
		}, nil
	})

	r.RegisterTTS("deepgram", func(cfg Config) (tts.Synthesizer, error) {
		if err := validateSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"container", "encoding", "sample_rate"},
		}); err != nil {
			return nil, err
		}
		var settings struct {
			APIKey     string `mapstructure:"api_key"`
			Container  string `mapstructure:"container"`
			Encoding   string `mapstructure:"encoding"`
			SampleRate int    `mapstructure:"sample_rate"`
		}
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, fmt.Errorf("decode tts settings: %w", err)
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.NewSpeakSynthesizer(deepgram.TTSConfig{
			APIKey:     settings.APIKey,
			Container:  settings.Container,
			Encoding:   settings.Encoding,
			SampleRate: settings.SampleRate,
		}), nil
	})

	r.RegisterTTS("mock", func(cfg Config) (tts.Synthesizer, error) {
		if err := validateSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{}); err != nil {
			return nil, err
		}
		return &mock.Synthesizer{}, nil
	})

	r.RegisterLLM("gemini", func(ctx context.Context, cfg Config) (llm.ResponseGenerator, llm.ScenarioGenerator, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "temperature"},
		}); err != nil {
			return nil, nil, err
		}
		var settings struct {
			APIKey      string  `mapstructure:"api_key"`
			Model       string  `mapstructure:"model"`
			Temperature float32 `mapstructure:"temperature"`
		}
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, nil, fmt.Errorf("decode llm settings: %w", err)
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, nil, err
		}
		gen, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			BreakMarker: cfg.Game.BreakMarker,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return llm.NewCircuitBreakerGenerator(gen, nil), gen, nil
	})

	r.RegisterLLM("mock", func(ctx context.Context, cfg Config) (llm.ResponseGenerator, llm.ScenarioGenerator, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"responses"},
		}); err != nil {
			return nil, nil, err
		}
		var settings struct {
			Responses []string `mapstructure:"responses"`
		}
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, nil, fmt.Errorf("decode llm settings: %w", err)
		}
		return &mock.Generator{Responses: settings.Responses}, &mock.ScenarioGenerator{}, nil
	})

	return r
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
