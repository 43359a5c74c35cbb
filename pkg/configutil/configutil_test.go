package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettingsAcceptsKnownKeys(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"api_key": "k",
		"model":   "nova-3",
	}, Schema{Required: []string{"api_key"}, Optional: []string{"model"}})
	if err != nil {
		t.Fatalf("ValidateSettings: %v", err)
	}
}

func TestValidateSettingsReportsAllViolations(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"region":  "eu",
		"voice":   "zeus",
		"api_key": "",
	}, Schema{Required: []string{"api_key"}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"missing: api_key", "unknown:", "region", "voice"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err = %v, missing %q", err, want)
		}
	}
}

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"API-Key": "k",
	}, Schema{Required: []string{"api_key"}})
	if err != nil {
		t.Fatalf("ValidateSettings: %v", err)
	}
}

func TestValidateSettingsAllowUnknown(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"anything": 1,
	}, Schema{AllowUnknown: true})
	if err != nil {
		t.Fatalf("ValidateSettings: %v", err)
	}
}

func TestDecodeSettingsCoercesScalars(t *testing.T) {
	var out struct {
		APIKey     string `mapstructure:"api_key"`
		SampleRate int    `mapstructure:"sample_rate"`
	}
	err := DecodeSettings(map[string]any{
		"apiKey":      "k",
		"sample_rate": "24000",
	}, &out)
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.APIKey != "k" {
		t.Fatalf("api_key = %q", out.APIKey)
	}
	if out.SampleRate != 24000 {
		t.Fatalf("sample_rate = %d", out.SampleRate)
	}
}

func TestDecodeSettingsEmptyInputIsNoop(t *testing.T) {
	out := struct {
		Model string `mapstructure:"model"`
	}{Model: "keep"}
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.Model != "keep" {
		t.Fatalf("model = %q", out.Model)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("value", "x"); err != nil {
		t.Fatalf("RequireString: %v", err)
	}
	err := RequireString("   ", "vendors.stt.settings.api_key")
	if err == nil || !strings.Contains(err.Error(), "vendors.stt.settings.api_key") {
		t.Fatalf("err = %v, want path in message", err)
	}
}
