package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSTTOpen      ReasonCode = "stt_open"
	ReasonSTTSend      ReasonCode = "stt_send"
	ReasonSTTClose     ReasonCode = "stt_close"
	ReasonSTTRateLimit ReasonCode = "stt_rate_limit"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonLLMRespond          ReasonCode = "llm_respond"
	ReasonLLMEvaluate         ReasonCode = "llm_evaluate"
	ReasonLLMRateLimit        ReasonCode = "llm_rate_limit"
	ReasonScenarioGenerate    ReasonCode = "scenario_generate"
	ReasonScenarioParseFailed ReasonCode = "scenario_parse_failed"

	ReasonTransportSend ReasonCode = "transport_send"

	ReasonStoreRead     ReasonCode = "store_read"
	ReasonStoreWrite    ReasonCode = "store_write"
	ReasonStoreNotFound ReasonCode = "store_not_found"
)
