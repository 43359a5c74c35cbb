package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/cruxhq/crux/pkg/adapters/stt"
	"github.com/cruxhq/crux/pkg/errorsx"
	"github.com/cruxhq/crux/pkg/logging"
)

type STTConfig struct {
	APIKey    string
	Model     string
	Language  string
	Encoding  string
	SessionID string
}

// LiveTranscriber is one push-to-talk capture window against Deepgram's
// streaming listen API. Final transcript fragments are accumulated as they
// arrive; Stop closes the connection and returns the whole utterance.
type LiveTranscriber struct {
	cfg      STTConfig
	dgClient *client.WSCallback
	ctx      context.Context
	cancel   context.CancelFunc

	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	mu         sync.Mutex
	transcript strings.Builder
	started    bool

	logger *slog.Logger
}

func NewLiveTranscriber(cfg STTConfig) *LiveTranscriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Encoding == "" {
		// Browser push-to-talk records webm/opus.
		cfg.Encoding = "opus"
	}
	logger := logging.NewComponentLogger(slog.Default(), "deepgram_stt")
	return &LiveTranscriber{
		cfg:    cfg,
		logger: logger,
	}
}

func (t *LiveTranscriber) Name() string { return "deepgram_live" }

func (t *LiveTranscriber) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.pipeReader, t.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		Encoding:    t.cfg.Encoding,
		SmartFormat: true,
	}

	t.logger.Info("initializing deepgram connection",
		slog.String("session_id", t.cfg.SessionID),
		slog.String("model", t.cfg.Model),
		slog.String("encoding", t.cfg.Encoding))

	cb := &callback{parent: t}
	dgClient, err := client.NewWSUsingCallback(t.ctx, t.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		t.logger.Error("deepgram_client_create_error",
			slog.String("error", err.Error()),
			slog.String("session_id", t.cfg.SessionID))
		return errorsx.Wrap(err, errorsx.ReasonSTTOpen)
	}
	t.dgClient = dgClient

	if connected := t.dgClient.Connect(); !connected {
		t.logger.Error("deepgram_connect_failed",
			slog.String("session_id", t.cfg.SessionID))
		return errorsx.Wrap(fmt.Errorf("deepgram connection failed"), errorsx.ReasonSTTOpen)
	}

	t.mu.Lock()
	t.started = true
	t.mu.Unlock()

	go func() {
		if err := t.dgClient.Stream(t.pipeReader); err != nil && t.ctx.Err() == nil {
			t.logger.Error("deepgram_stream_error",
				slog.String("error", err.Error()),
				slog.String("session_id", t.cfg.SessionID))
		}
	}()

	return nil
}

func (t *LiveTranscriber) Send(chunk []byte) error {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started || t.pipeWriter == nil {
		return errorsx.Wrap(fmt.Errorf("not started"), errorsx.ReasonSTTSend)
	}
	_, err := t.pipeWriter.Write(chunk)
	if err != nil {
		t.logger.Error("failed to send audio to deepgram",
			slog.String("error", err.Error()),
			slog.String("session_id", t.cfg.SessionID))
		return errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	return nil
}

// Stop closes the vendor connection and returns the accumulated transcript.
// Zero audio sent is not an error; the transcript is simply empty.
func (t *LiveTranscriber) Stop() (string, error) {
	t.mu.Lock()
	started := t.started
	t.started = false
	t.mu.Unlock()
	if !started {
		return "", nil
	}

	if t.pipeWriter != nil {
		_ = t.pipeWriter.Close()
	}
	if t.dgClient != nil {
		t.dgClient.Stop()
	}
	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	out := strings.TrimSpace(t.transcript.String())
	t.mu.Unlock()

	t.logger.Info("deepgram_transcription_closed",
		slog.String("session_id", t.cfg.SessionID),
		slog.Int("transcript_len", len(out)))
	return out, nil
}

// Factory returns an stt.Factory producing one LiveTranscriber per capture.
func Factory(cfg STTConfig) stt.Factory {
	return func() stt.Transcriber {
		return NewLiveTranscriber(cfg)
	}
}

// --- Callback Implementation ---

type callback struct {
	parent *LiveTranscriber
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened",
		slog.String("session_id", c.parent.cfg.SessionID))
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	if !mr.IsFinal && !mr.SpeechFinal {
		return nil
	}

	c.parent.mu.Lock()
	c.parent.transcript.WriteString(transcript)
	c.parent.transcript.WriteString(" ")
	c.parent.mu.Unlock()

	c.parent.logger.Debug("transcript_received",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("transcript", transcript))
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed",
		slog.String("session_id", c.parent.cfg.SessionID))
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("session_id", c.parent.cfg.SessionID),
		slog.String("data", string(byData)))
	return nil
}

var _ stt.Transcriber = (*LiveTranscriber)(nil)
