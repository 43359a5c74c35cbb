package game

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cruxhq/crux/pkg/protocol"
	"github.com/cruxhq/crux/pkg/scenario"
)

// SplitOutburst splits a marker-laden response into its ordered utterances.
// Empty segments after trimming are discarded. Text without the marker comes
// back as a single segment.
func SplitOutburst(text, marker string) []string {
	parts := strings.Split(text, marker)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

// runOutburst drives the spam path for one AI turn: announce the streak,
// synthesize every segment concurrently, then deliver text and audio pairs
// strictly in segment order and close the streak. A failed synthesis keeps
// its slot with no audio so the rest of the sequence is unaffected.
func (s *Session) runOutburst(ctx context.Context, segments []string) error {
	if err := s.conn.WriteControl(protocol.Status(protocol.StatusAngrySpamStreak)); err != nil {
		return err
	}

	// Fan out; slots capture per-segment results so a failure degrades one
	// utterance instead of aborting the streak.
	audio := make([][]byte, len(segments))
	group, gctx := errgroup.WithContext(ctx)
	for i, segment := range segments {
		group.Go(func() error {
			payload, err := s.synth.SynthesizeAll(gctx, segment, s.voice)
			if err != nil {
				s.logger.Warn("spam_synthesis_failed",
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
				return nil
			}
			audio[i] = payload
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, segment := range segments {
		if err := s.conn.WriteControl(protocol.SpamMessage(segment, i, len(segments))); err != nil {
			return err
		}
		if len(audio[i]) > 0 {
			if err := s.conn.WriteAudio(audio[i]); err != nil {
				return err
			}
		}
		s.record.History = append(s.record.History, scenario.Entry{
			Role:      scenario.RoleAI,
			Message:   segment,
			Timestamp: now,
		})
	}

	return s.conn.WriteControl(protocol.Status(protocol.StatusSpamStreakComplete))
}
