package analytics

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// LogSink writes each record as one JSON log line. It is the default when no
// broker or bucket is configured.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink logs through l, or the standard logger when l is nil.
func NewLogSink(l *log.Logger) *LogSink {
	if l == nil {
		l = log.Default()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Record(_ context.Context, rec models.AnalyticsRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.logger.Printf("[analytics] %s", b)
	return nil
}

func (s *LogSink) Close() error { return nil }
