package enrichment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/repository"
)

// Poller waits for the external enrichment pipeline to write derived content
// onto a record, by re-fetching the record on a fixed budget. The pipeline
// writes whatever shape it has (plain text, JSON fragments, lifecycle-tagged
// objects) into the analyzed-content column; the poller normalizes each fetch.
type Poller struct {
	records  repository.RecordRepository
	logger   *slog.Logger
	attempts int
	interval time.Duration

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(records repository.RecordRepository, logger *slog.Logger, attempts int, interval time.Duration) *Poller {
	if attempts <= 0 {
		attempts = 30
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		records:  records,
		logger:   logger.With("component", "enrichment_poller"),
		attempts: attempts,
		interval: interval,
		sleep:    defaultSleep,
	}
}

// Await polls until derived content arrives or the budget is exhausted.
// Budget exhaustion is not a failure: it returns ("", false, nil) and the
// caller proceeds without enrichment. Individual fetch errors are logged and
// consume one attempt each; only context cancellation aborts early.
func (p *Poller) Await(ctx context.Context, recordID uuid.UUID) (string, bool, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		rec, err := p.records.GetByID(ctx, recordID)
		if err != nil {
			p.logger.WarnContext(ctx, "Enrichment poll fetch failed", "error", err, "record_id", recordID, "attempt", attempt)
		} else if content, ok := ContentArrived(parseRaw(rec.AnalyzedFileContent)); ok {
			p.logger.InfoContext(ctx, "Derived content arrived", "record_id", recordID, "attempt", attempt, "content_len", len(content))
			return content, true, nil
		}

		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return "", false, err
		}
	}

	p.logger.WarnContext(ctx, "Enrichment poll budget exhausted, proceeding without derived content",
		"record_id", recordID, "attempts", p.attempts)
	return "", false, nil
}

// parseRaw decodes the stored column value. The pipeline sometimes writes raw
// JSON (arrays of fragments, lifecycle objects) and sometimes plain prose.
func parseRaw(stored string) any {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return stored
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
