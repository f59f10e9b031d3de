package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportLog keeps a durable, append-only record of user reports.
// Reports are informational; nothing here feeds back into blacklist or warning state.
type ReportLog struct {
	mu      sync.RWMutex
	docs    DocumentStore
	reports []Report
}

// NewReportLog creates a report log backed by the given document store.
func NewReportLog(ctx context.Context, docs DocumentStore) *ReportLog {
	l := &ReportLog{docs: docs}

	var doc reportsDocument
	if err := loadDocument(ctx, docs, DocumentReports, &doc); err != nil {
		log.Error().Err(err).Msg("moderation: failed to load reports, starting empty")
		return l
	}
	l.reports = doc.Reports
	return l
}

// Record appends a report, assigning its ID and creation time when unset.
func (l *ReportLog) Record(ctx context.Context, report Report) (Report, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reports = append(l.reports, report)
	if err := saveDocument(ctx, l.docs, DocumentReports, reportsDocument{Reports: l.reports}); err != nil {
		l.reports = l.reports[:len(l.reports)-1]
		log.Error().Err(err).Str("op", "record_report").Str("key", report.ID).Msg("moderation: failed to persist report")
		return Report{}, err
	}

	log.Info().
		Str("report_id", report.ID).
		Str("group", report.GroupID).
		Str("reporter", report.ReporterID).
		Str("user", report.TargetID).
		Str("reason", report.Reason).
		Msg("moderation: report recorded")

	return report, nil
}

// Recent returns the most recent reports, oldest first. limit <= 0 returns all.
func (l *ReportLog) Recent(ctx context.Context, limit int) []Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	reports := l.reports
	if limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}
	result := make([]Report, len(reports))
	copy(result, reports)
	return result
}
