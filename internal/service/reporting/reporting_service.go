package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

const dateLayout = "2006-01-02"

// SummaryProvider returns the current zone summary.
type SummaryProvider interface {
	Summary(ctx context.Context, includeArchived bool) ([]models.ZoneSummary, error)
}

// ReportStore persists daily reports.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// SheetWriter appends a report row to a spreadsheet.
type SheetWriter interface {
	AppendRow(ctx context.Context, values []any) error
}

// Notifier delivers a text digest.
type Notifier interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Service builds the daily zone health report and fans it out.
type Service struct {
	summaries SummaryProvider
	store     ReportStore
	sheet     SheetWriter
	notifier  Notifier
	recipient string
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// Option customises optional outputs of the service.
type Option func(*Service)

// WithSheet appends every report to a spreadsheet.
func WithSheet(sheet SheetWriter) Option {
	return func(s *Service) { s.sheet = sheet }
}

// WithNotifier sends every report as a digest to recipient.
func WithNotifier(notifier Notifier, recipient string) Option {
	return func(s *Service) {
		s.notifier = notifier
		s.recipient = recipient
	}
}

// WithLocation sets the timezone that decides the report date.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService wires a new reporting service instance.
func NewService(summaries SummaryProvider, store ReportStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		summaries: summaries,
		store:     store,
		location:  time.UTC,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report is a built daily report with the zones that need attention.
type Report struct {
	models.DailyReport
	Stressed []string
	Awaiting []string
}

// BuildDailyReport counts active zones by status at the given moment.
func (s *Service) BuildDailyReport(ctx context.Context, at time.Time) (Report, error) {
	summaries, err := s.summaries.Summary(ctx, false)
	if err != nil {
		return Report{}, fmt.Errorf("load zone summary: %w", err)
	}

	local := at.In(s.location)
	report := Report{
		DailyReport: models.DailyReport{
			ID:        uuid.New(),
			Date:      time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			ZoneCount: len(summaries),
			CreatedAt: at.UTC().Truncate(time.Microsecond),
		},
	}

	for _, zone := range summaries {
		switch zone.ZoneStatus {
		case models.ZoneStatusOK:
			report.OKZones++
		case models.ZoneStatusStressed:
			report.StressedZones++
			report.Stressed = append(report.Stressed, zone.Name)
		default:
			report.UnknownZones++
		}
		if latest := zone.LatestRecommendation; latest != nil && latest.DecisionStatus == models.DecisionPending {
			report.AwaitingDecision++
			report.Awaiting = append(report.Awaiting, zone.Name)
		}
	}

	return report, nil
}

// Run builds, persists and distributes today's report. Sheet and digest
// failures are logged; the persisted report is kept.
func (s *Service) Run(ctx context.Context) (Report, error) {
	report, err := s.BuildDailyReport(ctx, s.now())
	if err != nil {
		return Report{}, err
	}

	if err := s.store.SaveDailyReport(ctx, report.DailyReport); err != nil {
		return Report{}, fmt.Errorf("save daily report: %w", err)
	}
	s.logger.Info("daily report saved",
		zap.String("report_id", report.ID.String()),
		zap.Int("zones", report.ZoneCount),
		zap.Int("stressed", report.StressedZones),
		zap.Int("awaiting_decision", report.AwaitingDecision),
	)

	if s.sheet != nil {
		if err := s.sheet.AppendRow(ctx, SheetRow(report.DailyReport)); err != nil {
			s.logger.Error("failed to export report to sheet", zap.Error(err))
		}
	}

	if s.notifier != nil {
		if _, err := s.notifier.SendText(ctx, s.recipient, FormatDigest(report)); err != nil {
			s.logger.Error("failed to send report digest", zap.Error(err))
		} else {
			s.logger.Info("report digest sent")
		}
	}

	return report, nil
}

// SheetRow lays a report out in the column order of the report range.
func SheetRow(r models.DailyReport) []any {
	return []any{
		r.Date.Format(dateLayout),
		r.ZoneCount,
		r.OKZones,
		r.StressedZones,
		r.UnknownZones,
		r.AwaitingDecision,
		r.CreatedAt.Format(time.RFC3339),
	}
}

// FormatDigest renders a report as a short text message.
func FormatDigest(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Zone health %s\n", r.Date.Format(dateLayout))
	fmt.Fprintf(&b, "Zones: %d (ok %d, stressed %d, unknown %d)\n", r.ZoneCount, r.OKZones, r.StressedZones, r.UnknownZones)

	if len(r.Stressed) > 0 {
		fmt.Fprintf(&b, "Stressed: %s\n", strings.Join(r.Stressed, ", "))
	}
	if r.AwaitingDecision > 0 {
		fmt.Fprintf(&b, "Awaiting decision: %d (%s)", r.AwaitingDecision, strings.Join(r.Awaiting, ", "))
	} else {
		b.WriteString("No recommendation awaits a decision.")
	}

	return b.String()
}
