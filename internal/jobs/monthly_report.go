package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/services"
)

// ReportPublisher pushes a finished report to an external consumer.
// Publishing is best-effort; the report is always logged.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *models.MonthlyReport) error
}

// MonthlyReporter generates the activity report for the prior calendar
// month via the aggregation engine.
type MonthlyReporter struct {
	Aggregation *services.AggregationService
	Publisher   ReportPublisher
	Log         *logrus.Logger
}

// NewMonthlyReporter creates a new instance of MonthlyReporter.
func NewMonthlyReporter(agg *services.AggregationService, publisher ReportPublisher, log *logrus.Logger) *MonthlyReporter {
	return &MonthlyReporter{Aggregation: agg, Publisher: publisher, Log: log}
}

// Run aggregates the prior calendar month and logs a summary.
func (j *MonthlyReporter) Run(ctx context.Context) (*models.MonthlyReport, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	priorStart := monthStart.AddDate(0, -1, 0)

	activity, err := j.Aggregation.AggregateByType(ctx, &priorStart, &monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly activity: %v", err)
	}

	logins, err := j.Aggregation.LoginAnalysisBetween(ctx, priorStart, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze monthly logins: %v", err)
	}

	report := &models.MonthlyReport{
		Month:       priorStart.Format("2006-01"),
		Activity:    activity,
		Logins:      logins,
		GeneratedAt: now,
	}

	j.Log.WithFields(logrus.Fields{
		"month":         report.Month,
		"total":         activity.Total,
		"types":         len(activity.Types),
		"total_logins":  logins.TotalLogins,
		"unique_users":  logins.UniqueUsers,
		"failed_logins": logins.FailedLogins,
	}).Info("Monthly activity report generated")

	if j.Publisher != nil {
		if err := j.Publisher.PublishReport(ctx, report); err != nil {
			j.Log.WithError(err).Warn("Failed to publish monthly report")
		}
	}
	return report, nil
}
