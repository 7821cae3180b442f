package jobs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
	"github.com/aqualaguna/direct-commerce-sub002/internal/services"
)

type capturePublisher struct {
	published *models.MonthlyReport
}

func (p *capturePublisher) PublishReport(ctx context.Context, report *models.MonthlyReport) error {
	p.published = report
	return nil
}

func TestMonthlyReporterCoversPriorMonth(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryActivityRepository()
	actor := primitive.NewObjectID()

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	priorMonth := monthStart.AddDate(0, 0, -15) // mid prior month

	for i, kind := range []string{models.ActivityLogin, models.ActivityLogin, models.ActivityPageView} {
		record := &models.ActivityRecord{
			UserID:       &actor,
			ActivityType: kind,
			Success:      i != 1, // one failed login
			CreatedAt:    priorMonth.Add(time.Duration(i) * time.Hour),
		}
		_, err := store.Create(context.Background(), record)
		require.NoError(t, err)
	}

	// Activity in the current month must stay out of the report.
	_, err := store.Create(context.Background(), &models.ActivityRecord{
		UserID:       &actor,
		ActivityType: models.ActivityLogin,
		Success:      true,
		CreatedAt:    monthStart.Add(time.Hour),
	})
	require.NoError(t, err)

	publisher := &capturePublisher{}
	reporter := NewMonthlyReporter(services.NewAggregationService(store, log), publisher, log)

	report, err := reporter.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, monthStart.AddDate(0, -1, 0).Format("2006-01"), report.Month)
	assert.Equal(t, 3, report.Activity.Total)
	assert.Equal(t, 2, report.Logins.TotalLogins)
	assert.Equal(t, 1, report.Logins.FailedLogins)
	assert.Equal(t, 1, report.Logins.UniqueUsers)
	require.NotNil(t, publisher.published)
	assert.Equal(t, report.Month, publisher.published.Month)
}
