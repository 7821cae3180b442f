package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
)

// Aggregation periods.
const (
	PeriodHour  = "hour"
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

const defaultAggregationPageSize = 500

// AggregationService produces period-bucketed and type-bucketed
// summaries from the record store. All reads are paginated so memory
// stays proportional to the page size, not the corpus.
type AggregationService struct {
	store    repository.ActivityStore
	log      *logrus.Logger
	pageSize int64
}

// NewAggregationService creates a new instance of AggregationService.
func NewAggregationService(store repository.ActivityStore, log *logrus.Logger) *AggregationService {
	return &AggregationService{store: store, log: log, pageSize: defaultAggregationPageSize}
}

// BucketKey returns the reproducible bucket key for a timestamp. Week
// keys are anchored to the Sunday-aligned start of the week, numbered
// within that start's month.
func BucketKey(period string, t time.Time) string {
	switch period {
	case PeriodHour:
		return t.Format("2006-01-02 15") + ":00"
	case PeriodDay:
		return t.Format("2006-01-02")
	case PeriodWeek:
		weekStart := t.AddDate(0, 0, -int(t.Weekday()))
		weekOfMonth := (weekStart.Day()-1)/7 + 1
		return fmt.Sprintf("%d-W%d", weekStart.Year(), weekOfMonth)
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func resolveWindow(period string, start, end *time.Time) (time.Time, time.Time) {
	to := time.Now().UTC()
	if end != nil {
		to = *end
	}
	if start != nil {
		return *start, to
	}
	switch period {
	case PeriodHour:
		return to.Add(-24 * time.Hour), to
	case PeriodWeek:
		return to.AddDate(0, 0, -12*7), to
	case PeriodMonth:
		return to.AddDate(0, -12, 0), to
	default:
		return to.AddDate(0, 0, -30), to
	}
}

func percent(success, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(success)/float64(total)*100)))
}

// forEachPage scans matching records in bounded pages, invoking fn for
// every record in created_at order.
func (s *AggregationService) forEachPage(ctx context.Context, filter repository.RecordFilter, fn func(*models.ActivityRecord)) error {
	var skip int64
	for {
		page, err := s.store.FindMany(ctx, filter, repository.FindOptions{Skip: skip, Limit: s.pageSize})
		if err != nil {
			return fmt.Errorf("failed to scan activity records: %v", err)
		}
		for i := range page {
			fn(&page[i])
		}
		if int64(len(page)) < s.pageSize {
			return nil
		}
		skip += s.pageSize
	}
}

// AggregateByPeriod buckets activity by hour, day, week or month over
// the given window. Records without a usable timestamp are skipped.
func (s *AggregationService) AggregateByPeriod(ctx context.Context, period string, start, end *time.Time) (*models.PeriodSummary, error) {
	switch period {
	case PeriodHour, PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return nil, fmt.Errorf("invalid aggregation period %q", period)
	}

	from, to := resolveWindow(period, start, end)
	filter := repository.RecordFilter{CreatedAfter: &from, CreatedBefore: &to}

	type acc struct {
		count, success, failure int
		users                   map[string]struct{}
		byType                  map[string]int
	}
	buckets := make(map[string]*acc)
	total := 0

	err := s.forEachPage(ctx, filter, func(r *models.ActivityRecord) {
		if r.CreatedAt.IsZero() {
			return
		}
		key := BucketKey(period, r.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &acc{users: make(map[string]struct{}), byType: make(map[string]int)}
			buckets[key] = b
		}
		b.count++
		total++
		if r.Success {
			b.success++
		} else {
			b.failure++
		}
		if actor := r.ActorHex(); actor != "" {
			b.users[actor] = struct{}{}
		}
		b.byType[r.ActivityType]++
	})
	if err != nil {
		return nil, err
	}

	summary := &models.PeriodSummary{Period: period, Start: from, End: to, Total: total}
	for key, b := range buckets {
		summary.Buckets = append(summary.Buckets, models.PeriodBucket{
			Period:          key,
			Count:           b.count,
			SuccessCount:    b.success,
			FailureCount:    b.failure,
			SuccessRate:     percent(b.success, b.count),
			UniqueUserCount: len(b.users),
			ByType:          b.byType,
		})
	}
	sort.Slice(summary.Buckets, func(i, j int) bool {
		return summary.Buckets[i].Period < summary.Buckets[j].Period
	})
	if summary.Buckets == nil {
		summary.Buckets = []models.PeriodBucket{}
	}
	return summary, nil
}

// AggregateByType groups activity by type, tracking first and last
// occurrence per type by direct timestamp comparison.
func (s *AggregationService) AggregateByType(ctx context.Context, start, end *time.Time) (*models.TypeSummary, error) {
	from, to := resolveWindow(PeriodDay, start, end)
	filter := repository.RecordFilter{CreatedAfter: &from, CreatedBefore: &to}

	type acc struct {
		count, success, failure int
		users                   map[string]struct{}
		firstSeen, lastSeen     time.Time
	}
	types := make(map[string]*acc)
	total := 0

	err := s.forEachPage(ctx, filter, func(r *models.ActivityRecord) {
		b, ok := types[r.ActivityType]
		if !ok {
			b = &acc{users: make(map[string]struct{})}
			types[r.ActivityType] = b
		}
		b.count++
		total++
		if r.Success {
			b.success++
		} else {
			b.failure++
		}
		if actor := r.ActorHex(); actor != "" {
			b.users[actor] = struct{}{}
		}
		if !r.CreatedAt.IsZero() {
			if b.firstSeen.IsZero() || r.CreatedAt.Before(b.firstSeen) {
				b.firstSeen = r.CreatedAt
			}
			if r.CreatedAt.After(b.lastSeen) {
				b.lastSeen = r.CreatedAt
			}
		}
	})
	if err != nil {
		return nil, err
	}

	summary := &models.TypeSummary{Start: from, End: to, Total: total, Types: []models.TypeBucket{}}
	for kind, b := range types {
		summary.Types = append(summary.Types, models.TypeBucket{
			ActivityType:    kind,
			Count:           b.count,
			SuccessCount:    b.success,
			FailureCount:    b.failure,
			SuccessRate:     percent(b.success, b.count),
			UniqueUserCount: len(b.users),
			FirstSeen:       b.firstSeen,
			LastSeen:        b.lastSeen,
		})
	}
	sort.Slice(summary.Types, func(i, j int) bool {
		return summary.Types[i].Count > summary.Types[j].Count
	})
	return summary, nil
}

// UserSummary describes one actor's activity over a trailing window of
// days.
func (s *AggregationService) UserSummary(ctx context.Context, userID primitive.ObjectID, windowDays int) (*models.UserSummary, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	from := time.Now().UTC().AddDate(0, 0, -windowDays)
	filter := repository.RecordFilter{UserID: &userID, CreatedAfter: &from}

	summary := &models.UserSummary{
		UserID:     userID.Hex(),
		WindowDays: windowDays,
		ByType:     make(map[string]int),
	}
	sessions := make(map[string]struct{})

	err := s.forEachPage(ctx, filter, func(r *models.ActivityRecord) {
		summary.Total++
		if r.Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
		summary.ByType[r.ActivityType]++
		if r.SessionID != "" {
			sessions[r.SessionID] = struct{}{}
		}
		if !r.CreatedAt.IsZero() {
			if summary.FirstActivity.IsZero() || r.CreatedAt.Before(summary.FirstActivity) {
				summary.FirstActivity = r.CreatedAt
			}
			if r.CreatedAt.After(summary.LastActivity) {
				summary.LastActivity = r.CreatedAt
			}
		}
	})
	if err != nil {
		return nil, err
	}

	summary.SessionCount = len(sessions)
	summary.SuccessRate = percent(summary.SuccessCount, summary.Total)
	return summary, nil
}

// LoginAnalysis summarizes login traffic over a trailing window and
// derives the basic security heuristics.
func (s *AggregationService) LoginAnalysis(ctx context.Context, windowDays int) (*models.LoginAnalysis, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	from := time.Now().UTC().AddDate(0, 0, -windowDays)
	return s.loginAnalysis(ctx, &from, nil, windowDays)
}

// LoginAnalysisBetween runs the login analysis over an explicit window.
// The monthly report uses it for the prior calendar month.
func (s *AggregationService) LoginAnalysisBetween(ctx context.Context, from, to time.Time) (*models.LoginAnalysis, error) {
	days := int(to.Sub(from).Hours() / 24)
	return s.loginAnalysis(ctx, &from, &to, days)
}

func (s *AggregationService) loginAnalysis(ctx context.Context, from, to *time.Time, windowDays int) (*models.LoginAnalysis, error) {
	filter := repository.RecordFilter{
		Types:         []string{models.ActivityLogin},
		CreatedAfter:  from,
		CreatedBefore: to,
	}

	analysis := &models.LoginAnalysis{
		WindowDays:        windowDays,
		DeviceBreakdown:   make(map[string]int),
		BrowserBreakdown:  make(map[string]int),
		LocationBreakdown: make(map[string]int),
		LoginsByDay:       make(map[string]int),
	}
	users := make(map[string]struct{})
	ips := make(map[string]struct{})

	err := s.forEachPage(ctx, filter, func(r *models.ActivityRecord) {
		analysis.TotalLogins++
		if r.Success {
			analysis.SuccessfulLogins++
		} else {
			analysis.FailedLogins++
		}
		if actor := r.ActorHex(); actor != "" {
			users[actor] = struct{}{}
		}
		if r.IPAddress != "" {
			ips[r.IPAddress] = struct{}{}
		}
		if r.DeviceInfo != nil {
			if r.DeviceInfo.Mobile {
				analysis.DeviceBreakdown["Mobile"]++
			} else {
				analysis.DeviceBreakdown["Desktop"]++
			}
			if r.DeviceInfo.Browser != "" {
				analysis.BrowserBreakdown[r.DeviceInfo.Browser]++
			}
		}
		if r.Location != "" {
			analysis.LocationBreakdown[r.Location]++
		}
		if !r.CreatedAt.IsZero() {
			analysis.LoginsByHour[r.CreatedAt.Hour()]++
			analysis.LoginsByDay[r.CreatedAt.Format("2006-01-02")]++
		}
	})
	if err != nil {
		return nil, err
	}

	analysis.UniqueUsers = len(users)
	analysis.UniqueIPs = len(ips)
	analysis.MultipleFailedAttempts = analysis.FailedLogins > 2*analysis.UniqueUsers
	analysis.UnusualIPActivity = float64(analysis.UniqueIPs) > 1.5*float64(analysis.UniqueUsers)

	peak, peakCount := 0, 0
	for h, n := range analysis.LoginsByHour {
		if n > peakCount {
			peak, peakCount = h, n
		}
	}
	analysis.PeakLoginHour = peak
	if analysis.UniqueUsers > 0 {
		analysis.AvgLoginsPerUser = math.Round(float64(analysis.TotalLogins)/float64(analysis.UniqueUsers)*100) / 100
	}
	return analysis, nil
}
