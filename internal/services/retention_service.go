package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/config"
	"github.com/aqualaguna/direct-commerce-sub002/internal/metrics"
	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/anonymizer"
)

// Manual cleanup scopes.
const (
	CleanupAll        = "all"
	CleanupActivities = "activities"
	CleanupFailed     = "failed"
)

// ManualCleanupOptions parametrize an operator-triggered cleanup.
type ManualCleanupOptions struct {
	RetentionDays int    `json:"retention_days"`
	CleanupType   string `json:"cleanup_type"`
	DryRun        bool   `json:"dry_run"`
}

// ArchiveSink receives records extracted by the monthly archive policy
// before they are removed from the store.
type ArchiveSink interface {
	Archive(ctx context.Context, records []models.ActivityRecord) error
}

// NoopArchiveSink discards archived records. Used when no sink is
// configured; the policy then behaves as a long-term delete.
type NoopArchiveSink struct{}

// Archive implements ArchiveSink.
func (NoopArchiveSink) Archive(ctx context.Context, records []models.ActivityRecord) error {
	return nil
}

// RetentionService runs the cleanup, anonymization, deduplication and
// archival policies. Every policy is idempotent: re-running it over an
// unchanged store affects zero additional records. Per-record failures
// are counted and skipped; only a store-level listing failure aborts a
// run.
type RetentionService struct {
	store   repository.ActivityStore
	cfg     config.RetentionConfig
	log     *logrus.Logger
	metrics *metrics.Metrics
	sink    ArchiveSink
}

// NewRetentionService creates a new instance of RetentionService.
func NewRetentionService(store repository.ActivityStore, cfg config.RetentionConfig, log *logrus.Logger, m *metrics.Metrics, sink ArchiveSink) *RetentionService {
	if sink == nil {
		sink = NoopArchiveSink{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &RetentionService{store: store, cfg: cfg, log: log, metrics: m, sink: sink}
}

func cutoff(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}

func (s *RetentionService) finish(result *models.CleanupResult, started time.Time) models.CleanupResult {
	result.StartedAt = started
	result.Duration = time.Since(started).Round(time.Millisecond).String()
	if s.metrics != nil {
		s.metrics.PolicyRuns.WithLabelValues(result.Policy).Inc()
		s.metrics.PolicyErrors.WithLabelValues(result.Policy).Add(float64(result.Errors))
	}
	s.log.WithFields(logrus.Fields{
		"policy":    result.Policy,
		"deleted":   result.Deleted,
		"processed": result.Processed,
		"errors":    result.Errors,
		"dry_run":   result.DryRun,
		"duration":  result.Duration,
	}).Info("Retention policy run completed")
	return *result
}

// deleteMatching removes every record matching the filter, one bounded
// page at a time. Per-record delete failures are counted and the page
// window advances past them so a poisoned record cannot stall the run.
func (s *RetentionService) deleteMatching(ctx context.Context, filter repository.RecordFilter) (deleted, errors int, err error) {
	var skip int64
	for {
		page, ferr := s.store.FindMany(ctx, filter, repository.FindOptions{Skip: skip, Limit: s.cfg.PageSize})
		if ferr != nil {
			return deleted, errors, fmt.Errorf("failed to list cleanup candidates: %v", ferr)
		}
		if len(page) == 0 {
			return deleted, errors, nil
		}

		progressed := false
		for i := range page {
			if derr := s.store.Delete(ctx, page[i].ID); derr != nil {
				errors++
				s.log.WithFields(logrus.Fields{
					"record_id": page[i].ID.Hex(),
					"error":     derr,
				}).Warn("Failed to delete activity record, continuing")
				continue
			}
			deleted++
			progressed = true
		}
		if !progressed {
			// Every record in this page failed; leave them for the
			// next run and move the window forward.
			skip += s.cfg.PageSize
		}
		if int64(len(page)) < s.cfg.PageSize && !progressed {
			return deleted, errors, nil
		}
	}
}

// RunDaily applies the primary retention window, the shorter failed
// window and the login/logout session sweep.
func (s *RetentionService) RunDaily(ctx context.Context) models.CleanupResult {
	started := time.Now()
	result := models.CleanupResult{Policy: "daily_cleanup"}

	old := cutoff(s.cfg.RetentionDays)
	deleted, errs, err := s.deleteMatching(ctx, repository.RecordFilter{CreatedBefore: &old})
	result.Deleted += deleted
	result.Errors += errs
	if err != nil {
		s.log.WithError(err).Error("Daily cleanup aborted: store unavailable")
		result.Errors++
		return s.finish(&result, started)
	}

	failedCutoff := cutoff(s.cfg.FailedRetentionDays)
	deleted, errs, err = s.deleteMatching(ctx, repository.RecordFilter{
		CreatedBefore: &failedCutoff,
		Success:       repository.BoolPtr(false),
	})
	result.Deleted += deleted
	result.Errors += errs
	if err != nil {
		s.log.WithError(err).Error("Failed-record cleanup aborted: store unavailable")
		result.Errors++
		return s.finish(&result, started)
	}

	// Session bookkeeping differs from raw deletion: expired sessions
	// are counted as processed and left for the primary window.
	sessionCutoff := cutoff(s.cfg.SessionRetentionDays)
	swept, err := s.store.Count(ctx, repository.RecordFilter{
		Types:         []string{models.ActivityLogin, models.ActivityLogout},
		CreatedBefore: &sessionCutoff,
	})
	if err != nil {
		s.log.WithError(err).Error("Session sweep aborted: store unavailable")
		result.Errors++
	} else {
		result.Processed += int(swept)
	}

	return s.finish(&result, started)
}

// RunWeekly anonymizes aged records and collapses near-duplicates.
func (s *RetentionService) RunWeekly(ctx context.Context) models.CleanupResult {
	started := time.Now()
	result := models.CleanupResult{Policy: "weekly_anonymize_dedupe"}

	anonymized, errs, err := s.anonymizeAged(ctx)
	result.Processed += anonymized
	result.Errors += errs
	if err != nil {
		s.log.WithError(err).Error("Anonymization pass aborted: store unavailable")
		result.Errors++
		return s.finish(&result, started)
	}

	deleted, errs, err := s.deduplicate(ctx)
	result.Deleted += deleted
	result.Errors += errs
	if err != nil {
		s.log.WithError(err).Error("Deduplication pass aborted: store unavailable")
		result.Errors++
	}

	return s.finish(&result, started)
}

// anonymizeAged narrows ip/ua on records past the anonymization window
// that still carry an address. Updated records drop out of the filter,
// so each iteration fetches the first page again.
func (s *RetentionService) anonymizeAged(ctx context.Context) (processed, errors int, err error) {
	old := cutoff(s.cfg.AnonymizeAfterDays)
	filter := repository.RecordFilter{
		CreatedBefore: &old,
		HasIPAddress:  true,
		NotAnonymized: true,
	}

	var skip int64
	for {
		page, ferr := s.store.FindMany(ctx, filter, repository.FindOptions{Skip: skip, Limit: s.cfg.PageSize})
		if ferr != nil {
			return processed, errors, fmt.Errorf("failed to list anonymization candidates: %v", ferr)
		}
		if len(page) == 0 {
			return processed, errors, nil
		}

		progressed := false
		for i := range page {
			r := &page[i]
			fields := map[string]interface{}{
				"ip_address":             anonymizer.AnonymizeIP(r.IPAddress),
				"user_agent":             anonymizer.AnonymizeUserAgent(r.UserAgent),
				"metadata.anonymized":    true,
				"metadata.anonymized_at": time.Now().UTC().Format(time.RFC3339),
			}
			if uerr := s.store.Update(ctx, r.ID, fields); uerr != nil {
				errors++
				s.log.WithFields(logrus.Fields{
					"record_id": r.ID.Hex(),
					"error":     uerr,
				}).Warn("Failed to anonymize activity record, continuing")
				continue
			}
			processed++
			progressed = true
		}
		if !progressed {
			skip += s.cfg.PageSize
		}
		if int64(len(page)) < s.cfg.PageSize && !progressed {
			return processed, errors, nil
		}
	}
}

// deduplicate collapses records sharing (actor, type, minute) to the
// most recent one. The minute-granularity key is intentional product
// behavior; rapid legitimate repeats inside one minute are merged.
func (s *RetentionService) deduplicate(ctx context.Context) (deleted, errors int, err error) {
	seen := make(map[string]struct{})
	var duplicates []primitive.ObjectID

	var skip int64
	for {
		page, ferr := s.store.FindMany(ctx, repository.RecordFilter{}, repository.FindOptions{
			SortDesc: true,
			Skip:     skip,
			Limit:    s.cfg.PageSize,
		})
		if ferr != nil {
			return 0, 0, fmt.Errorf("failed to list deduplication candidates: %v", ferr)
		}
		for i := range page {
			r := &page[i]
			if r.CreatedAt.IsZero() {
				continue
			}
			key := fmt.Sprintf("%s|%s|%d", r.ActorHex(), r.ActivityType, r.CreatedAt.Unix()/60)
			if _, dup := seen[key]; dup {
				duplicates = append(duplicates, r.ID)
				continue
			}
			seen[key] = struct{}{}
		}
		if int64(len(page)) < s.cfg.PageSize {
			break
		}
		skip += s.cfg.PageSize
	}

	for _, id := range duplicates {
		if derr := s.store.Delete(ctx, id); derr != nil {
			errors++
			s.log.WithFields(logrus.Fields{
				"record_id": id.Hex(),
				"error":     derr,
			}).Warn("Failed to delete duplicate record, continuing")
			continue
		}
		deleted++
	}
	return deleted, errors, nil
}

// RunMonthlyArchive extracts records past the long-term window into the
// archive sink, then removes them. Pages whose extraction fails are
// left in place and retried on the next run.
func (s *RetentionService) RunMonthlyArchive(ctx context.Context) models.CleanupResult {
	started := time.Now()
	result := models.CleanupResult{Policy: "monthly_archive"}

	old := cutoff(s.cfg.ArchiveAfterDays)
	filter := repository.RecordFilter{CreatedBefore: &old}

	var skip int64
	for {
		page, err := s.store.FindMany(ctx, filter, repository.FindOptions{Skip: skip, Limit: s.cfg.PageSize})
		if err != nil {
			s.log.WithError(err).Error("Monthly archive aborted: store unavailable")
			result.Errors++
			return s.finish(&result, started)
		}
		if len(page) == 0 {
			return s.finish(&result, started)
		}

		if err := s.sink.Archive(ctx, page); err != nil {
			// Extract-then-remove: nothing gets deleted if the sink
			// rejected the page.
			result.Errors += len(page)
			s.log.WithError(err).Error("Archive sink rejected page, leaving records in store")
			skip += s.cfg.PageSize
			if int64(len(page)) < s.cfg.PageSize {
				return s.finish(&result, started)
			}
			continue
		}

		progressed := false
		for i := range page {
			if derr := s.store.Delete(ctx, page[i].ID); derr != nil {
				result.Errors++
				s.log.WithFields(logrus.Fields{
					"record_id": page[i].ID.Hex(),
					"error":     derr,
				}).Warn("Failed to remove archived record, continuing")
				continue
			}
			result.Processed++
			progressed = true
		}
		if !progressed {
			skip += s.cfg.PageSize
			if int64(len(page)) < s.cfg.PageSize {
				return s.finish(&result, started)
			}
		}
	}
}

// RunManualCleanup is the operator-facing variant of the daily policy.
// Dry runs report the number of records that would be affected without
// mutating the store.
func (s *RetentionService) RunManualCleanup(ctx context.Context, opts ManualCleanupOptions) (models.CleanupResult, error) {
	started := time.Now()
	result := models.CleanupResult{Policy: "manual_cleanup", DryRun: opts.DryRun}

	days := opts.RetentionDays
	if days <= 0 {
		days = s.cfg.RetentionDays
	}
	old := cutoff(days)

	filter := repository.RecordFilter{CreatedBefore: &old}
	switch opts.CleanupType {
	case CleanupAll, CleanupActivities, "":
		// full sweep over the requested window
	case CleanupFailed:
		filter.Success = repository.BoolPtr(false)
	default:
		return result, fmt.Errorf("invalid cleanup type %q", opts.CleanupType)
	}

	if opts.DryRun {
		n, err := s.store.Count(ctx, filter)
		if err != nil {
			return result, fmt.Errorf("failed to count cleanup candidates: %v", err)
		}
		result.Processed = int(n)
		return s.finish(&result, started), nil
	}

	deleted, errs, err := s.deleteMatching(ctx, filter)
	result.Deleted = deleted
	result.Errors = errs
	if err != nil {
		result.Errors++
		return s.finish(&result, started), err
	}
	return s.finish(&result, started), nil
}
