package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/config"
	"github.com/aqualaguna/direct-commerce-sub002/internal/metrics"
	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/anonymizer"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/devices"
)

// classificationRules map (method, path) pairs to activity types.
// Evaluated in order, first match wins.
var classificationRules = []struct {
	method string
	path   string
	kind   string
}{
	{"POST", "/auth/local/register", models.ActivityAccountCreated},
	{"POST", "/auth/local", models.ActivityLogin},
	{"POST", "/auth/logout", models.ActivityLogout},
	{"POST", "/auth/change-password", models.ActivityPasswordChange},
	{"PUT", "/users/me", models.ActivityProfileUpdate},
	{"PUT", "/user-preferences", models.ActivityPreferenceChange},
	{"PUT", "/privacy-settings", models.ActivityPreferenceChange},
}

var productPrefixes = []string{"/products", "/cart", "/orders", "/wishlist"}

// RequestInfo is the request context the recorder observes. The
// transport layer fills it in; the recorder owns everything derived.
type RequestInfo struct {
	Method       string
	Path         string
	Query        string
	UserID       *primitive.ObjectID
	SessionID    string
	ClientIP     string // explicit override, wins over headers
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
	UserAgent    string
	StatusCode   int
	Duration     time.Duration
	Failure      string // non-empty when the downstream action panicked
}

// RecorderService classifies inbound operations and persists activity
// records without ever delaying or failing the request that triggered
// them. A lost write is a gap in telemetry, not an error.
type RecorderService struct {
	store   repository.ActivityStore
	cfg     config.TrackingConfig
	log     *logrus.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewRecorderService creates a new instance of RecorderService.
func NewRecorderService(store repository.ActivityStore, cfg config.TrackingConfig, log *logrus.Logger, m *metrics.Metrics) *RecorderService {
	return &RecorderService{store: store, cfg: cfg, log: log, metrics: m}
}

// Classify resolves the activity type for a (method, path) pair.
// Unmatched combinations classify as page_view.
func (s *RecorderService) Classify(method, path string) string {
	for _, r := range classificationRules {
		if r.method == method && r.path == path {
			return r.kind
		}
	}
	if method != "GET" {
		for _, p := range productPrefixes {
			if strings.HasPrefix(path, p) {
				return models.ActivityProductInteraction
			}
		}
	}
	return models.ActivityPageView
}

// IsTrackable reports whether a path falls under the tracking policy.
// The deny list is checked before the allow list.
func (s *RecorderService) IsTrackable(path string) bool {
	if !s.cfg.Enabled {
		return false
	}
	for _, p := range s.cfg.DeniedPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	for _, p := range s.cfg.TrackedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ResolveIP picks the client address: explicit override, then the
// forwarded-for chain, then the real-ip header, then the socket.
func (s *RecorderService) ResolveIP(info RequestInfo) string {
	if info.ClientIP != "" {
		return info.ClientIP
	}
	if info.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(info.ForwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if info.RealIP != "" {
		return info.RealIP
	}
	if info.RemoteAddr != "" {
		host := info.RemoteAddr
		if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.HasSuffix(host, "]") {
			host = host[:idx]
		}
		return strings.Trim(host, "[]")
	}
	return ""
}

// SessionID returns the client correlation ID, generating one when the
// client supplied none. All records of one request share the result.
func (s *RecorderService) SessionID(fromHeader string) string {
	if fromHeader != "" {
		return fromHeader
	}
	return uuid.NewString()
}

// Record composes and persists one activity record. The timestamp is
// assigned synchronously so record order within a request is stable;
// the store write happens in the background. Errors never reach the
// caller — this is the load-bearing guarantee of the recorder.
func (s *RecorderService) Record(ctx context.Context, kind string, info RequestInfo) {
	record := s.compose(kind, info)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("panic", r).Error("Recovered panic while recording activity")
			}
		}()

		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.store.Create(persistCtx, record); err != nil {
			if s.metrics != nil {
				s.metrics.RecordsDropped.Inc()
			}
			s.log.WithFields(logrus.Fields{
				"activity_type": record.ActivityType,
				"error":         err,
			}).Error("Failed to persist activity record")
			return
		}
		if s.metrics != nil {
			s.metrics.RecordsWritten.WithLabelValues(record.ActivityType).Inc()
		}
	}()
}

// Wait blocks until all in-flight writes have finished. Used on
// shutdown and in tests.
func (s *RecorderService) Wait() {
	s.wg.Wait()
}

func (s *RecorderService) compose(kind string, info RequestInfo) *models.ActivityRecord {
	ip := s.ResolveIP(info)
	ua := info.UserAgent

	record := &models.ActivityRecord{
		UserID:       info.UserID,
		ActivityType: kind,
		ActivityData: map[string]interface{}{
			"endpoint": info.Path,
			"method":   info.Method,
			"action":   fmt.Sprintf("%s %s", info.Method, info.Path),
		},
		SessionID: info.SessionID,
		Success:   info.StatusCode == 0 || (info.StatusCode >= 200 && info.StatusCode < 400),
		CreatedAt: time.Now().UTC(),
	}
	if info.Query != "" {
		record.ActivityData["query"] = info.Query
	}
	if info.Duration > 0 {
		record.SessionDuration = info.Duration.Milliseconds()
	}
	if info.Failure != "" {
		record.Success = false
		record.ErrorMessage = info.Failure
	} else if !record.Success {
		record.ErrorMessage = fmt.Sprintf("request failed with status %d", info.StatusCode)
	}

	if ua != "" {
		di := devices.Parse(ua)
		record.DeviceInfo = &di
	}
	if s.cfg.TrackLocation && ip != "" {
		record.Location = devices.Location(ip)
	}
	if s.cfg.AnonymizeIPs {
		ip = anonymizer.AnonymizeIP(ip)
		ua = anonymizer.AnonymizeUserAgent(ua)
	}
	record.IPAddress = ip
	record.UserAgent = ua

	return record
}
