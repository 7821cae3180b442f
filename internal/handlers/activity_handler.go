package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
	"github.com/aqualaguna/direct-commerce-sub002/internal/services"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/middleware"
)

// ActivityHandler exposes the reporting and maintenance surface. All
// routes sit behind the admin role.
type ActivityHandler struct {
	Store       repository.ActivityStore
	Aggregation *services.AggregationService
	Retention   *services.RetentionService
	Log         *logrus.Logger
}

// NewActivityHandler creates a new instance of ActivityHandler.
func NewActivityHandler(store repository.ActivityStore, agg *services.AggregationService, ret *services.RetentionService, log *logrus.Logger) *ActivityHandler {
	return &ActivityHandler{Store: store, Aggregation: agg, Retention: ret, Log: log}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeParam(r *http.Request, key string) *time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func parseIntParam(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetPeriodSummaryHandler handles GET /admin/analytics/period.
func (h *ActivityHandler) GetPeriodSummaryHandler(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = services.PeriodDay
	}

	summary, err := h.Aggregation.AggregateByPeriod(r.Context(), period, parseTimeParam(r, "start"), parseTimeParam(r, "end"))
	if err != nil {
		h.Log.WithError(err).Error("Failed to aggregate activity by period")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetTypeSummaryHandler handles GET /admin/analytics/types.
func (h *ActivityHandler) GetTypeSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Aggregation.AggregateByType(r.Context(), parseTimeParam(r, "start"), parseTimeParam(r, "end"))
	if err != nil {
		h.Log.WithError(err).Error("Failed to aggregate activity by type")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetLoginAnalysisHandler handles GET /admin/analytics/logins.
func (h *ActivityHandler) GetLoginAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.Aggregation.LoginAnalysis(r.Context(), parseIntParam(r, "days", 30))
	if err != nil {
		h.Log.WithError(err).Error("Failed to analyze logins")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// GetUserSummaryHandler handles GET /admin/analytics/users/{id}.
func (h *ActivityHandler) GetUserSummaryHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	summary, err := h.Aggregation.UserSummary(r.Context(), userID, parseIntParam(r, "days", 30))
	if err != nil {
		h.Log.WithError(err).Error("Failed to build user summary")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetRecentActivitiesHandler handles GET /admin/activities.
func (h *ActivityHandler) GetRecentActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.RecordFilter{}
	if v := r.URL.Query().Get("user"); v != "" {
		userID, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		filter.UserID = &userID
	}

	limit := parseIntParam(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	records, err := h.Store.FindMany(r.Context(), filter, repository.FindOptions{SortDesc: true, Limit: int64(limit)})
	if err != nil {
		h.Log.WithError(err).Error("Failed to fetch recent activities")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ManualCleanupHandler handles POST /admin/maintenance/cleanup.
func (h *ActivityHandler) ManualCleanupHandler(w http.ResponseWriter, r *http.Request) {
	var opts services.ManualCleanupOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	actor := ""
	if claims := middleware.GetUserFromContext(r.Context()); claims != nil {
		actor = claims.UserID
	}
	h.Log.WithFields(logrus.Fields{
		"actor":          actor,
		"retention_days": opts.RetentionDays,
		"cleanup_type":   opts.CleanupType,
		"dry_run":        opts.DryRun,
	}).Info("Manual cleanup requested")

	result, err := h.Retention.RunManualCleanup(r.Context(), opts)
	if err != nil {
		h.Log.WithError(err).Error("Manual cleanup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
