package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/aqualaguna/direct-commerce-sub002/internal/config"
	"github.com/aqualaguna/direct-commerce-sub002/internal/database"
	"github.com/aqualaguna/direct-commerce-sub002/internal/handlers"
	"github.com/aqualaguna/direct-commerce-sub002/internal/jobs"
	"github.com/aqualaguna/direct-commerce-sub002/internal/metrics"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
	"github.com/aqualaguna/direct-commerce-sub002/internal/scheduler"
	"github.com/aqualaguna/direct-commerce-sub002/internal/services"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/archive"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/logger"
	"github.com/aqualaguna/direct-commerce-sub002/pkg/middleware"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logg := logger.New(cfg.LogLevel)
	logg.Info("Logger initialized")

	// --- Record store ---
	var store repository.ActivityStore
	var mongoDB interface {
		Disconnect(ctx context.Context) error
	}
	if cfg.MongoURI != "" {
		db, err := database.ConnectDB(cfg)
		if err != nil {
			log.Fatalf("Database connection error: %v", err)
		}
		store = repository.NewActivityRepository(db)
		mongoDB = db.Client()
	} else {
		logg.Warn("MONGO_URI not set, using in-memory activity store")
		store = repository.NewMemoryActivityRepository()
	}

	m := metrics.New()

	// --- Archive sink ---
	var sink services.ArchiveSink
	var reportPublisher jobs.ReportPublisher
	if cfg.NATSURL != "" {
		natsSink, err := archive.NewNATSSink(cfg.NATSURL)
		if err != nil {
			log.Fatalf("NATS connection error: %v", err)
		}
		defer natsSink.Close()
		sink = natsSink
		reportPublisher = natsSink
	} else {
		fileSink, err := archive.NewFileSink(cfg.ArchiveDir)
		if err != nil {
			log.Fatalf("Archive directory error: %v", err)
		}
		sink = fileSink
	}

	// --- Services ---
	recorder := services.NewRecorderService(store, cfg.Tracking, logg, m)
	aggregation := services.NewAggregationService(store, logg)
	retention := services.NewRetentionService(store, cfg.Retention, logg, m, sink)
	reporter := jobs.NewMonthlyReporter(aggregation, reportPublisher, logg)

	// --- Retention cadence: daily 03:00, weekly Sunday 04:00,
	// monthly on the 1st at 05:00 ---
	sched := scheduler.New(logg,
		&scheduler.PeriodicTask{
			Name: "daily_cleanup",
			Spec: "0 3 * * *",
			Run: func(ctx context.Context) {
				recorder.Wait()
				_ = retention.RunDaily(ctx)
			},
		},
		&scheduler.PeriodicTask{
			Name: "weekly_anonymize_dedupe",
			Spec: "0 4 * * 0",
			Run: func(ctx context.Context) {
				_ = retention.RunWeekly(ctx)
			},
		},
		&scheduler.PeriodicTask{
			Name: "monthly_archive_report",
			Spec: "0 5 1 * *",
			Run: func(ctx context.Context) {
				_ = retention.RunMonthlyArchive(ctx)
				if _, err := reporter.Run(ctx); err != nil {
					logg.WithError(err).Error("Monthly report generation failed")
				}
			},
		},
	)
	if err := sched.Start(); err != nil {
		log.Fatalf("Scheduler error: %v", err)
	}

	// --- Handlers ---
	activityHandler := handlers.NewActivityHandler(store, aggregation, retention, logg)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	// Admin routes
	adminRoutes := router.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	adminRoutes.Use(middleware.RequireRole("admin"))
	adminRoutes.HandleFunc("/activities", activityHandler.GetRecentActivitiesHandler).Methods("GET")
	adminRoutes.HandleFunc("/analytics/period", activityHandler.GetPeriodSummaryHandler).Methods("GET")
	adminRoutes.HandleFunc("/analytics/types", activityHandler.GetTypeSummaryHandler).Methods("GET")
	adminRoutes.HandleFunc("/analytics/logins", activityHandler.GetLoginAnalysisHandler).Methods("GET")
	adminRoutes.HandleFunc("/analytics/users/{id}", activityHandler.GetUserSummaryHandler).Methods("GET")
	adminRoutes.HandleFunc("/maintenance/cleanup", activityHandler.ManualCleanupHandler).Methods("POST")

	// Apply middleware for logging and activity tracking. The tracker
	// observes every trackable route; admin and telemetry paths are on
	// the deny list so recording cannot feed itself.
	router.Use(middleware.LoggingMiddleware(logg))
	router.Use(middleware.ActivityTrackerMiddleware(recorder, cfg.JWTSecret))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.SessionHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(router),
	}

	go func() {
		logg.WithField("port", cfg.Port).Info("Server running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logg.Info("Shutting down")
	sched.Stop()
	recorder.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.WithError(err).Error("Server shutdown error")
	}
	if mongoDB != nil {
		if err := mongoDB.Disconnect(ctx); err != nil {
			logg.WithError(err).Error("MongoDB disconnect error")
		}
	}
}
