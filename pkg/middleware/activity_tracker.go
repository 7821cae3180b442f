package middleware

import (
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/services"
)

// SessionHeader carries the client's browsing-session correlation ID.
const SessionHeader = "X-Session-ID"

// ActivityTrackerMiddleware records every trackable operation. It must
// never delay or alter a response: recording happens off the request
// path and recording failures are swallowed by the recorder itself.
//
// Authenticated GETs emit a page_view before the downstream handler
// runs; classified or mutating operations emit a completion record
// afterwards, even when the handler panics.
func ActivityTrackerMiddleware(recorder *services.RecorderService, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !recorder.IsTrackable(path) {
				next.ServeHTTP(w, r)
				return
			}

			kind := recorder.Classify(r.Method, path)

			var userID *primitive.ObjectID
			// Lenient parse: an invalid token just means an anonymous
			// record, the auth middleware does the rejecting.
			if claims := ParseClaims(r, jwtSecret); claims != nil {
				if oid, err := primitive.ObjectIDFromHex(claims.UserID); err == nil {
					userID = &oid
				}
			}

			info := services.RequestInfo{
				Method:       r.Method,
				Path:         path,
				Query:        r.URL.RawQuery,
				UserID:       userID,
				SessionID:    recorder.SessionID(r.Header.Get(SessionHeader)),
				ForwardedFor: r.Header.Get("X-Forwarded-For"),
				RealIP:       r.Header.Get("X-Real-IP"),
				RemoteAddr:   r.RemoteAddr,
				UserAgent:    r.UserAgent(),
			}

			if r.Method == http.MethodGet && userID != nil {
				recorder.Record(r.Context(), models.ActivityPageView, info)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if p := recover(); p != nil {
					info.StatusCode = http.StatusInternalServerError
					info.Duration = time.Since(start)
					info.Failure = fmt.Sprintf("%v", p)
					recorder.Record(r.Context(), kind, info)
					panic(p)
				}
			}()

			next.ServeHTTP(rec, r)

			if r.Method != http.MethodGet || kind != models.ActivityPageView {
				info.StatusCode = rec.status
				info.Duration = time.Since(start)
				recorder.Record(r.Context(), kind, info)
			}
		})
	}
}
