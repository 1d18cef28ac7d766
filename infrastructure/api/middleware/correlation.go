package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/helixml/artsearch/internal/log"
)

// CorrelationHeader carries the correlation ID on requests and responses.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID adds a correlation ID to the request context and the
// response headers. It takes the ID from the request header, then from
// chi's request ID, and otherwise generates one. Log records written with
// the request context carry it as correlation_id.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = middleware.GetReqID(ctx)
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(CorrelationHeader, id)

		ctx = log.WithCorrelationID(ctx, id)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = log.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from the request context.
func GetCorrelationID(r *http.Request) string {
	return log.CorrelationID(r.Context())
}
