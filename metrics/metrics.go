// Package metrics exposes Prometheus collectors and the health endpoint.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	BetsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locktracker_bets_created_total",
		Help: "Bets inserted, by source (manual or import).",
	}, []string{"source"})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locktracker_bets_settled_total",
		Help: "Bet settlements, by result.",
	}, []string{"result"})

	ImportSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locktracker_import_skipped_total",
		Help: "Imported bets not inserted, by reason.",
	}, []string{"reason"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locktracker_webhook_events_total",
		Help: "Stripe webhook deliveries, by event type and outcome.",
	}, []string{"type", "outcome"})
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Checks builds the health checks for the configured backends. rdb may be nil.
func Checks(db *sql.DB, rdb *redis.Client) map[string]HealthFunc {
	checks := map[string]HealthFunc{
		"mysql": db.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// RegisterRoutes mounts /metrics and /healthz.
func RegisterRoutes(r *gin.Engine, checks map[string]HealthFunc) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.String(http.StatusServiceUnavailable, fmt.Sprintf("unhealthy: %s: %v", name, err))
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})
}
