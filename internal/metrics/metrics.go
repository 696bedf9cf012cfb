// Package metrics holds the Prometheus instruments of the challenge engine.
// Every method is safe on a nil *Metrics so engines can run without instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "challenges"

// Metrics holds Prometheus metrics for the engine and its HTTP surface.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Votes            *prometheus.CounterVec
	PollsResolved    prometheus.Counter
	EventsStarted    prometheus.Counter
	Reviews          *prometheus.CounterVec
	Draws            *prometheus.CounterVec
	TriggerRuns      *prometheus.CounterVec
	TriggerDuration  *prometheus.HistogramVec
	NotifyFailures   *prometheus.CounterVec
	Jobs             *prometheus.CounterVec
	DashboardClients *prometheus.GaugeVec
	DBConnPoolStats  *prometheus.GaugeVec
}

// New registers the engine metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request duration in seconds", Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "votes_total",
			Help: "Votes applied by outcome (recorded, switched, unchanged)",
		}, []string{"outcome"}),
		PollsResolved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_resolved_total",
			Help: "Polls closed with a winner",
		}),
		EventsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_started_total",
			Help: "Challenge events created",
		}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reviews_total",
			Help: "Submission review decisions by outcome",
		}, []string{"outcome"}),
		Draws: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "draws_total",
			Help: "Prize draw steps by step and result",
		}, []string{"step", "result"}),
		TriggerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "trigger_runs_total",
			Help: "Scheduler trigger executions by trigger and result",
		}, []string{"trigger", "result"}),
		TriggerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "trigger_duration_seconds",
			Help: "Scheduler trigger body duration", Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		NotifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notify_failures_total",
			Help: "Swallowed notification failures by operation",
		}, []string{"op"}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "jobs_total",
			Help: "Background jobs processed by type and result",
		}, []string{"type", "result"}),
		DashboardClients: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "dashboard_clients",
			Help: "Connected dashboard websocket clients per guild",
		}, []string{"guild_id"}),
		DBConnPoolStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "db_connection_pool",
			Help: "Database connection pool statistics",
		}, []string{"stat"}),
	}
}

// Vote counts an applied vote.
func (m *Metrics) Vote(outcome string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(outcome).Inc()
}

// PollResolved counts a poll closed with a winner.
func (m *Metrics) PollResolved() {
	if m == nil {
		return
	}
	m.PollsResolved.Inc()
}

// EventStarted counts a created event.
func (m *Metrics) EventStarted() {
	if m == nil {
		return
	}
	m.EventsStarted.Inc()
}

// Review counts a review decision.
func (m *Metrics) Review(outcome string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(outcome).Inc()
}

// Draw counts a prize draw step.
func (m *Metrics) Draw(step, result string) {
	if m == nil {
		return
	}
	m.Draws.WithLabelValues(step, result).Inc()
}

// TriggerRun records one scheduler trigger execution.
func (m *Metrics) TriggerRun(trigger string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TriggerRuns.WithLabelValues(trigger, result).Inc()
	m.TriggerDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// NotifyFailed counts a swallowed notification failure.
func (m *Metrics) NotifyFailed(op string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(op).Inc()
}

// Job counts a processed background job.
func (m *Metrics) Job(typ, result string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(typ, result).Inc()
}

// DashboardClientsChanged sets the websocket client count for a guild.
func (m *Metrics) DashboardClientsChanged(guildID string, count int) {
	if m == nil {
		return
	}
	m.DashboardClients.WithLabelValues(guildID).Set(float64(count))
}

// RecordDBPoolStats records database connection pool statistics.
func (m *Metrics) RecordDBPoolStats(stat *pgxpool.Stat) {
	if m == nil || stat == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("total").Set(float64(stat.TotalConns()))
	m.DBConnPoolStats.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	m.DBConnPoolStats.WithLabelValues("empty_acquire_count").Set(float64(stat.EmptyAcquireCount()))
}

// Middleware records request count and duration per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
