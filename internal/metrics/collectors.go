package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"hermes/pkg/logger"
)

// CustomCollector collects job state metrics from postgres and redis
type CustomCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB
	redis    *redis.Client

	jobsByStatus *prometheus.Desc
	stopRequests *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, rdb *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:      log,
		postgres: postgres,
		redis:    rdb,

		jobsByStatus: prometheus.NewDesc(
			"hermes_jobs_count",
			"Number of jobs by status",
			[]string{"status"}, nil,
		),
		stopRequests: prometheus.NewDesc(
			"hermes_stop_requests_pending",
			"Number of pending stop requests",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByStatus
	ch <- c.stopRequests
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectJobCounts(ctx, ch)
	c.collectStopRequests(ctx, ch)
}

func (c *CustomCollector) collectJobCounts(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	rows := []struct {
		Status string `db:"status"`
		Count  float64 `db:"count"`
	}{}

	query := `SELECT status, COUNT(*) AS count FROM jobs GROUP BY status`
	if err := c.postgres.SelectContext(ctx, &rows, query); err != nil {
		c.log.Warnf("metrics: failed to collect job counts: %v", err)
		return
	}

	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.jobsByStatus, prometheus.GaugeValue, row.Count, row.Status)
	}
}

func (c *CustomCollector) collectStopRequests(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.redis == nil {
		return
	}

	n, err := c.redis.SCard(ctx, "arbitrage:stop").Result()
	if err != nil {
		c.log.Warnf("metrics: failed to collect stop requests: %v", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.stopRequests, prometheus.GaugeValue, float64(n))
}
