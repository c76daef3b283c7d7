package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"
	"time"

	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opRegex     = regexp.MustCompile(`^(\w)+`)
	dbOpLatency *prometheus.HistogramVec
	dbOpTotal   *prometheus.CounterVec
)

type metricInterceptor struct {
	sqlmw.NullInterceptor
}

func init() {
	dbOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "db_op_duration_milliseconds",
		Help:      "Time spent on a database operation",
		Subsystem: "cost_estimator",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	},
		[]string{"op", "method"},
	)
	dbOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "db_op_total",
		Help:      "Number of database operations",
		Subsystem: "cost_estimator",
	},
		[]string{"op"},
	)

	prometheus.MustRegister(dbOpLatency)
	prometheus.MustRegister(dbOpTotal)
}

func (mi *metricInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	start := time.Now()
	defer mi.measure("conn-begin-tx", "conn-begin-tx", start)

	tx, err := conn.BeginTx(ctx, opts)
	return ctx, tx, err
}

func (mi *metricInterceptor) ConnPrepareContext(ctx context.Context, conn driver.ConnPrepareContext, query string) (context.Context, driver.Stmt, error) {
	start := time.Now()
	defer mi.measure("conn-prepare-context", "conn-prepare-context", start)

	stmt, err := conn.PrepareContext(ctx, query)
	return ctx, stmt, err
}

func (mi *metricInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	defer mi.measure("conn-exec-context", queryMethod(query, "conn-exec-context"), start)

	return conn.ExecContext(ctx, query, args)
}

func (mi *metricInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	defer mi.measure("conn-query-context", queryMethod(query, "conn-query-context"), start)

	rows, err := conn.QueryContext(ctx, query, args)
	return ctx, rows, err
}

// Tx interceptors
func (mi *metricInterceptor) TxCommit(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	defer mi.measure("tx-commit", "tx-commit", start)
	return conn.Commit()
}

func (mi *metricInterceptor) TxRollback(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	defer mi.measure("tx-rollback", "tx-rollback", start)
	return conn.Rollback()
}

func (mi *metricInterceptor) measure(op, method string, start time.Time) {
	labels := prometheus.Labels{
		"op": op,
	}
	dbOpTotal.With(labels).Inc()

	since := float64(time.Since(start).Milliseconds())
	labels = prometheus.Labels{
		"op":     op,
		"method": method,
	}
	dbOpLatency.With(labels).Observe(since)
}

// queryMethod returns the leading SQL verb of query, lower-cased.
func queryMethod(query, fallback string) string {
	matches := opRegex.FindString(strings.TrimSpace(query))
	if matches == "" {
		return fallback
	}
	return strings.ToLower(matches)
}
