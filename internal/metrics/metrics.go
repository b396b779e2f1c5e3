// Package metrics holds the Prometheus collectors shared by the auth flow,
// the user store and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_auth_logins_total",
			Help: "Total number of wallet login attempts by result",
		},
		[]string{"result"},
	)

	UserUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_auth_user_upserts_total",
			Help: "Total number of user upserts by branch",
		},
		[]string{"branch"},
	)

	SchemaBootstrapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_auth_schema_bootstraps_total",
			Help: "Total number of users schema bootstraps by trigger",
		},
		[]string{"trigger"},
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_auth_db_query_duration_seconds",
			Help:    "Duration of user store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_auth_db_query_errors_total",
			Help: "Total number of failed user store queries",
		},
		[]string{"operation"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_auth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

const (
	LoginSucceeded = "success"
	LoginMissing   = "missing_credential"
	LoginRejected  = "rejected"
	LoginFailed    = "error"

	BranchCreated = "created"
	BranchUpdated = "updated"

	TriggerLazy     = "lazy"
	TriggerExplicit = "explicit"
)
