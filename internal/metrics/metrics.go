package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "careloop"

var (
	// AccessDenials counts authorization denials by reason. The reason label
	// is one of the closed denial reasons, never free text.
	AccessDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "denials_total",
		Help:      "Number of denied authorization decisions.",
	}, []string{"reason"})

	// CrossTenantAttempts counts single record reads that resolved to a
	// record outside the caller's active organization.
	CrossTenantAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "cross_tenant_attempts_total",
		Help:      "Number of record accesses that targeted another tenant.",
	})

	// DenormalizedDivergence counts parent scoped rows whose denormalized
	// tenant id disagrees with their parent. The parent stays authoritative;
	// this only surfaces backfill bugs for review.
	DenormalizedDivergence = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "denormalized_divergence_total",
		Help:      "Rows whose denormalized tenant id diverges from their parent.",
	}, []string{"table"})

	// MigrationSteps counts migration step executions by step and result.
	MigrationSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "migration",
		Name:      "steps_total",
		Help:      "Number of tenant migration step executions.",
	}, []string{"step", "result"})

	// BackfillRemaining tracks rows still missing a tenant id per table.
	BackfillRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "migration",
		Name:      "backfill_remaining",
		Help:      "Rows without a tenant id remaining per table.",
	}, []string{"table"})

	// SessionResolutions counts session context resolutions by outcome.
	SessionResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "resolutions_total",
		Help:      "Number of session context resolutions.",
	}, []string{"outcome"})
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Denial reasons.
const (
	ReasonRoleDenied  = "role_denied"
	ReasonPHIDenied   = "phi_denied"
	ReasonNoTenant    = "no_tenant"
	ReasonHomeScope   = "home_scope"
	ReasonCrossTenant = "cross_tenant"
)
