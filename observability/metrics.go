package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type debtMetrics struct {
	payments    *prometheus.CounterVec
	withdrawals prometheus.Counter
	modelErrors *prometheus.CounterVec
}

var (
	debtOnce     sync.Once
	debtRegistry *debtMetrics
)

// Debt returns the metrics registry tracking debt ledger activity.
func Debt() *debtMetrics {
	debtOnce.Do(func() {
		debtRegistry = &debtMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "debt",
				Name:      "payments_total",
				Help:      "Count of accepted payments segmented by direction (amount or token).",
			}, []string{"direction"}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "debt",
				Name:      "withdrawals_total",
				Help:      "Count of balance withdrawals settled to owners.",
			}),
			modelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "debt",
				Name:      "model_errors_total",
				Help:      "Count of fail-soft model invocations segmented by operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(debtRegistry.payments, debtRegistry.withdrawals, debtRegistry.modelErrors)
	})
	return debtRegistry
}

// RecordPayment increments the payment counter for the supplied direction.
func (m *debtMetrics) RecordPayment(direction string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(direction).Inc()
}

// RecordWithdrawal increments the withdrawal counter.
func (m *debtMetrics) RecordWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

// RecordModelError increments the soft-failure counter for an operation.
func (m *debtMetrics) RecordModelError(operation string) {
	if m == nil {
		return
	}
	m.modelErrors.WithLabelValues(operation).Inc()
}

type collateralMetrics struct {
	claims   prometheus.Counter
	auctions prometheus.Counter
	redeems  prometheus.Counter
}

var (
	collateralOnce     sync.Once
	collateralRegistry *collateralMetrics
)

// Collateral returns the metrics registry tracking liquidation activity.
func Collateral() *collateralMetrics {
	collateralOnce.Do(func() {
		collateralRegistry = &collateralMetrics{
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "collateral",
				Name:      "claims_total",
				Help:      "Count of claims handed off to the auction house.",
			}),
			auctions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "collateral",
				Name:      "auctions_closed_total",
				Help:      "Count of auction settlements applied to debts.",
			}),
			redeems: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "collateral",
				Name:      "redeems_total",
				Help:      "Count of emergency entry redemptions.",
			}),
		}
		prometheus.MustRegister(collateralRegistry.claims, collateralRegistry.auctions, collateralRegistry.redeems)
	})
	return collateralRegistry
}

// RecordClaim increments the claim counter.
func (m *collateralMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

// RecordAuctionClosed increments the settlement counter.
func (m *collateralMetrics) RecordAuctionClosed() {
	if m == nil {
		return
	}
	m.auctions.Inc()
}

// RecordRedeem increments the redemption counter.
func (m *collateralMetrics) RecordRedeem() {
	if m == nil {
		return
	}
	m.redeems.Inc()
}
