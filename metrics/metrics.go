// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/luxfi/log"
)

// RollupMetrics counts the observable events of the rollup node.
type RollupMetrics struct {
	ClaimsReceived    prometheus.Counter
	Conflicts         prometheus.Counter
	DisputesResolved  prometheus.Counter
	ConsensusReached  prometheus.Counter
	EpochsFinalized   prometheus.Counter
	InputsAccumulated prometheus.Counter
	VouchersExecuted  prometheus.Counter
	CurrentEpoch      prometheus.Gauge
}

func NewRollupMetrics(registerer prometheus.Registerer) *RollupMetrics {
	m := RollupMetrics{
		ClaimsReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claims_received",
				Help: "Number of claims accepted by the validator manager",
			},
		),
		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claim_conflicts",
				Help: "Number of conflicting claim standoffs detected",
			},
		),
		DisputesResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "disputes_resolved",
				Help: "Number of externally adjudicated dispute outcomes recorded",
			},
		),
		ConsensusReached: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "consensus_reached",
				Help: "Number of epochs that reached full agreement",
			},
		),
		EpochsFinalized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "epochs_finalized",
				Help: "Number of finalized epochs, by consensus or timeout",
			},
		),
		InputsAccumulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inputs_accumulated",
				Help: "Number of inputs accepted into epoch boxes",
			},
		),
		VouchersExecuted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vouchers_executed",
				Help: "Number of vouchers executed against finalized claims",
			},
		),
		CurrentEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "current_epoch",
				Help: "Number of the currently accumulating epoch",
			},
		),
	}
	registerer.MustRegister(m.ClaimsReceived)
	registerer.MustRegister(m.Conflicts)
	registerer.MustRegister(m.DisputesResolved)
	registerer.MustRegister(m.ConsensusReached)
	registerer.MustRegister(m.EpochsFinalized)
	registerer.MustRegister(m.InputsAccumulated)
	registerer.MustRegister(m.VouchersExecuted)
	registerer.MustRegister(m.CurrentEpoch)

	return &m
}

// StartMetricsServer serves the registry on /metrics in the background.
func StartMetricsServer(logger log.Logger, port uint16) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting metrics server", log.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server exited", log.String("error", err.Error()))
		}
	}()

	return registry
}
