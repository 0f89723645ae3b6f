package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = "AnyCache"
		},
	)

	BlocksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "block_store",
		Name:      "blocks_created",
	})
	BlocksRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "block_store",
		Name:      "blocks_removed",
	})
	BlocksEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "block_store",
		Name:      "blocks_evicted",
	})
	BlocksPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "block_store",
		Name:      "blocks_promoted",
	})
	DataMoverPreloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "data_mover",
		Name:      "preloads",
	})
	DataMoverPersists = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "AnyCache",
		Subsystem: "data_mover",
		Name:      "persists",
	})
)

func init() {
	Registry.MustRegister(
		GRPCMetrics,
		BlocksCreated,
		BlocksRemoved,
		BlocksEvicted,
		BlocksPromoted,
		DataMoverPreloads,
		DataMoverPersists,
	)
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = "AnyCache"
		},
	)
}
