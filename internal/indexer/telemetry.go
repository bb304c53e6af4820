package indexer

import "github.com/prometheus/client_golang/prometheus"

var indexedLogsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smartpool_indexed_logs_total",
		Help: "Chain logs seen by the indexer, by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(indexedLogsCounter)
}
