package smartpool

import "github.com/prometheus/client_golang/prometheus"

var (
	// smartpool_operations_total
	//
	// counter of guarded smart pool operations
	//
	// Has the following labels:
	// * op - the operation name
	// * result - "ok", "rejected" for role or reentrancy failures, "error" otherwise
	OperationsMetricName = "smartpool_operations_total"

	operationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: OperationsMetricName,
			Help: "Total number of smart pool operations by outcome",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(operationsCounter)
}
