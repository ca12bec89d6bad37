package queue

import "github.com/prometheus/client_golang/prometheus"

var queueTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "vramd",
		Subsystem: "queue",
		Name:      "deadline_timeouts_total",
		Help:      "Requests whose deadline passed while still queued",
	},
)

func init() {
	prometheus.MustRegister(queueTimeouts)
}
