package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_counter",
		Help: "How many messages were sent to clients. Including server info messages.",
	})
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_connections_counter",
		Help: "How many clients are connected to the server.",
	})
)
