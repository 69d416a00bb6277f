// Package metrics exposes the Prometheus instruments shared across the
// server. Everything registers on the default registry and is served from
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "mercado",
	Subsystem: "session",
	Name:      "active",
	Help:      "Number of currently logged-in sessions.",
})

var Logins = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "session",
	Name:      "logins_total",
	Help:      "Total successful logins and registrations.",
})

var TamperTrips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "integrity",
	Name:      "tamper_trips_total",
	Help:      "Total sessions frozen by a failed integrity or sanity check.",
})

var Clicks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "game",
	Name:      "clicks_total",
	Help:      "Total manual clicks applied.",
})

var Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "game",
	Name:      "purchases_total",
	Help:      "Total successful purchases by kind.",
}, []string{"kind"})

var Prestiges = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "game",
	Name:      "prestiges_total",
	Help:      "Total prestige resets performed.",
})

var ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "chat",
	Name:      "messages_total",
	Help:      "Total chat messages broadcast.",
})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mercado",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status class.",
}, []string{"route", "class"})
