// Package metrics exposes the coordinator's Prometheus instruments. All
// metrics live in the "arena" namespace and register against the default
// registerer; the gateway serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "connections_active",
		Help:      "Number of live WebSocket connections",
	})

	UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "users_online",
		Help:      "Number of distinct users with at least one connection",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "rooms_active",
		Help:      "Number of active match rooms",
	})

	MatchesFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "matches_finalized_total",
		Help:      "Total matches whose result was computed and broadcast",
	})

	RoomsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "rooms_swept_total",
		Help:      "Total rooms reclaimed by the idle sweep",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "events_dropped_total",
		Help:      "Inbound events dropped, by reason",
	}, []string{"reason"})

	InvitesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "invites_sent_total",
		Help:      "Total room invites delivered",
	})
)
