package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techrepair_sessions_generated_total",
		Help: "Sessions created with a freshly generated access code",
	})

	SessionsBound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techrepair_sessions_bound_total",
		Help: "Sessions claimed by a technician",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techrepair_sessions_completed_total",
		Help: "Sessions ended and moved to history",
	})

	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techrepair_messages_relayed_total",
		Help: "Chat messages persisted and fanned out, by ingress path",
	}, []string{"path"})

	OpenRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "techrepair_open_rooms",
		Help: "Relay rooms with at least one joined participant",
	})

	RoomParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "techrepair_room_participants",
		Help: "Sockets currently joined to any relay room",
	})
)
