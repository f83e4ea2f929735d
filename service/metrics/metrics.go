package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Applications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commonthread",
			Name:      "applications_total",
			Help:      "Volunteer applications by outcome (confirmed, pending, full, rejected)",
		},
		[]string{"outcome"},
	)
	SlotsReserved = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "commonthread", Name: "slots_reserved_total", Help: "Opportunity slots reserved"},
	)
	SlotsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "commonthread", Name: "slots_released_total", Help: "Opportunity slots released by cancellation or deletion"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commonthread", Name: "commitment_transitions_total", Help: "Commitment status changes"},
		[]string{"from", "to"},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "commonthread", Name: "deliveries_total", Help: "Notification and email deliveries by channel and result"},
		[]string{"channel", "result"},
	)
	RemindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "commonthread", Name: "reminders_sent_total", Help: "Reminder notifications created by the scheduler"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Applications, SlotsReserved, SlotsReleased, Transitions, Deliveries, RemindersSent)
	})
}

// Delivered records the outcome of a best-effort delivery.
func Delivered(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Deliveries.WithLabelValues(channel, result).Inc()
}
