// Package metrics содержит счётчики Prometheus программы лояльности.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loyalty"

// Metrics хранит счётчики сервиса. Методы безопасно вызывать на nil.
type Metrics struct {
	registry *prometheus.Registry

	sales         prometheus.Counter
	pointsGranted prometheus.Counter
	winners       prometheus.Counter
	claims        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New создаёт собственный реестр и регистрирует в нём счётчики.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_registered_total",
			Help:      "Number of registered sales.",
		}),
		pointsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_granted_total",
			Help:      "Sum of granted points.",
		}),
		winners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_assigned_total",
			Help:      "Number of assigned winner codes.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_claims_total",
			Help:      "Reward claim attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winner_notifications_total",
			Help:      "Winner notification deliveries by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.sales, m.pointsGranted, m.winners, m.claims, m.notifications)

	return m
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry возвращает реестр счётчиков.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SaleRegistered учитывает продажу и начисленные баллы.
func (m *Metrics) SaleRegistered(points int64, winner bool) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.pointsGranted.Add(float64(points))
	if winner {
		m.winners.Inc()
	}
}

// RewardClaimed учитывает попытку выдачи приза. В result передаётся машиночитаемый код или "ok".
func (m *Metrics) RewardClaimed(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

// NotificationSent учитывает отправку уведомления.
func (m *Metrics) NotificationSent(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
