// Package metrics собирает метрики переходов состояний аккаунтов и заявок на вывод.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

// Collector хранит счётчики Prometheus в собственном реестре.
type Collector struct {
	registry            *prometheus.Registry
	usersResolved       *prometheus.CounterVec
	withdrawalsCreated  prometheus.Counter
	withdrawalsResolved *prometheus.CounterVec
	paidOut             prometheus.Counter
	failures            *prometheus.CounterVec
}

// NewCollector регистрирует метрики сервиса в новом реестре.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		usersResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_users_resolved_total",
			Help: "Users moved out of pending, by resulting status",
		}, []string{"status"}),
		withdrawalsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "payouts_withdrawals_requested_total",
			Help: "Withdrawal requests created",
		}),
		withdrawalsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_withdrawals_resolved_total",
			Help: "Withdrawal requests resolved, by resulting status",
		}, []string{"status"}),
		paidOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "payouts_paid_out_minor_units_total",
			Help: "Sum of processed withdrawals in minor currency units",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payouts_operation_failures_total",
			Help: "Failed operations, by operation and error kind",
		}, []string{"operation", "kind"}),
	}
}

// UserResolved учитывает одобрение или отказ пользователю.
func (c *Collector) UserResolved(status model.UserStatus) {
	c.usersResolved.WithLabelValues(string(status)).Inc()
}

// WithdrawalRequested учитывает новую заявку на вывод.
func (c *Collector) WithdrawalRequested(amount int64) {
	c.withdrawalsCreated.Inc()
}

// WithdrawalResolved учитывает обработку или отклонение заявки.
func (c *Collector) WithdrawalResolved(status model.WithdrawalStatus, amount int64) {
	c.withdrawalsResolved.WithLabelValues(string(status)).Inc()
	if status == model.WithdrawalStatusProcessed {
		c.paidOut.Add(float64(amount))
	}
}

// OperationFailed учитывает неуспешную операцию.
func (c *Collector) OperationFailed(operation, kind string) {
	c.failures.WithLabelValues(operation, kind).Inc()
}

// Handler возвращает HTTP-обработчик для выдачи метрик. Сжатие ответа
// выполняет GzipMiddleware роутера.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{DisableCompression: true})
}
