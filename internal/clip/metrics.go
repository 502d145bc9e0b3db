package clip

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счетчики ядра подрезки. Нулевой указатель допустим: метрики не пишутся.
type Metrics struct {
	visited    prometheus.Counter
	found      *prometheus.CounterVec
	boundaries *prometheus.CounterVec
	promotions *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics создает метрики и регистрирует их в reg (если reg != nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		visited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockclip",
			Name:      "instances_visited_total",
			Help:      "Число вставок, просмотренных при обходе иерархии.",
		}),
		found: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockclip",
			Name:      "clipped_instances_found_total",
			Help:      "Найденные подрезанные вставки по способу обнаружения.",
		}, []string{"method"}),
		boundaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockclip",
			Name:      "boundaries_written_total",
			Help:      "Записанные границы подрезки по механизму записи.",
		}, []string{"mechanism"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockclip",
			Name:      "promotions_total",
			Help:      "Переносы вложенных вставок на верхний уровень.",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockclip",
			Name:      "errors_total",
			Help:      "Ошибки операций по категориям.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockclip",
			Name:      "operation_duration_seconds",
			Help:      "Длительность операций ядра.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.visited, m.found, m.boundaries, m.promotions, m.errors, m.duration)
	}
	return m
}

func (m *Metrics) instanceVisited() {
	if m != nil {
		m.visited.Inc()
	}
}

func (m *Metrics) clippedFound(method string) {
	if m != nil {
		m.found.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) boundaryWritten(mechanism string) {
	if m != nil {
		m.boundaries.WithLabelValues(mechanism).Inc()
	}
}

func (m *Metrics) promotion(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.promotions.WithLabelValues("ok").Inc()
	} else {
		m.promotions.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) failure(err error) {
	if m != nil && err != nil {
		m.errors.WithLabelValues(KindOf(err).String()).Inc()
	}
}

func (m *Metrics) observe(operation string, seconds float64) {
	if m != nil {
		m.duration.WithLabelValues(operation).Observe(seconds)
	}
}
