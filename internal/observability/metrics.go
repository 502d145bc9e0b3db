package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/annel0/blockclip/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler возвращает HTTP-обработчик Prometheus для заданного реестра
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// ServeMetrics запускает HTTP-эндпоинт /metrics на указанном адресе (например, ":2112").
// Метод неблокирующий: сервер стартует в отдельной горутине; остановка - через Shutdown.
func ServeMetrics(addr string, gatherer prometheus.Gatherer) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
