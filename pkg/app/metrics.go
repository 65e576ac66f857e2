package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer HTTP эндпоинт /metrics и /health
type metricsServer struct {
	server *http.Server
	logger *slog.Logger
	addr   string
}

func newMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &metricsServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "metrics")),
	}
}

// start слушает адрес синхронно, обслуживает в отдельной горутине
func (m *metricsServer) start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.addr = ln.Addr().String()
	m.logger.Info("Метрики доступны", slog.String("addr", m.addr))
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Ошибка сервера метрик", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (m *metricsServer) stop(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}

// newRegistry реестр с метриками процесса и рантайма
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
