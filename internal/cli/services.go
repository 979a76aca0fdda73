package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/stepflow/pkg/metrics"
	"github.com/vnykmshr/stepflow/pkg/notify"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

const shutdownTimeout = 5 * time.Second

// metricsServer exposes a private Prometheus registry on /metrics.
type metricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
	addr     string
	logger   *slog.Logger
}

func startMetricsServer(addr string, logger *slog.Logger) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	m := &metricsServer{
		registry: reg,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:     ln.Addr().String(),
		logger:   logger,
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", m.addr)
	return m, nil
}

func (m *metricsServer) config() metrics.Config {
	return metrics.Config{Enabled: true, Registry: m.registry}
}

func (m *metricsServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", "error", err)
	}
}

// eventSink forwards queue events to Redis pub/sub.
type eventSink struct {
	client    *redis.Client
	publisher *notify.Publisher
	logger    *slog.Logger
}

func (a *app) redisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: a.v.GetString(keyRedisAddr),
		DB:   a.v.GetInt(keyRedisDB),
	})
}

func (a *app) startEventSink(ctx context.Context, logger *slog.Logger) (*eventSink, error) {
	client := a.redisClient()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", a.v.GetString(keyRedisAddr), err)
	}

	pub, err := notify.NewPublisher(notify.Config{
		Redis:   client,
		Channel: a.v.GetString(keyRedisChannel),
		Logger:  logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &eventSink{client: client, publisher: pub, logger: logger}, nil
}

func (s *eventSink) attach(name string, q *taskqueue.Queue) error {
	return s.publisher.Attach(name, q)
}

func (s *eventSink) Close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("close publisher", "error", err)
	}
	published, dropped, failed := s.publisher.Stats()
	s.logger.Debug("event sink closed", "published", published, "dropped", dropped, "failed", failed)
	_ = s.client.Close()
}

// services are the optional outputs shared by run and schedule.
type services struct {
	metrics *metricsServer
	events  *eventSink
}

func (a *app) startServices(ctx context.Context, logger *slog.Logger) (*services, error) {
	svc := &services{}
	if addr := a.v.GetString(keyMetricsAddr); addr != "" {
		m, err := startMetricsServer(addr, logger)
		if err != nil {
			return nil, err
		}
		svc.metrics = m
	}
	if a.v.GetString(keyRedisAddr) != "" {
		sink, err := a.startEventSink(ctx, logger)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.events = sink
	}
	return svc, nil
}

func (svc *services) instrument(name string, q *taskqueue.Queue) error {
	if svc.metrics != nil {
		if err := q.EnableMetrics(name, svc.metrics.config()); err != nil {
			return err
		}
	}
	if svc.events != nil {
		if err := svc.events.attach(name, q); err != nil {
			return err
		}
	}
	return nil
}

func (svc *services) Close() {
	if svc.events != nil {
		svc.events.Close()
	}
	if svc.metrics != nil {
		svc.metrics.Close()
	}
}
