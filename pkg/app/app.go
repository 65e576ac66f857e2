// Package app собирает ядро экрана вызова в работающий процесс:
// looper, CallList, InCallPresenter, экранные презентеры, безголовый слой
// отображения, SIP мост и HTTP эндпоинт метрик.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arzzra/incallui/pkg/config"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/arzzra/incallui/pkg/telecom/sipbridge"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// shutdownTimeout ожидание остановки looper'а и сервера метрик
const shutdownTimeout = 5 * time.Second

// ErrClosed приложение уже закрыто
var ErrClosed = errors.New("app closed")

// Options необязательные зависимости приложения
type Options struct {
	Logger *slog.Logger
	// Registry реестр метрик. nil создает новый с метриками процесса.
	Registry *prometheus.Registry
}

// App процесс ядра экрана вызова
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	looper *looper.Looper
	bridge *sipbridge.Bridge
	core   *core

	mu      sync.Mutex
	metrics *metricsServer
	closed  bool
}

// New проверяет конфигурацию и собирает приложение. Сеть не
// открывается до Run.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session", uuid.NewString()))

	reg := opts.Registry
	if reg == nil {
		reg = newRegistry()
	}

	bridge, err := sipbridge.New(sipbridge.Config{
		Network:        cfg.SIP.ListenNetwork,
		ListenAddr:     cfg.SIP.ListenAddr,
		UserAgent:      cfg.SIP.UserAgent,
		ContactUser:    cfg.SIP.ContactUser,
		SubscriptionID: cfg.SIP.SubscriptionID,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create sip bridge: %w", err)
	}

	lp := looper.New(logger)
	c := wire(lp, bridge, &bridgeAudio{bridge: bridge}, cfg, logger, reg)
	bridge.SetListener(c.binding)

	return &App{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "app")),
		registry: reg,
		looper:   lp,
		bridge:   bridge,
		core:     c,
	}, nil
}

// Registry реестр метрик приложения
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Presenter InCallPresenter приложения. Обращаться только через Sync.
func (a *App) Presenter() *incall.Presenter {
	return a.core.incall
}

// Sync выполняет fn на потоке looper'а
func (a *App) Sync(ctx context.Context, fn func()) error {
	return a.looper.Sync(ctx, fn)
}

// Run запускает looper, метрики и SIP сервер и блокируется до отмены ctx.
// Перед возвратом все вызовы завершаются, сессия закрывается.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.mu.Unlock()

	a.looper.Start()
	if a.cfg.Metrics.Enabled {
		m := newMetricsServer(a.cfg.Metrics.ListenAddr, a.registry, a.logger)
		if err := m.start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		a.mu.Lock()
		a.metrics = m
		a.mu.Unlock()
	}

	a.logger.Info("Ядро экрана вызова запущено",
		slog.String("sip", a.cfg.SIP.ListenNetwork+"/"+a.cfg.SIP.ListenAddr))
	err := a.bridge.Serve(ctx)

	// Отвязка сервиса уже в очереди looper'а: дожидаемся ее
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if ferr := a.looper.Sync(flushCtx, func() {}); ferr != nil {
		a.logger.Warn("Очередь looper'а не обработана", slog.String("error", ferr.Error()))
	}

	if err != nil {
		return fmt.Errorf("sip server: %w", err)
	}
	return nil
}

// Dial начинает исходящий вызов. Экран поднимается сразу, еще до
// появления вызова в списке.
func (a *App) Dial(ctx context.Context, target string) (string, error) {
	if err := a.looper.Sync(ctx, a.core.prepareOutgoing); err != nil {
		return "", err
	}
	id, err := a.bridge.Dial(ctx, target)
	if err != nil {
		a.looper.Post(a.core.cancelOutgoing)
		return "", fmt.Errorf("dial %s: %w", target, err)
	}
	return id, nil
}

// Close останавливает SIP стек, сервер метрик и looper
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	m := a.metrics
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.bridge.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sip bridge: %w", err))
	}
	if m != nil {
		if err := m.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}
	if err := a.looper.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop looper: %w", err))
	}
	return errors.Join(errs...)
}

// bridgeAudio состояние звука из SIP моста
type bridgeAudio struct {
	bridge *sipbridge.Bridge
}

var _ incall.AudioModeProvider = (*bridgeAudio)(nil)

func (a *bridgeAudio) Mute() bool                    { return a.bridge.IsMuted() }
func (a *bridgeAudio) AudioMode() telecom.AudioRoute { return a.bridge.AudioRoute() }
