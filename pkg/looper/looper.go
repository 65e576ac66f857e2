// Package looper реализует логический UI поток: очередь сообщений,
// исполняемую одной горутиной, и отложенные задачи, которые выполняются
// на той же горутине.
//
// Все изменяющие операции CallList и InCallPresenter должны вызываться
// только из задач, исполняемых Scheduler'ом. Вызовы с других горутин
// (например, колбэки SIP стека) передаются через Post.
package looper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped возвращается при работе с остановленным Looper
var ErrStopped = errors.New("looper остановлен")

// Task отложенная задача
type Task interface {
	// Cancel отменяет задачу. Возвращает true если задача еще не выполнялась.
	Cancel() bool
}

// Scheduler очередь задач логического UI потока
type Scheduler interface {
	// Post ставит задачу в конец очереди
	Post(fn func())
	// PostDelayed выполняет задачу через d
	PostDelayed(d time.Duration, fn func()) Task
	// Now текущее время с точки зрения планировщика
	Now() time.Time
}

const (
	taskPending int32 = iota
	taskRan
	taskCancelled
)

// Looper выполняет задачи по одной на выделенной горутине
type Looper struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	done    chan struct{}
	started bool
	stopped bool

	logger *slog.Logger
}

// New создает Looper. Горутина запускается методом Start.
func New(logger *slog.Logger) *Looper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Looper{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "looper")),
	}
}

// Start запускает горутину обработки. Повторный вызов ничего не делает.
func (l *Looper) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true
	go l.loop()
}

// Post ставит задачу в очередь. После Stop задачи отбрасываются.
func (l *Looper) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.logger.Debug("Задача отброшена: looper остановлен")
		return
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostDelayed ставит задачу в очередь через d.
// Задача с d <= 0 ставится в очередь сразу, но все равно выполняется
// после текущей задачи.
func (l *Looper) PostDelayed(d time.Duration, fn func()) Task {
	t := &delayedTask{}
	run := func() {
		if t.state.CompareAndSwap(taskPending, taskRan) {
			fn()
		}
	}
	if d <= 0 {
		l.Post(run)
		return t
	}
	t.timer = time.AfterFunc(d, func() { l.Post(run) })
	return t
}

// Now возвращает системное время
func (l *Looper) Now() time.Time {
	return time.Now()
}

// Sync выполняет fn на горутине looper'а и ждет завершения
func (l *Looper) Sync(ctx context.Context, fn func()) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop останавливает обработку и ждет завершения текущей задачи
func (l *Looper) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	started := l.started
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	if !started {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Looper) loop() {
	defer close(l.done)
	for range l.wake {
		for {
			l.mu.Lock()
			if l.stopped {
				l.tasks = nil
				l.mu.Unlock()
				return
			}
			if len(l.tasks) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.tasks[0]
			l.tasks[0] = nil
			l.tasks = l.tasks[1:]
			l.mu.Unlock()

			l.run(fn)
		}
	}
}

// run выполняет задачу; паника в задаче не останавливает поток
func (l *Looper) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Паника в задаче looper'а", slog.Any("panic", r))
		}
	}()
	fn()
}

type delayedTask struct {
	state atomic.Int32
	timer *time.Timer
}

func (t *delayedTask) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}
