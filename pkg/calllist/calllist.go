// Package calllist хранит единственный источник истины о том, какие вызовы
// существуют и в каком они состоянии, рассылает уведомления об изменениях
// и с задержкой удаляет завершенные вызовы.
package calllist

import (
	"log/slog"
	"sync"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/observer"
	"github.com/arzzra/incallui/pkg/subscription"
)

// Задержки удаления завершенного вызова
const (
	ShortDisconnectDelay  = 200 * time.Millisecond
	MediumDisconnectDelay = 2000 * time.Millisecond
	LongDisconnectDelay   = 5000 * time.Millisecond
)

// DisconnectDelays задержки удаления по причине завершения.
// Для REJECTED, MISSED и CANCELED задержка всегда нулевая.
type DisconnectDelays struct {
	Local  time.Duration
	Remote time.Duration
	Other  time.Duration
}

// DefaultDisconnectDelays возвращает задержки по умолчанию
func DefaultDisconnectDelays() DisconnectDelays {
	return DisconnectDelays{
		Local:  ShortDisconnectDelay,
		Remote: MediumDisconnectDelay,
		Other:  LongDisconnectDelay,
	}
}

// For возвращает задержку для причины завершения
func (d DisconnectDelays) For(cause call.DisconnectCause) time.Duration {
	switch cause.Code {
	case call.DisconnectLocal:
		return d.Local
	case call.DisconnectRemote:
		return d.Remote
	case call.DisconnectRejected, call.DisconnectMissed, call.DisconnectCanceled:
		return 0
	default:
		return d.Other
	}
}

// DelayForDisconnect задержка удаления с настройками по умолчанию
func DelayForDisconnect(cause call.DisconnectCause) time.Duration {
	return DefaultDisconnectDelays().For(cause)
}

// Option настройка CallList
type Option func(*CallList)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(l *CallList) {
		if logger != nil {
			l.logger = logger.With(slog.String("component", "call_list"))
		}
	}
}

// WithMetrics задает метрики
func WithMetrics(m *Metrics) Option {
	return func(l *CallList) { l.metrics = m }
}

// WithDisconnectDelays задает задержки удаления
func WithDisconnectDelays(d DisconnectDelays) Option {
	return func(l *CallList) { l.delays = d }
}

// CallList коллекция всех известных вызовов с ключом по ID.
//
// Все изменяющие методы вызываются только из логического UI потока
// (задач Scheduler'а), поэтому сама коллекция не защищена блокировками.
// Наборы слушателей безопасны для регистрации с других горутин.
type CallList struct {
	sched   looper.Scheduler
	policy  subscription.Policy
	logger  *slog.Logger
	metrics *Metrics
	delays  DisconnectDelays

	// Порядок первого появления; N-й вызов в состоянии выбирается по нему
	order         []string
	calls         map[string]*call.Call
	textResponses map[string][]string
	removals      map[string]looper.Task
	activeSub     int64

	incoming   observer.Set[IncomingCallListener]
	change     observer.Set[ChangeListener]
	disconnect observer.Set[DisconnectListener]
	upgrade    observer.Set[UpgradeToVideoListener]
	activeSubs observer.Set[ActiveSubListener]

	updateMu        sync.Mutex
	updateListeners map[string]*observer.Set[CallUpdateListener]
}

// New создает пустой список вызовов
func New(sched looper.Scheduler, policy subscription.Policy, opts ...Option) *CallList {
	if policy == nil {
		policy = subscription.NewSingleSim(subscription.DefaultSubscriptionID)
	}
	l := &CallList{
		sched:           sched,
		policy:          policy,
		logger:          slog.Default().With(slog.String("component", "call_list")),
		delays:          DefaultDisconnectDelays(),
		calls:           make(map[string]*call.Call),
		textResponses:   make(map[string][]string),
		removals:        make(map[string]looper.Task),
		activeSub:       policy.DefaultSubscription(),
		updateListeners: make(map[string]*observer.Set[CallUpdateListener]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy возвращает политику подписок
func (l *CallList) Policy() subscription.Policy {
	return l.policy
}

// OnIncoming регистрирует новый входящий вызов и уведомляет только
// слушателей входящих вызовов.
func (l *CallList) OnIncoming(c *call.Call, textResponses []string) {
	if c == nil {
		return
	}
	if l.updateCallInMap(c) {
		l.logger.Info("onIncoming", slog.String("call", c.String()))
	}
	l.updateActiveSubscription(c)
	l.updateTextResponses(c, textResponses)

	l.metrics.notified("incoming")
	l.incoming.Each(func(li IncomingCallListener) {
		li.OnIncomingCall(c)
	})
}

// OnUpdate обновляет существующий вызов и уведомляет слушателей вызова
// и общих слушателей.
func (l *CallList) OnUpdate(c *call.Call) {
	if c == nil {
		return
	}
	l.onUpdateCall(c)
	l.notifyGenericListeners()
}

func (l *CallList) onUpdateCall(c *call.Call) {
	if l.updateCallInMap(c) {
		l.logger.Debug("onUpdate", slog.String("call", c.String()))
	}
	l.updateActiveSubscription(c)
	l.updateTextResponses(c, nil)
	l.notifyCallUpdateListeners(c)
}

// OnDisconnect помечает вызов завершенным и уведомляет слушателей вызова
// и отдельный канал завершения.
func (l *CallList) OnDisconnect(c *call.Call) {
	if c == nil {
		return
	}
	if !l.updateCallInMap(c) {
		return
	}
	l.logger.Info("onDisconnect", slog.String("call", c.String()))
	l.updateTextResponses(c, nil)
	l.notifyCallUpdateListeners(c)

	l.metrics.notified("disconnect")
	l.disconnect.Each(func(li DisconnectListener) {
		li.OnDisconnect(c)
	})
}

// OnCallRemoved платформа перестала сообщать о вызове. Слушатели не
// уведомляются: завершение уже пришло через OnDisconnect.
func (l *CallList) OnCallRemoved(c *call.Call) {
	if c == nil {
		return
	}
	if _, tracked := l.calls[c.ID]; !tracked {
		return
	}
	if l.updateCallInMap(c) && c.State != call.StateDisconnected {
		l.logger.Warn("Удален вызов, не завершенный ранее", slog.String("call", c.String()))
	}
	l.updateTextResponses(c, nil)
}

// OnUpgradeToVideo обновляет вызов и сообщает о запросе перехода к видео
func (l *CallList) OnUpgradeToVideo(c *call.Call) {
	if c == nil {
		return
	}
	l.onUpdateCall(c)
	l.metrics.notified("upgrade_to_video")
	l.upgrade.Each(func(li UpgradeToVideoListener) {
		li.OnUpgradeToVideo(c)
	})
}

// SetSessionModificationState меняет состояние запроса видео у вызова id
// и уведомляет слушателей как OnUpdate. Хранимый вызов заменяется копией.
// Возвращает false если вызова нет или состояние не изменилось.
func (l *CallList) SetSessionModificationState(id string, state call.SessionModificationState) bool {
	c := l.calls[id]
	if c == nil || c.SessionModificationState == state {
		return false
	}
	next := c.Clone()
	next.SessionModificationState = state
	l.OnUpdate(next)
	return true
}

// ClearOnDisconnect переводит все живые вызовы в DISCONNECTED с причиной
// UNKNOWN. Вызывается при потере связи с телефонным сервисом.
func (l *CallList) ClearOnDisconnect() {
	for _, c := range l.Calls() {
		switch c.State {
		case call.StateIdle, call.StateInvalid, call.StateDisconnected:
			continue
		}
		c.State = call.StateDisconnected
		c.DisconnectCause = call.NewDisconnectCause(call.DisconnectUnknown)
		l.updateCallInMap(c)
	}
	l.notifyGenericListeners()
}

// updateCallInMap применяет политику вставки и удаления.
// Возвращает true если список изменился.
func (l *CallList) updateCallInMap(c *call.Call) bool {
	_, tracked := l.calls[c.ID]

	switch {
	case c.State == call.StateDisconnected:
		// Обновляем, но не добавляем завершенные вызовы
		if !tracked {
			return false
		}
		l.calls[c.ID] = c
		l.scheduleRemoval(c)
	case !c.State.IsDead():
		l.cancelRemoval(c.ID)
		if !tracked {
			l.order = append(l.order, c.ID)
		}
		l.calls[c.ID] = c
	case tracked:
		l.cancelRemoval(c.ID)
		delete(l.calls, c.ID)
		l.removeFromOrder(c.ID)
		l.metrics.callRemoved()
	default:
		return false
	}

	l.metrics.setTracked(len(l.calls))
	return true
}

// scheduleRemoval откладывает удаление завершенного вызова.
// Уже запланированное удаление не переносится.
func (l *CallList) scheduleRemoval(c *call.Call) {
	if _, pending := l.removals[c.ID]; pending {
		return
	}
	delay := l.delays.For(c.DisconnectCause)
	id := c.ID
	l.removals[id] = l.sched.PostDelayed(delay, func() {
		l.finishDisconnectedCall(id)
	})
	l.metrics.removalScheduled(c.DisconnectCause.Code.String())
	l.logger.Debug("Удаление вызова запланировано",
		slog.String("call_id", id),
		slog.String("cause", c.DisconnectCause.String()),
		slog.Duration("delay", delay))
}

func (l *CallList) cancelRemoval(id string) {
	if t, ok := l.removals[id]; ok {
		t.Cancel()
		delete(l.removals, id)
	}
}

func (l *CallList) finishDisconnectedCall(id string) {
	delete(l.removals, id)

	c, ok := l.calls[id]
	if !ok || c.State != call.StateDisconnected {
		l.logger.Debug("Устаревший таймер удаления", slog.String("call_id", id))
		return
	}

	c.State = call.StateIdle
	l.updateCallInMap(c)
	l.updateTextResponses(c, nil)
	l.notifyGenericListeners()
}

func (l *CallList) removeFromOrder(id string) {
	for i, x := range l.order {
		if x == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

func (l *CallList) updateTextResponses(c *call.Call, responses []string) {
	switch {
	case c.State == call.StateDisconnected || c.State.IsDead():
		delete(l.textResponses, c.ID)
	case responses != nil:
		l.textResponses[c.ID] = append([]string(nil), responses...)
	}
}

func (l *CallList) updateActiveSubscription(c *call.Call) {
	if l.policy.TracksActiveSubscription(c) {
		l.SetActiveSubscription(c.SubscriptionID)
	}
}

func (l *CallList) notifyGenericListeners() {
	l.metrics.notified("change")
	l.change.Each(func(li ChangeListener) {
		li.OnCallListChange(l)
	})
}

func (l *CallList) notifyCallUpdateListeners(c *call.Call) {
	l.updateMu.Lock()
	set := l.updateListeners[c.ID]
	l.updateMu.Unlock()
	if set == nil {
		return
	}
	l.metrics.notified("call_update")
	set.Each(func(li CallUpdateListener) {
		li.OnCallChanged(c)
	})
}

// AddListener подписывает li на все каналы, интерфейсы которых он реализует.
// Новый ChangeListener сразу получает OnCallListChange.
// Возвращает false если li не реализует ни одного канала.
func (l *CallList) AddListener(li any) bool {
	matched := false
	if v, ok := li.(IncomingCallListener); ok {
		l.incoming.Add(v)
		matched = true
	}
	if v, ok := li.(DisconnectListener); ok {
		l.disconnect.Add(v)
		matched = true
	}
	if v, ok := li.(UpgradeToVideoListener); ok {
		l.upgrade.Add(v)
		matched = true
	}
	if v, ok := li.(ActiveSubListener); ok {
		l.activeSubs.Add(v)
		matched = true
	}
	if v, ok := li.(ChangeListener); ok {
		matched = true
		if l.change.Add(v) {
			v.OnCallListChange(l)
		}
	}
	return matched
}

// RemoveListener отписывает li от всех каналов
func (l *CallList) RemoveListener(li any) {
	if v, ok := li.(IncomingCallListener); ok {
		l.incoming.Remove(v)
	}
	if v, ok := li.(DisconnectListener); ok {
		l.disconnect.Remove(v)
	}
	if v, ok := li.(UpgradeToVideoListener); ok {
		l.upgrade.Remove(v)
	}
	if v, ok := li.(ActiveSubListener); ok {
		l.activeSubs.Remove(v)
	}
	if v, ok := li.(ChangeListener); ok {
		l.change.Remove(v)
	}
}

// AddCallUpdateListener подписывает li на изменения вызова id
func (l *CallList) AddCallUpdateListener(id string, li CallUpdateListener) {
	l.updateMu.Lock()
	defer l.updateMu.Unlock()
	set, ok := l.updateListeners[id]
	if !ok {
		set = &observer.Set[CallUpdateListener]{}
		l.updateListeners[id] = set
	}
	set.Add(li)
}

// RemoveCallUpdateListener отписывает li от изменений вызова id
func (l *CallList) RemoveCallUpdateListener(id string, li CallUpdateListener) {
	l.updateMu.Lock()
	defer l.updateMu.Unlock()
	set, ok := l.updateListeners[id]
	if !ok {
		return
	}
	set.Remove(li)
	if set.Len() == 0 {
		delete(l.updateListeners, id)
	}
}
