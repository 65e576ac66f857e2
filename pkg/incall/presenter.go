// Package incall переводит факты CallList в единое InCallState и в действия
// жизненного цикла экрана вызова, а затем рассылает переходы презентерам
// экранов.
//
// Все методы Presenter вызываются из логического UI потока (задач
// looper.Scheduler). После TearDown и очистки любой публичный метод
// становится no-op.
package incall

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/observer"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/looplab/fsm"
)

// Option настройка Presenter
type Option func(*Presenter)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(p *Presenter) {
		if logger != nil {
			p.logger = logger.With(slog.String("component", "incall_presenter"))
		}
	}
}

// WithMetrics задает метрики
func WithMetrics(m *Metrics) Option {
	return func(p *Presenter) { p.metrics = m }
}

// Presenter контроллер экрана вызова
type Presenter struct {
	commands telecom.Commands
	logger   *slog.Logger
	metrics  *Metrics

	// Каноническое InCallState; одно событие на каждое целевое состояние
	machine *fsm.FSM

	// Ресурсы сессии. Обнуляются в attemptCleanup, что защищает от
	// повторной очистки.
	callList          *calllist.CallList
	host              Host
	audioModeProvider AudioModeProvider
	statusBarNotifier StatusBarNotifier
	proximitySensor   ProximitySensor
	contactInfoCache  ContactInfoCache
	ui                UISurface

	serviceConnected               bool
	serviceBound                   bool
	boundAndWaitingForOutgoingCall bool
	accountSelectionCancelled      bool
	awaitingCallListUpdate         bool
	activityPreviouslyStarted      bool
	fullScreen                     bool

	stateListeners       observer.Set[StateListener]
	incomingListeners    observer.Set[IncomingCallListener]
	detailsListeners     observer.Set[DetailsListener]
	canAddCallListeners  observer.Set[CanAddCallListener]
	orientationListeners observer.Set[OrientationListener]
	eventListeners       observer.Set[EventListener]
	uiListeners          observer.Set[UIListener]
	pluginListeners      observer.Set[PluginUpdateListener]
}

// New создает Presenter. Сессия начинается с SetUp.
func New(commands telecom.Commands, opts ...Option) *Presenter {
	p := &Presenter{
		commands: commands,
		logger:   slog.Default().With(slog.String("component", "incall_presenter")),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.machine = newStateMachine(p)
	return p
}

func newStateMachine(p *Presenter) *fsm.FSM {
	states := States()
	src := make([]string, 0, len(states))
	for _, s := range states {
		src = append(src, s.String())
	}

	events := make(fsm.Events, 0, len(states))
	for _, s := range states {
		events = append(events, fsm.EventDesc{Name: s.String(), Src: src, Dst: s.String()})
	}

	return fsm.NewFSM(
		StateNoCalls.String(),
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				p.onEnterState(InCallState(e.Src), InCallState(e.Dst))
			},
		},
	)
}

func (p *Presenter) onEnterState(from, to InCallState) {
	p.logger.Info("Смена состояния телефона",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	p.metrics.transition(from, to)
}

// State текущее InCallState
func (p *Presenter) State() InCallState {
	return InCallState(p.machine.Current())
}

func (p *Presenter) setState(s InCallState) {
	err := p.machine.Event(context.Background(), s.String())
	if err == nil {
		return
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return
	}
	p.logger.Error("Недопустимый переход состояния",
		slog.String("to", s.String()),
		slog.String("error", err.Error()))
}

// CallList текущий список вызовов сессии или nil после очистки
func (p *Presenter) CallList() *calllist.CallList {
	return p.callList
}

// SetUp подключает сессию телефонного сервиса.
//
// Повторный вызов при уже подключенном сервисе ничего не меняет, но
// проверяет что переданы те же CallList, Host и AudioModeProvider.
// Host и AudioModeProvider сравниваются как значения интерфейса, поэтому
// их реализации должны быть сравнимыми (обычно указатели).
func (p *Presenter) SetUp(deps Dependencies) error {
	if p.serviceConnected {
		p.logger.Info("Новое подключение сервиса заменяет существующее")
		switch {
		case deps.CallList != p.callList:
			return newSetupError(SetupCallListMismatch, "call list differs from the connected session", nil)
		case deps.Host != p.host:
			return newSetupError(SetupHostMismatch, "host differs from the connected session", nil)
		case deps.AudioModeProvider != p.audioModeProvider:
			return newSetupError(SetupAudioModeMismatch, "audio mode provider differs from the connected session", nil)
		}
		return nil
	}

	if deps.CallList == nil || deps.Host == nil {
		return newSetupError(SetupMissingDependency, "call list and host are required", ErrMissingDependency)
	}

	p.host = deps.Host
	p.contactInfoCache = deps.ContactInfoCache
	p.statusBarNotifier = deps.StatusBarNotifier
	if p.statusBarNotifier != nil {
		p.AddStateListener(p.statusBarNotifier)
	}
	p.audioModeProvider = deps.AudioModeProvider
	p.proximitySensor = deps.ProximitySensor
	if p.proximitySensor != nil {
		p.AddStateListener(p.proximitySensor)
	}
	p.callList = deps.CallList

	p.serviceConnected = true

	// Последним подписываемся на CallList: подписка сразу вызывает
	// OnCallListChange и запускает весь процесс.
	p.callList.AddListener(p)
	p.logger.Debug("SetUp завершен")
	return nil
}

// TearDown сервис отключен
func (p *Presenter) TearDown() {
	p.logger.Debug("TearDown")
	p.serviceConnected = false
	p.attemptCleanup()
}

// IsServiceConnected сессия сервиса подключена
func (p *Presenter) IsServiceConnected() bool {
	return p.serviceConnected
}

// OnServiceBind сервис привязан
func (p *Presenter) OnServiceBind() {
	p.serviceBound = true
}

// OnServiceUnbind сервис отвязан: ожидание исходящего сбрасывается,
// все живые вызовы принудительно завершаются.
func (p *Presenter) OnServiceUnbind() {
	p.SetBoundAndWaitingForOutgoingCall(false)
	p.serviceBound = false
	if p.callList != nil {
		p.callList.ClearOnDisconnect()
	}
}

// IsServiceBound сервис привязан
func (p *Presenter) IsServiceBound() bool {
	return p.serviceBound
}

// SetBoundAndWaitingForOutgoingCall фиксирует намерение: экран привязан
// к сервису и ждет исходящий вызов, которого еще нет в CallList.
// При NO_CALLS состояние сразу становится OUTGOING.
func (p *Presenter) SetBoundAndWaitingForOutgoingCall(bound bool) {
	p.boundAndWaitingForOutgoingCall = bound
	if bound && p.State() == StateNoCalls {
		p.setState(StateOutgoing)
	}
}

// ComputeState выводит InCallState из содержимого списка. Первое
// совпадение по приоритету: INCOMING, WAITING_FOR_ACCOUNT,
// PENDING_OUTGOING, OUTGOING, INCALL, NO_CALLS. NO_CALLS повышается до
// OUTGOING если выставлен boundAndWaitingForOutgoingCall.
func ComputeState(list *calllist.CallList, boundAndWaitingForOutgoingCall bool) InCallState {
	state := StateNoCalls
	if list == nil {
		return state
	}

	switch {
	case list.IncomingCall() != nil:
		state = StateIncoming
	case list.WaitingForAccountCall() != nil:
		state = StateWaitingForAccount
	case list.PendingOutgoingCall() != nil:
		state = StatePendingOutgoing
	case list.OutgoingCall() != nil:
		state = StateOutgoing
	case list.ActiveCall() != nil,
		list.BackgroundCall() != nil,
		list.DisconnectedCall() != nil,
		list.DisconnectingCall() != nil:
		state = StateInCall
	}

	if state == StateNoCalls && boundAndWaitingForOutgoingCall {
		return StateOutgoing
	}
	return state
}

// PotentialState состояние, которое дал бы текущий список вызовов
func (p *Presenter) PotentialState() InCallState {
	return ComputeState(p.callList, p.boundAndWaitingForOutgoingCall)
}

// SetActivity экран вызова поднялся (или снова стал started)
func (p *Presenter) SetActivity(ui UISurface) {
	if ui == nil {
		p.logger.Error("SetActivity с пустым экраном")
		return
	}
	p.updateActivity(ui)
}

// UnsetActivity экран вызова уничтожен. Чужой экземпляр игнорируется.
func (p *Presenter) UnsetActivity(ui UISurface) {
	if ui == nil {
		p.logger.Error("UnsetActivity с пустым экраном")
		return
	}
	if p.ui == nil {
		p.logger.Info("Экран не установлен, снимать нечего")
		return
	}
	if p.ui != ui {
		p.logger.Warn("Второй экземпляр экрана пытается сняться")
		return
	}
	p.updateActivity(nil)
}

func (p *Presenter) updateActivity(ui UISurface) {
	updateListeners := false
	doAttemptCleanup := false

	if ui != nil {
		if p.ui == nil {
			// Повторные SetActivity того же экрана (уход в фон и обратно)
			// не пересчитывают состояние.
			updateListeners = true
			p.logger.Info("Экран инициализирован")
		}
		p.ui = ui
		p.ui.SetExcludeFromRecents(false)

		// Вызов мог завершиться до того как экран поднялся
		if p.callList != nil {
			if c := p.callList.DisconnectedCall(); c != nil {
				p.maybeShowErrorDialogOnDisconnect(c)
			}
		}

		// NO_CALLS здесь значит что вызов соединился и сразу завершился
		// до появления экрана.
		if p.State() == StateNoCalls {
			p.logger.Info("Экран инициализирован, но вызовов нет: закрываем")
			p.attemptFinishActivity()
			return
		}
	} else {
		p.logger.Info("Экран уничтожен")
		updateListeners = true
		p.ui = nil
		// Очистка только после пересчета состояния: возможно экран нужно
		// поднять снова.
		doAttemptCleanup = true
	}

	// Пересчитываем даже без подключенного сервиса: переход мог быть
	// отложен пока экран закрывался.
	if updateListeners {
		p.OnCallListChange(p.callList)
	}
	if doAttemptCleanup {
		p.attemptCleanup()
	}
}

// OnCallListChange реакция на любое изменение списка вызовов
func (p *Presenter) OnCallListChange(list *calllist.CallList) {
	if p.ui != nil && p.ui.IsAnimating() {
		p.awaitingCallListUpdate = true
		p.logger.Debug("Карточка вызова анимируется, обновление отложено")
		return
	}
	if list == nil {
		return
	}
	p.awaitingCallListUpdate = false

	if !list.HasAnyLiveCall(list.ActiveSubscription()) {
		list.SwitchToOtherActiveSub()
	}

	newState := ComputeState(list, p.boundAndWaitingForOutgoingCall)
	oldState := p.State()
	p.logger.Debug("onCallListChange",
		slog.String("old_state", oldState.String()),
		slog.String("new_state", newState.String()))

	newState = p.startOrFinishUi(newState)

	// Новое состояние выставляется до рассылки
	p.setState(newState)

	p.stateListeners.Each(func(li StateListener) {
		li.OnStateChange(oldState, newState, list)
	})

	if p.isActivityStarted() {
		hasCall := list.ActiveOrBackgroundCall() != nil || list.OutgoingCall() != nil
		p.ui.DismissKeyguard(hasCall)
	}
}

// OnCallCardAnimationEnd анимация закончилась, отложенное обновление
// применяется.
func (p *Presenter) OnCallCardAnimationEnd() {
	if p.awaitingCallListUpdate {
		p.logger.Debug("Применяем отложенное обновление списка")
		p.OnCallListChange(p.callList)
	}
}

// OnIncomingCall новый входящий вызов из CallList
func (p *Presenter) OnIncomingCall(c *call.Call) {
	if p.callList == nil {
		return
	}
	newState := p.startOrFinishUi(StateIncoming)
	oldState := p.State()

	p.setState(newState)

	p.incomingListeners.Each(func(li IncomingCallListener) {
		li.OnIncomingCall(oldState, newState, c)
	})
}

// OnDisconnect вызов только что завершился
func (p *Presenter) OnDisconnect(c *call.Call) {
	if p.callList == nil {
		return
	}
	p.maybeShowErrorDialogOnDisconnect(c)

	p.OnCallListChange(p.callList)

	if p.isActivityStarted() {
		p.ui.DismissKeyguard(false)
	}
}

// OnUpgradeToVideo собеседник просит перейти к видео: экран поднимается,
// чтобы пользователь увидел запрос.
func (p *Presenter) OnUpgradeToVideo(c *call.Call) {
	if p.callList == nil {
		return
	}
	p.logger.Info("Запрос перехода к видео", slog.String("call_id", c.ID))
	p.BringToForeground(false)
}

// startOrFinishUi решает, нужно ли поднять, оставить или закрыть экран при
// переходе в newState. Возвращает состояние, которое нужно выставить: при
// отложенном переходе это старое состояние.
func (p *Presenter) startOrFinishUi(newState InCallState) InCallState {
	oldState := p.State()
	p.logger.Debug("startOrFinishUi",
		slog.String("old_state", oldState.String()),
		slog.String("new_state", newState.String()))

	// Если состояние не меняется, запуск или закрытие уже сделаны раньше.
	// Исключение: входящий на другой подписке пока экрана нет.
	anotherSubActive := newState == StateIncoming && p.callList != nil &&
		p.callList.IsAnyOtherSubActive(p.callList.ActiveSubscription())
	if newState == oldState && !(p.ui == nil && anotherSubActive) {
		return newState
	}

	// Входящий запускает полноэкранную последовательность через уведомление
	startStartupSequence := newState == StateIncoming

	// Диалог выбора аккаунта поверх экрана
	showAccountPicker := newState == StateWaitingForAccount

	// Исходящий показывается сразу, если основной экран еще не виден
	mainUiNotVisible := !p.IsShowingInCallUi() || !p.isCallCardVisible()
	showCallUi := newState == StateOutgoing && mainUiNotVisible

	// PENDING_OUTGOING -> INCALL означает ошибку исходящего: экран нужен
	// для диалога ошибки.
	showCallUi = showCallUi ||
		(oldState == StatePendingOutgoing && newState == StateInCall && !p.IsShowingInCallUi())

	// Исходящий без доступных аккаунтов завершается экраном
	if newState == StatePendingOutgoing && mainUiNotVisible && p.callList != nil &&
		isCallWithNoValidAccounts(p.callList.PendingOutgoingCall()) {
		showCallUi = true
	}

	// Автоответ: входящий стал активным, а экран так и не поднялся
	autoAnswered := oldState == StateIncoming && newState == StateInCall && p.ui == nil &&
		p.callList != nil && p.callList.ActiveCall() != nil

	// Экран есть, но не started только во время уничтожения. Второй
	// экземпляр не поднимаем: после уничтожения состояние будет пересчитано.
	if p.ui != nil && !p.isActivityStarted() {
		p.logger.Info("Отмена перехода: экран закрывается",
			slog.String("new_state", newState.String()),
			slog.String("old_state", oldState.String()))
		p.metrics.uiAction(actionDeferred)
		return oldState
	}

	if showAccountPicker {
		p.accountSelectionCancelled = false
	}

	switch {
	case showCallUi || showAccountPicker:
		p.logger.Info("Запуск экрана вызова")
		p.showInCall(false, !showAccountPicker)
	case startStartupSequence:
		p.logger.Info("Запуск полноэкранного экрана вызова")
		// Перед входящим убираем оставшиеся диалоги
		if p.isActivityStarted() {
			p.ui.DismissPendingDialogs()
		}
		if !p.startUi(newState) {
			// Экран перезапускается и сам вызовет пересчет
			return oldState
		}
	case autoAnswered:
		p.logger.Info("Входящий отвечен без экрана, поднимаем экран")
		p.showInCall(false, false)
	case newState == StateNoCalls:
		p.attemptFinishActivity()
		p.attemptCleanup()
	}

	return newState
}

// startUi возвращает false если экран вместо запуска перезапускается
func (p *Presenter) startUi(state InCallState) bool {
	if p.callList == nil {
		return true
	}
	isCallWaiting := p.callList.ActiveCall() != nil && p.callList.IncomingCall() != nil

	if !isCallWaiting {
		if p.statusBarNotifier != nil {
			p.statusBarNotifier.UpdateNotification(state, p.callList)
		}
		p.metrics.uiAction(actionFullScreen)
		return true
	}

	// Флаг включения экрана применяется только при создании экрана,
	// поэтому для ожидающего вызова при выключенном экране экран
	// пересоздается.
	if p.proximitySensor != nil && p.proximitySensor.IsScreenReallyOff() && p.isActivityStarted() {
		p.forceRestart()
		return false
	}

	p.showInCall(false, false)
	return true
}

// forceRestart закрывает экран, чтобы он был создан заново. Новый экран
// поднимается из UnsetActivity после пересчета состояния.
func (p *Presenter) forceRestart() {
	p.logger.Info("Перезапуск экрана чтобы включить дисплей для ожидающего вызова")
	p.metrics.uiAction(actionForceRestart)
	p.ui.Finish()
}

func (p *Presenter) showInCall(showDialpad, newOutgoingCall bool) {
	if p.host == nil {
		return
	}
	p.logger.Info("Показ экрана вызова",
		slog.Bool("show_dialpad", showDialpad),
		slog.Bool("new_outgoing_call", newOutgoingCall))
	p.metrics.uiAction(actionStartUI)
	p.host.StartInCallUI(showDialpad, newOutgoingCall)
}

func (p *Presenter) attemptFinishActivity() {
	doFinish := p.isActivityStarted()
	p.logger.Info("Скрытие экрана вызова", slog.Bool("finish", doFinish))
	if !doFinish {
		return
	}
	p.ui.SetExcludeFromRecents(true)
	p.ui.Finish()
	p.metrics.uiAction(actionFinish)
}

// attemptCleanup освобождает ресурсы сессии если одновременно: экрана нет,
// сервис отключен и состояние NO_CALLS. Обнуление ссылок делает повторный
// вызов no-op.
func (p *Presenter) attemptCleanup() {
	shouldCleanup := p.ui == nil && !p.serviceConnected && p.State() == StateNoCalls
	p.logger.Info("attemptCleanup", slog.Bool("should_cleanup", shouldCleanup))
	if !shouldCleanup || p.callList == nil {
		return
	}

	p.activityPreviouslyStarted = false
	p.accountSelectionCancelled = false
	p.awaitingCallListUpdate = false
	p.fullScreen = false

	// Устаревшие данные контактов не переживают сессию
	if p.contactInfoCache != nil {
		p.contactInfoCache.ClearCache()
	}
	p.contactInfoCache = nil

	if p.proximitySensor != nil {
		p.RemoveStateListener(p.proximitySensor)
		p.proximitySensor.TearDown()
	}
	p.proximitySensor = nil

	p.audioModeProvider = nil

	if p.statusBarNotifier != nil {
		p.RemoveStateListener(p.statusBarNotifier)
	}
	p.statusBarNotifier = nil

	p.callList.RemoveListener(p)
	p.callList = nil

	p.host = nil
	p.ui = nil

	p.stateListeners.Clear()
	p.incomingListeners.Clear()
	p.detailsListeners.Clear()
	p.canAddCallListeners.Clear()
	p.orientationListeners.Clear()
	p.eventListeners.Clear()
	p.uiListeners.Clear()
	p.pluginListeners.Clear()

	p.metrics.uiAction(actionCleanup)
	p.logger.Debug("Очистка завершена")
}

func (p *Presenter) maybeShowErrorDialogOnDisconnect(c *call.Call) {
	if c == nil || !p.isActivityStarted() || c.State != call.StateDisconnected {
		return
	}
	if c.AccountHandle == "" && !c.IsConference() {
		if p.accountSelectionCancelled {
			// Аккаунт не выбран по решению пользователя: это не ошибка
			p.logger.Debug("Выбор аккаунта отменен, диалог ошибки не показывается",
				slog.String("call_id", c.ID))
			return
		}
		setDisconnectCauseForMissingAccounts(c)
	}
	p.ui.MaybeShowErrorDialog(c.DisconnectCause)
}

// setDisconnectCauseForMissingAccounts вызов без аккаунта завершается
// с ошибкой, которую показывает диалог.
func setDisconnectCauseForMissingAccounts(c *call.Call) {
	if c.DisconnectCause.Code == call.DisconnectError && c.DisconnectCause.Description != "" {
		return
	}
	c.DisconnectCause = call.DisconnectCause{
		Code:        call.DisconnectError,
		Label:       "Ошибка вызова",
		Description: "Нет аккаунта для совершения вызова",
		Reason:      "no_account",
	}
}

func isCallWithNoValidAccounts(c *call.Call) bool {
	return c != nil && !c.IsEmergency && c.AccountHandle == ""
}

func (p *Presenter) isActivityStarted() bool {
	return p.ui != nil && p.ui.IsStarted()
}

func (p *Presenter) isCallCardVisible() bool {
	return p.ui != nil && p.ui.IsCallCardVisible()
}

// IsShowingInCallUi экран вызова поднят и виден
func (p *Presenter) IsShowingInCallUi() bool {
	return p.isActivityStarted() && p.ui.IsVisible()
}

// IsActivityPreviouslyStarted экран уже показывался в этой сессии
func (p *Presenter) IsActivityPreviouslyStarted() bool {
	return p.activityPreviouslyStarted
}

// HasActivity экран вызова создан
func (p *Presenter) HasActivity() bool {
	return p.ui != nil
}
