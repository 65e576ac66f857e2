package app

import (
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/presenter"
	"github.com/arzzra/incallui/pkg/telecom"
)

// Безголовая реализация слоя отображения. Экран и панели ничего не
// рисуют: намерения пишутся в лог, последнее состояние хранится в полях.
// Все методы вызываются на потоке looper'а.

// Surface экран вызова
type Surface struct {
	host   *Host
	logger *slog.Logger

	started         bool
	ready           bool
	finishing       bool
	excludedRecents bool
	keyguard        bool
	lastError       *call.DisconnectCause
}

var _ incall.UISurface = (*Surface)(nil)

func (s *Surface) IsStarted() bool         { return s.started && !s.finishing }
func (s *Surface) IsVisible() bool         { return s.IsStarted() }
func (s *Surface) IsCallCardVisible() bool { return s.IsStarted() }
func (s *Surface) IsAnimating() bool       { return false }

// Finish закрывает экран. Экран сразу перестает быть started, а
// отвязка от презентеров выполняется следующей задачей.
func (s *Surface) Finish() {
	if s.finishing {
		return
	}
	s.finishing = true
	s.logger.Info("Экран вызова закрывается")
	s.host.sched.Post(func() { s.host.destroy(s) })
}

func (s *Surface) DismissKeyguard(dismiss bool) {
	if s.keyguard != dismiss {
		s.logger.Debug("Блокировка экрана", slog.Bool("dismiss", dismiss))
	}
	s.keyguard = dismiss
}

func (s *Surface) DismissPendingDialogs() {
	s.logger.Debug("Диалоги закрыты")
	s.lastError = nil
}

func (s *Surface) MaybeShowErrorDialog(cause call.DisconnectCause) {
	if cause.Description == "" {
		return
	}
	s.logger.Warn("Диалог ошибки вызова",
		slog.String("code", cause.Code.String()),
		slog.String("description", cause.Description))
	s.lastError = &cause
}

func (s *Surface) SetExcludeFromRecents(exclude bool) {
	s.excludedRecents = exclude
}

// LastError причина из последнего показанного диалога ошибки
func (s *Surface) LastError() (call.DisconnectCause, bool) {
	if s.lastError == nil {
		return call.DisconnectCause{}, false
	}
	return *s.lastError, true
}

// Host запускает и закрывает безголовый экран и подключает к нему
// экранные презентеры.
type Host struct {
	sched   looper.Scheduler
	incall  *incall.Presenter
	screens *screens
	logger  *slog.Logger

	surface       *Surface
	launches      int
	dialpad       bool
	screenTimeout bool
}

var _ incall.Host = (*Host)(nil)

// StartInCallUI поднимает экран. Уже поднятый экран только выводится
// на передний план.
func (h *Host) StartInCallUI(showDialpad, newOutgoingCall bool) {
	h.dialpad = showDialpad
	if h.surface != nil {
		h.logger.Debug("Экран вызова уже показан",
			slog.Bool("show_dialpad", showDialpad))
		return
	}
	s := &Surface{host: h, logger: h.logger}
	h.surface = s
	h.launches++
	h.logger.Info("Запуск экрана вызова",
		slog.Bool("show_dialpad", showDialpad),
		slog.Bool("new_outgoing_call", newOutgoingCall))
	h.sched.Post(func() { h.create(s) })
}

func (h *Host) EnableScreenTimeout(enable bool) {
	if h.screenTimeout != enable {
		h.logger.Debug("Гашение экрана", slog.Bool("enabled", enable))
	}
	h.screenTimeout = enable
}

// Surface текущий экран, nil если экрана нет
func (h *Host) Surface() *Surface {
	return h.surface
}

// Launches сколько раз экран поднимался
func (h *Host) Launches() int {
	return h.launches
}

func (h *Host) create(s *Surface) {
	if h.surface != s || s.finishing {
		return
	}
	s.started = true
	h.incall.SetActivity(s)
	if !s.IsStarted() {
		// SetActivity сразу закрыл экран: вызовов уже нет
		return
	}
	h.screens.ready()
	s.ready = true
	h.incall.OnUiShowing(true)
	if h.dialpad {
		h.screens.buttonsUI.DisplayDialpad(true, false)
	}
}

func (h *Host) destroy(s *Surface) {
	if h.surface == s {
		h.surface = nil
	}
	if s.ready {
		h.screens.unready()
		h.incall.OnUiShowing(false)
	}
	s.started, s.ready = false, false
	h.incall.UnsetActivity(s)
	h.logger.Info("Экран вызова закрыт")
}

// Notifier уведомление в строке состояния. Входящий вызов показывается
// полноэкранно, то есть сразу поднимает экран.
type Notifier struct {
	host     *Host
	contacts *Contacts
	logger   *slog.Logger

	state   incall.InCallState
	caller  incall.ContactInfo
	visible bool
}

var _ incall.StatusBarNotifier = (*Notifier)(nil)

func (n *Notifier) OnStateChange(_, newState incall.InCallState, list *calllist.CallList) {
	n.UpdateNotification(newState, list)
}

func (n *Notifier) UpdateNotification(state incall.InCallState, list *calllist.CallList) {
	n.state = state
	if list == nil || state == incall.StateNoCalls {
		if n.visible {
			n.logger.Debug("Уведомление снято")
		}
		n.visible = false
		return
	}

	c := list.IncomingCall()
	if c == nil {
		c = list.OutgoingCall()
	}
	if c == nil {
		c = list.ActiveOrBackgroundCall()
	}
	if c == nil {
		c = list.FirstCall()
	}
	if c != nil {
		n.contacts.FindInfo(c, c.State.IsIncoming(), func(_ string, info incall.ContactInfo) {
			n.caller = info
		})
	}
	n.visible = true
	n.logger.Debug("Уведомление",
		slog.String("state", state.String()),
		slog.String("caller", n.caller.Number))

	if state == incall.StateIncoming {
		n.host.StartInCallUI(false, false)
	}
}

// Proximity датчик приближения без железа: экран всегда включен
type Proximity struct {
	logger  *slog.Logger
	showing bool
}

var _ incall.ProximitySensor = (*Proximity)(nil)

func (p *Proximity) OnStateChange(_, _ incall.InCallState, _ *calllist.CallList) {}
func (p *Proximity) IsScreenReallyOff() bool                                     { return false }
func (p *Proximity) OnUiShowing(showing bool)                                    { p.showing = showing }
func (p *Proximity) TearDown()                                                   { p.logger.Debug("Датчик приближения отключен") }

// Contacts кэш контактов по номеру вызова
type Contacts struct {
	cache map[string]incall.ContactInfo
}

var _ incall.ContactInfoCache = (*Contacts)(nil)

func (c *Contacts) FindInfo(cl *call.Call, _ bool, cb func(callID string, info incall.ContactInfo)) {
	if c.cache == nil {
		c.cache = make(map[string]incall.ContactInfo)
	}
	info, ok := c.cache[cl.Number]
	if !ok {
		info = incall.ContactInfo{Name: cl.Number, Number: cl.Number}
		c.cache[cl.Number] = info
	}
	cb(cl.ID, info)
}

func (c *Contacts) ClearCache() {
	c.cache = nil
}

// AnswerScreen экран ответа
type AnswerScreen struct {
	logger *slog.Logger

	Shown      bool
	Targets    presenter.TargetSet
	VideoState call.VideoState
	Responses  []string
}

var _ presenter.AnswerUI = (*AnswerScreen)(nil)

func (a *AnswerScreen) OnShowAnswerUi(shown bool) {
	a.Shown = shown
	a.logger.Info("Экран ответа", slog.Bool("shown", shown))
}

func (a *AnswerScreen) ShowTargets(set presenter.TargetSet, videoState call.VideoState) {
	a.Targets = set
	a.VideoState = videoState
	a.logger.Info("Варианты ответа",
		slog.String("targets", set.String()),
		slog.String("video_state", videoState.String()))
}

func (a *AnswerScreen) ShowMessageDialog() {
	a.logger.Info("Выбор ответа сообщением", slog.Int("responses", len(a.Responses)))
}

func (a *AnswerScreen) ConfigureMessageDialog(textResponses []string) {
	a.Responses = append([]string(nil), textResponses...)
}

// CallButtonScreen панель кнопок
type CallButtonScreen struct {
	logger *slog.Logger

	Enabled bool
	Visible map[presenter.Button]bool
	Hold    bool
	Muted   bool
	Route   telecom.AudioRoute
	Dialpad bool
}

var _ presenter.CallButtonUI = (*CallButtonScreen)(nil)

func (b *CallButtonScreen) SetEnabled(enabled bool) { b.Enabled = enabled }

func (b *CallButtonScreen) ShowButton(btn presenter.Button, show bool) {
	if b.Visible == nil {
		b.Visible = make(map[presenter.Button]bool)
	}
	b.Visible[btn] = show
}

func (b *CallButtonScreen) EnableButton(btn presenter.Button, enable bool) {
	b.logger.Debug("Кнопка", slog.String("button", btn.String()), slog.Bool("enabled", enable))
}

func (b *CallButtonScreen) SetHold(on bool)                   { b.Hold = on }
func (b *CallButtonScreen) SetMute(on bool)                   { b.Muted = on }
func (b *CallButtonScreen) SetAudio(route telecom.AudioRoute) { b.Route = route }
func (b *CallButtonScreen) SetCameraSwitched(backFacing bool) {}
func (b *CallButtonScreen) SetVideoPaused(paused bool)        {}
func (b *CallButtonScreen) DisplayDialpad(show, animate bool) { b.Dialpad = show }

func (b *CallButtonScreen) UpdateButtonStates() {
	shown := make([]string, 0, len(b.Visible))
	for _, btn := range presenter.Buttons() {
		if b.Visible[btn] {
			shown = append(shown, btn.String())
		}
	}
	b.logger.Debug("Кнопки вызова", slog.Any("buttons", shown))
}

// VideoScreen видео поверхности
type VideoScreen struct {
	logger *slog.Logger

	Preview      bool
	Incoming     bool
	Camera       presenter.CameraDirection
	Modification call.SessionModificationState
	FullScreen   bool
}

var _ presenter.VideoCallUI = (*VideoScreen)(nil)

func (v *VideoScreen) ShowVideoViews(showPreview, showIncoming bool) {
	v.Preview, v.Incoming = showPreview, showIncoming
	v.logger.Info("Видео", slog.Bool("preview", showPreview), slog.Bool("incoming", showIncoming))
}

func (v *VideoScreen) HideVideoUi() {
	v.Preview, v.Incoming = false, false
	v.logger.Info("Видео скрыто")
}

func (v *VideoScreen) SetPreviewCamera(dir presenter.CameraDirection) { v.Camera = dir }

func (v *VideoScreen) DisplaySessionModificationState(state call.SessionModificationState) {
	v.Modification = state
	v.logger.Info("Изменение сессии", slog.String("state", state.String()))
}

func (v *VideoScreen) SetFullScreen(fullScreen bool) { v.FullScreen = fullScreen }
func (v *VideoScreen) SetDeviceOrientation(int)      {}
func (v *VideoScreen) CleanupSurfaces()              {}

// ModButtonScreen дополнительные кнопки
type ModButtonScreen struct {
	logger *slog.Logger

	Enabled   bool
	Visible   map[presenter.ModButton]bool
	Recording bool
}

var _ presenter.ModButtonUI = (*ModButtonScreen)(nil)

func (m *ModButtonScreen) SetEnabled(enabled bool) { m.Enabled = enabled }

func (m *ModButtonScreen) ShowButton(btn presenter.ModButton, show bool) {
	if m.Visible == nil {
		m.Visible = make(map[presenter.ModButton]bool)
	}
	m.Visible[btn] = show
}

func (m *ModButtonScreen) SetRecording(on bool) {
	m.Recording = on
	m.logger.Info("Запись вызова", slog.Bool("on", on))
}

func (m *ModButtonScreen) DisplayManageConference(show bool) {
	m.logger.Debug("Управление конференцией", slog.Bool("show", show))
}
