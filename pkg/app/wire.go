package app

import (
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/config"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/presenter"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/prometheus/client_golang/prometheus"
)

// screens экранные презентеры и их безголовые экраны
type screens struct {
	answer  *presenter.AnswerPresenter
	buttons *presenter.CallButtonPresenter
	video   *presenter.VideoCallPresenter
	mod     *presenter.ModButtonPresenter

	answerUI  *AnswerScreen
	buttonsUI *CallButtonScreen
	videoUI   *VideoScreen
	modUI     *ModButtonScreen
}

func (s *screens) ready() {
	s.answer.OnUiReady(s.answerUI)
	s.buttons.OnUiReady(s.buttonsUI)
	s.video.OnUiReady(s.videoUI)
	s.mod.OnUiReady(s.modUI)
}

func (s *screens) unready() {
	s.mod.OnUiUnready(s.modUI)
	s.video.OnUiUnready(s.videoUI)
	s.buttons.OnUiUnready(s.buttonsUI)
	s.answer.OnUiUnready(s.answerUI)
}

// core ядро экрана вызова без сетевой части
type core struct {
	sched    looper.Scheduler
	calls    *calllist.CallList
	incall   *incall.Presenter
	binding  *incall.ServiceBinding
	host     *Host
	notifier *Notifier
	screens  *screens
}

// wire собирает CallList, Presenter, экранные презентеры и безголовый
// слой отображения вокруг commands. Результат подключается к платформе
// через core.binding.
func wire(sched looper.Scheduler, commands telecom.Commands, audio incall.AudioModeProvider,
	cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *core {
	calls := calllist.New(sched, cfg.Policy(),
		calllist.WithLogger(logger),
		calllist.WithMetrics(calllist.NewMetrics(reg)),
		calllist.WithDisconnectDelays(cfg.Delays()))

	ic := incall.New(commands,
		incall.WithLogger(logger),
		incall.WithMetrics(incall.NewMetrics(reg)))

	settings := cfg.Settings()
	uiLogger := logger.With(slog.String("component", "headless_ui"))
	scr := &screens{
		answer:    presenter.NewAnswerPresenter(ic, calls, commands, logger),
		buttons:   presenter.NewCallButtonPresenter(ic, calls, commands, audio, settings, logger),
		video:     presenter.NewVideoCallPresenter(ic, calls, commands, sched, logger),
		mod:       presenter.NewModButtonPresenter(ic, calls, commands, settings, logger),
		answerUI:  &AnswerScreen{logger: uiLogger},
		buttonsUI: &CallButtonScreen{logger: uiLogger},
		videoUI:   &VideoScreen{logger: uiLogger},
		modUI:     &ModButtonScreen{logger: uiLogger},
	}

	host := &Host{sched: sched, incall: ic, screens: scr, logger: uiLogger}
	contacts := &Contacts{}
	notifier := &Notifier{host: host, contacts: contacts, logger: uiLogger}

	deps := incall.Dependencies{
		CallList:          calls,
		Host:              host,
		AudioModeProvider: audio,
		StatusBarNotifier: notifier,
		ProximitySensor:   &Proximity{logger: uiLogger},
		ContactInfoCache:  contacts,
	}

	c := &core{
		sched:    sched,
		calls:    calls,
		incall:   ic,
		binding:  incall.NewServiceBinding(sched, ic, deps, cfg.TextResponses, logger),
		host:     host,
		notifier: notifier,
		screens:  scr,
	}
	if cfg.Features.AutoAnswer {
		calls.AddListener(&autoAnswer{sched: sched, calls: calls, incall: ic, logger: logger})
	}
	return c
}

// prepareOutgoing экран поднимается до того, как исходящий появится в
// списке вызовов
func (c *core) prepareOutgoing() {
	c.incall.SetBoundAndWaitingForOutgoingCall(true)
	c.host.StartInCallUI(false, true)
}

// cancelOutgoing исходящий так и не начался
func (c *core) cancelOutgoing() {
	c.incall.SetBoundAndWaitingForOutgoingCall(false)
	if c.incall.IsServiceConnected() {
		c.incall.OnCallListChange(c.calls)
	}
}

// autoAnswer отвечает на входящий, если нет другого активного вызова.
// Ответ уходит отдельной задачей, после того как Presenter обработает
// сам входящий.
type autoAnswer struct {
	sched  looper.Scheduler
	calls  *calllist.CallList
	incall *incall.Presenter
	logger *slog.Logger
}

var _ calllist.IncomingCallListener = (*autoAnswer)(nil)

func (a *autoAnswer) OnIncomingCall(c *call.Call) {
	if a.calls.ActiveCall() != nil {
		return
	}
	a.sched.Post(func() {
		incoming := a.calls.IncomingCall()
		if incoming == nil || incoming.ID != c.ID {
			return
		}
		a.logger.Info("Автоответ", slog.String("call_id", c.ID))
		a.incall.AnswerIncomingCall(incoming.VideoState)
	})
}
