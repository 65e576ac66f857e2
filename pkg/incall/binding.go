package incall

import (
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/telecom"
)

// ServiceBinding принимает события телефонной платформы с любых горутин и
// переносит их в UI поток как изменения CallList и вызовы Presenter.
type ServiceBinding struct {
	sched         looper.Scheduler
	presenter     *Presenter
	deps          Dependencies
	textResponses []string
	logger        *slog.Logger
}

var _ telecom.Listener = (*ServiceBinding)(nil)

// NewServiceBinding создает привязку. textResponses прикладываются к
// входящим вызовам, поддерживающим ответ сообщением.
func NewServiceBinding(sched looper.Scheduler, presenter *Presenter, deps Dependencies, textResponses []string, logger *slog.Logger) *ServiceBinding {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceBinding{
		sched:         sched,
		presenter:     presenter,
		deps:          deps,
		textResponses: append([]string(nil), textResponses...),
		logger:        logger.With(slog.String("component", "service_binding")),
	}
}

func (b *ServiceBinding) callList() *calllist.CallList {
	return b.deps.CallList
}

// OnServiceBind сервис привязан: начинается сессия
func (b *ServiceBinding) OnServiceBind() {
	b.sched.Post(func() {
		b.presenter.OnServiceBind()
		if err := b.presenter.SetUp(b.deps); err != nil {
			b.logger.Error("Не удалось подключить сессию", slog.String("error", err.Error()))
		}
	})
}

// OnServiceUnbind сервис отвязан: вызовы завершаются, сессия закрывается
func (b *ServiceBinding) OnServiceUnbind() {
	b.sched.Post(func() {
		b.presenter.OnServiceUnbind()
		b.presenter.TearDown()
	})
}

// OnCallAdded новый вызов. Входящие идут отдельным каналом.
func (b *ServiceBinding) OnCallAdded(c *call.Call) {
	if c == nil {
		return
	}
	b.sched.Post(func() {
		b.logger.Debug("Вызов добавлен", slog.String("call", c.String()))
		// Вызов появился: ждать исходящий больше не нужно
		b.presenter.SetBoundAndWaitingForOutgoingCall(false)
		if c.State.IsIncoming() {
			var texts []string
			if c.Can(call.CapabilityRespondViaText) && len(b.textResponses) > 0 {
				texts = b.textResponses
			}
			b.callList().OnIncoming(c, texts)
			return
		}
		b.callList().OnUpdate(c)
	})
}

// OnCallUpdated изменилось состояние или свойства вызова
func (b *ServiceBinding) OnCallUpdated(c *call.Call) {
	if c == nil {
		return
	}
	b.sched.Post(func() {
		switch c.State {
		case call.StateDisconnected:
			b.callList().OnDisconnect(c)
		default:
			b.callList().OnUpdate(c)
		}
	})
}

// OnCallRemoved платформа забыла вызов
func (b *ServiceBinding) OnCallRemoved(c *call.Call) {
	if c == nil {
		return
	}
	b.sched.Post(func() {
		b.callList().OnCallRemoved(c)
	})
}

// OnUpgradeToVideoRequest собеседник просит перейти к видео
func (b *ServiceBinding) OnUpgradeToVideoRequest(c *call.Call) {
	if c == nil {
		return
	}
	b.sched.Post(func() {
		c.SessionModificationState = call.SessionModificationReceivedUpgradeToVideoRequest
		b.callList().OnUpgradeToVideo(c)
	})
}

// OnDetailsChanged изменились детали вызова
func (b *ServiceBinding) OnDetailsChanged(c *call.Call) {
	if c == nil {
		return
	}
	b.sched.Post(func() {
		b.callList().OnUpdate(c)
		b.presenter.OnDetailsChanged(c)
	})
}

// OnCanAddCallChanged изменилась возможность добавить вызов
func (b *ServiceBinding) OnCanAddCallChanged(canAddCall bool) {
	b.sched.Post(func() {
		b.presenter.OnCanAddCallChanged(canAddCall)
	})
}
