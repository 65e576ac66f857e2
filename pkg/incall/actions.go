package incall

import (
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
)

// Действия пользователя и события экрана. Команды уходят в телефонный
// адаптер, результат приходит позже через CallList.

// AnswerIncomingCall отвечает на входящий вызов
func (p *Presenter) AnswerIncomingCall(videoState call.VideoState) {
	if p.callList == nil {
		p.logger.Error("CallList не установлен, ответ невозможен")
		return
	}
	c := p.callList.IncomingCall()
	if c == nil {
		return
	}
	p.commands.AnswerCall(c.ID, videoState)
}

// DeclineIncomingCall отклоняет входящий вызов без сообщения
func (p *Presenter) DeclineIncomingCall() {
	if p.callList == nil {
		p.logger.Error("CallList не установлен, отклонение невозможно")
		return
	}
	c := p.callList.IncomingCall()
	if c == nil {
		return
	}
	p.commands.RejectCall(c.ID, false, "")
}

// HangUpOngoingCall завершает исходящий, иначе активный или удержанный
// вызов. Возвращает false если завершать нечего.
func (p *Presenter) HangUpOngoingCall() bool {
	if p.callList == nil {
		p.logger.Error("CallList не установлен, завершение невозможно")
		return false
	}
	c := p.callList.OutgoingCall()
	if c == nil {
		c = p.callList.ActiveOrBackgroundCall()
	}
	if c == nil {
		return false
	}
	p.commands.DisconnectCall(c.ID)
	next := c.Clone()
	next.State = call.StateDisconnecting
	p.callList.OnUpdate(next)
	return true
}

// CancelAccountSelection пользователь закрыл выбор аккаунта: ожидающий
// вызов завершается.
func (p *Presenter) CancelAccountSelection() {
	p.accountSelectionCancelled = true
	if p.callList == nil {
		return
	}
	if c := p.callList.WaitingForAccountCall(); c != nil {
		p.commands.DisconnectCall(c.ID)
	}
}

// IsAccountSelectionCancelled выбор аккаунта был отменен
func (p *Presenter) IsAccountSelectionCancelled() bool {
	return p.accountSelectionCancelled
}

// AcceptUpgradeRequest принимает запрос собеседника на переход к видео
func (p *Presenter) AcceptUpgradeRequest(videoState call.VideoState) {
	if p.callList == nil {
		return
	}
	c := p.callList.VideoUpgradeRequestCall()
	if c == nil {
		return
	}
	p.commands.AcceptVideoUpgrade(c.ID, videoState)
	p.callList.SetSessionModificationState(c.ID, call.SessionModificationNoRequest)
}

// DeclineUpgradeRequest отклоняет запрос перехода к видео
func (p *Presenter) DeclineUpgradeRequest() {
	if p.callList == nil {
		return
	}
	c := p.callList.VideoUpgradeRequestCall()
	if c == nil {
		return
	}
	p.commands.DeclineVideoUpgrade(c.ID)
	p.callList.SetSessionModificationState(c.ID, call.SessionModificationNoRequest)
}

// HandleCallKey аппаратная кнопка вызова: ответить на входящий, иначе
// объединить или переключить конференцию, иначе снять с удержания.
// Кнопка всегда считается обработанной.
func (p *Presenter) HandleCallKey() bool {
	if p.callList == nil {
		return true
	}

	if incoming := p.callList.IncomingCall(); incoming != nil {
		p.commands.AnswerCall(incoming.ID, call.VideoAudioOnly)
		return true
	}

	if active := p.callList.ActiveCall(); active != nil {
		canMerge := active.Can(call.CapabilityMergeConference)
		canSwap := active.Can(call.CapabilitySwapConference)
		p.logger.Debug("Кнопка вызова: активный вызов",
			slog.Bool("can_merge", canMerge),
			slog.Bool("can_swap", canSwap))
		switch {
		case canMerge:
			p.commands.Merge(active.ID)
			return true
		case canSwap:
			p.commands.Swap(active.ID)
			return true
		}
	}

	if held := p.callList.BackgroundCall(); held != nil {
		if held.State == call.StateOnHold && held.Can(call.CapabilityHold) {
			p.commands.UnholdCall(held.ID)
			return true
		}
	}

	return true
}

// BringToForeground поднимает экран если есть вызовы и экран не виден
func (p *Presenter) BringToForeground(showDialpad bool) {
	if !p.IsShowingInCallUi() && p.State() != StateNoCalls {
		p.showInCall(showDialpad, false)
	}
}

// OnDismissDialog диалог на экране закрыт
func (p *Presenter) OnDismissDialog() {
	p.logger.Info("Диалог закрыт")
	if p.State() == StateNoCalls {
		p.attemptFinishActivity()
		p.attemptCleanup()
	}
}

// SetFullScreen переключает полноэкранный режим
func (p *Presenter) SetFullScreen(fullScreen bool) {
	if p.fullScreen == fullScreen {
		return
	}
	p.fullScreen = fullScreen
	p.eventListeners.Each(func(li EventListener) {
		li.OnFullscreenModeChanged(fullScreen)
	})
}

// IsFullScreen включен ли полноэкранный режим
func (p *Presenter) IsFullScreen() bool {
	return p.fullScreen
}

// OnSecondaryInfoVisibilityChanged видимость дополнительной информации
func (p *Presenter) OnSecondaryInfoVisibilityChanged(visible bool) {
	p.eventListeners.Each(func(li EventListener) {
		li.OnSecondaryInfoVisibilityChanged(visible)
	})
}

// OnDeviceOrientationChange сообщает поворот видеовызовам и слушателям
func (p *Presenter) OnDeviceOrientationChange(rotation int) {
	if p.callList != nil {
		for _, c := range p.callList.Calls() {
			if c.IsVideoCall() && c.State.IsConnectingOrConnected() {
				p.commands.SetDeviceOrientation(c.ID, rotation)
			}
		}
	}
	p.orientationListeners.Each(func(li OrientationListener) {
		li.OnDeviceOrientationChanged(rotation)
	})
}

// OnDetailsChanged изменились детали вызова
func (p *Presenter) OnDetailsChanged(c *call.Call) {
	if c == nil {
		return
	}
	p.detailsListeners.Each(func(li DetailsListener) {
		li.OnDetailsChanged(c)
	})
}

// OnCanAddCallChanged изменилась возможность добавить вызов
func (p *Presenter) OnCanAddCallChanged(canAddCall bool) {
	p.canAddCallListeners.Each(func(li CanAddCallListener) {
		li.OnCanAddCallChanged(canAddCall)
	})
}

// NotifyPluginUpdated внешнее дополнение обновило данные вызова
func (p *Presenter) NotifyPluginUpdated(callID string) {
	p.pluginListeners.Each(func(li PluginUpdateListener) {
		li.OnPluginUpdated(callID)
	})
}

// OnUiShowing экран показан или скрыт
func (p *Presenter) OnUiShowing(showing bool) {
	// Уход с экрана может снова показать уведомление
	if p.statusBarNotifier != nil {
		p.statusBarNotifier.UpdateNotification(p.State(), p.callList)
	}
	if p.proximitySensor != nil {
		p.proximitySensor.OnUiShowing(showing)
	}
	if showing {
		p.activityPreviouslyStarted = true
	}
	p.uiListeners.Each(func(li UIListener) {
		li.OnUiShowing(showing)
	})
}

// EnableScreenTimeout разрешает или запрещает гашение экрана
func (p *Presenter) EnableScreenTimeout(enable bool) {
	if p.host == nil {
		return
	}
	p.host.EnableScreenTimeout(enable)
}

// AddStateListener подписка на смену InCallState
func (p *Presenter) AddStateListener(li StateListener) { p.stateListeners.Add(li) }

// RemoveStateListener отписка от смены InCallState
func (p *Presenter) RemoveStateListener(li StateListener) { p.stateListeners.Remove(li) }

func (p *Presenter) AddIncomingCallListener(li IncomingCallListener) {
	p.incomingListeners.Add(li)
}

func (p *Presenter) RemoveIncomingCallListener(li IncomingCallListener) {
	p.incomingListeners.Remove(li)
}

func (p *Presenter) AddDetailsListener(li DetailsListener) { p.detailsListeners.Add(li) }

func (p *Presenter) RemoveDetailsListener(li DetailsListener) { p.detailsListeners.Remove(li) }

func (p *Presenter) AddCanAddCallListener(li CanAddCallListener) { p.canAddCallListeners.Add(li) }

func (p *Presenter) RemoveCanAddCallListener(li CanAddCallListener) {
	p.canAddCallListeners.Remove(li)
}

func (p *Presenter) AddOrientationListener(li OrientationListener) {
	p.orientationListeners.Add(li)
}

func (p *Presenter) RemoveOrientationListener(li OrientationListener) {
	p.orientationListeners.Remove(li)
}

func (p *Presenter) AddEventListener(li EventListener) { p.eventListeners.Add(li) }

func (p *Presenter) RemoveEventListener(li EventListener) { p.eventListeners.Remove(li) }

func (p *Presenter) AddUIListener(li UIListener) { p.uiListeners.Add(li) }

func (p *Presenter) RemoveUIListener(li UIListener) { p.uiListeners.Remove(li) }

func (p *Presenter) AddPluginUpdateListener(li PluginUpdateListener) { p.pluginListeners.Add(li) }

func (p *Presenter) RemovePluginUpdateListener(li PluginUpdateListener) {
	p.pluginListeners.Remove(li)
}
