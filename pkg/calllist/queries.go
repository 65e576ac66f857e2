package calllist

import (
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
)

// Запросы к списку. Порядок перебора - порядок первого появления вызова,
// поэтому "второй удержанный вызов" стабилен между запросами.

// CallByID возвращает вызов по ID или nil
func (l *CallList) CallByID(id string) *call.Call {
	return l.calls[id]
}

// Calls возвращает вызовы в порядке появления
func (l *CallList) Calls() []*call.Call {
	out := make([]*call.Call, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.calls[id])
	}
	return out
}

// Len количество вызовов в списке
func (l *CallList) Len() int {
	return len(l.calls)
}

// TextResponses возвращает заготовленные SMS ответы для вызова или nil
func (l *CallList) TextResponses(id string) []string {
	return l.textResponses[id]
}

// CallWithState возвращает вызов в состоянии state с порядковым номером pos
// среди вызовов в этом состоянии (0 - первый).
func (l *CallList) CallWithState(state call.State, pos int) *call.Call {
	return l.callWithState(state, pos, func(*call.Call) bool { return true })
}

// CallWithStateForSub как CallWithState, но только среди вызовов подписки subID
func (l *CallList) CallWithStateForSub(state call.State, pos int, subID int64) *call.Call {
	return l.callWithState(state, pos, func(c *call.Call) bool { return c.SubscriptionID == subID })
}

func (l *CallList) callWithState(state call.State, pos int, match func(*call.Call) bool) *call.Call {
	position := 0
	for _, id := range l.order {
		c := l.calls[id]
		if c.State != state || !match(c) {
			continue
		}
		if position >= pos {
			return c
		}
		position++
	}
	return nil
}

// FirstCallWithState первый вызов в состоянии state
func (l *CallList) FirstCallWithState(state call.State) *call.Call {
	return l.CallWithState(state, 0)
}

// IncomingCall входящий вызов: INCOMING, иначе CALL_WAITING
func (l *CallList) IncomingCall() *call.Call {
	if c := l.FirstCallWithState(call.StateIncoming); c != nil {
		return c
	}
	return l.FirstCallWithState(call.StateCallWaiting)
}

// OutgoingCall исходящий вызов: DIALING, иначе REDIALING
func (l *CallList) OutgoingCall() *call.Call {
	if c := l.FirstCallWithState(call.StateDialing); c != nil {
		return c
	}
	return l.FirstCallWithState(call.StateRedialing)
}

// PendingOutgoingCall исходящий вызов, который еще не начал набор
func (l *CallList) PendingOutgoingCall() *call.Call {
	return l.FirstCallWithState(call.StateConnecting)
}

// WaitingForAccountCall вызов, ожидающий выбора аккаунта
func (l *CallList) WaitingForAccountCall() *call.Call {
	return l.FirstCallWithState(call.StatePreDialWait)
}

// ActiveCall активный вызов
func (l *CallList) ActiveCall() *call.Call {
	return l.FirstCallWithState(call.StateActive)
}

// BackgroundCall первый удержанный вызов
func (l *CallList) BackgroundCall() *call.Call {
	return l.FirstCallWithState(call.StateOnHold)
}

// SecondBackgroundCall второй удержанный вызов
func (l *CallList) SecondBackgroundCall() *call.Call {
	return l.CallWithState(call.StateOnHold, 1)
}

// DisconnectedCall первый завершенный вызов, ожидающий удаления
func (l *CallList) DisconnectedCall() *call.Call {
	return l.FirstCallWithState(call.StateDisconnected)
}

// DisconnectingCall первый завершающийся вызов
func (l *CallList) DisconnectingCall() *call.Call {
	return l.FirstCallWithState(call.StateDisconnecting)
}

// ActiveOrBackgroundCall активный, иначе удержанный вызов
func (l *CallList) ActiveOrBackgroundCall() *call.Call {
	if c := l.ActiveCall(); c != nil {
		return c
	}
	return l.BackgroundCall()
}

// FirstCall первый вызов по приоритету: входящий, исходящий, активный,
// удержанный, завершенный.
func (l *CallList) FirstCall() *call.Call {
	if c := l.IncomingCall(); c != nil {
		return c
	}
	if c := l.OutgoingCall(); c != nil {
		return c
	}
	if c := l.ActiveOrBackgroundCall(); c != nil {
		return c
	}
	return l.DisconnectedCall()
}

// HasLiveCall есть ли вызов, который еще не завершается и не завершен
func (l *CallList) HasLiveCall() bool {
	c := l.FirstCall()
	if c == nil {
		return false
	}
	return c.State != call.StateDisconnecting && c.State != call.StateDisconnected
}

// VideoUpgradeRequestCall вызов с входящим запросом перехода к видео
func (l *CallList) VideoUpgradeRequestCall() *call.Call {
	for _, id := range l.order {
		c := l.calls[id]
		if c.SessionModificationState == call.SessionModificationReceivedUpgradeToVideoRequest {
			return c
		}
	}
	return nil
}

// ActiveSubscription текущая видимая подписка
func (l *CallList) ActiveSubscription() int64 {
	return l.activeSub
}

// SetActiveSubscription меняет видимую подписку и уведомляет слушателей
// только при фактической смене.
func (l *CallList) SetActiveSubscription(subID int64) {
	if subID == l.activeSub {
		return
	}
	l.logger.Info("Смена активной подписки",
		slog.Int64("from", l.activeSub),
		slog.Int64("to", subID))
	l.activeSub = subID

	l.metrics.notified("active_sub")
	l.activeSubs.Each(func(li ActiveSubListener) {
		li.OnActiveSubChanged(subID)
	})
}

// HasAnyLiveCall есть ли на подписке вызов не в мертвом и не в завершенном состоянии
func (l *CallList) HasAnyLiveCall(subID int64) bool {
	for _, id := range l.order {
		c := l.calls[id]
		if c.SubscriptionID != subID {
			continue
		}
		if !c.State.IsDead() && c.State != call.StateDisconnected {
			return true
		}
	}
	return false
}

// IsAnyOtherSubActive есть ли живые вызовы на подписках кроме current
func (l *CallList) IsAnyOtherSubActive(current int64) bool {
	if !l.policy.MultiActive() {
		return false
	}
	for _, sub := range l.policy.Subscriptions() {
		if sub != current && l.HasAnyLiveCall(sub) {
			return true
		}
	}
	return false
}

// SwitchToOtherActiveSub делает активной другую подписку с живым вызовом.
// Возвращает true если подписка сменилась.
func (l *CallList) SwitchToOtherActiveSub() bool {
	if !l.policy.MultiActive() {
		return false
	}
	for _, sub := range l.policy.Subscriptions() {
		if sub != l.activeSub && l.HasAnyLiveCall(sub) {
			l.SetActiveSubscription(sub)
			return true
		}
	}
	return false
}
