package call

import "fmt"

// State состояние телефонного вызова.
// В каждый момент времени вызов находится ровно в одном состоянии,
// переходы выполняет внешний телефонный слой.
type State int

const (
	// StateIdle - вызов завершен и должен быть удален из списка
	StateIdle State = iota
	// StateInvalid - некорректный вызов
	StateInvalid
	// StatePreDialWait - ожидание выбора аккаунта пользователем перед набором
	StatePreDialWait
	// StateConnecting - исходящий вызов создан, но еще не набирается
	StateConnecting
	// StateDialing - исходящий вызов набирается
	StateDialing
	// StateRedialing - повторный набор
	StateRedialing
	// StateIncoming - входящий вызов
	StateIncoming
	// StateCallWaiting - входящий вызов при наличии активного
	StateCallWaiting
	// StateActive - разговор
	StateActive
	// StateOnHold - вызов удержан
	StateOnHold
	// StateDisconnecting - вызов в процессе завершения
	StateDisconnecting
	// StateDisconnected - вызов завершен, ожидает удаления
	StateDisconnected
)

var stateNames = map[State]string{
	StateIdle:          "IDLE",
	StateInvalid:       "INVALID",
	StatePreDialWait:   "PRE_DIAL_WAIT",
	StateConnecting:    "CONNECTING",
	StateDialing:       "DIALING",
	StateRedialing:     "REDIALING",
	StateIncoming:      "INCOMING",
	StateCallWaiting:   "CALL_WAITING",
	StateActive:        "ACTIVE",
	StateOnHold:        "ONHOLD",
	StateDisconnecting: "DISCONNECTING",
	StateDisconnected:  "DISCONNECTED",
}

// String возвращает строковое представление состояния
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// IsDead возвращает true для состояний, которые означают немедленное удаление вызова
func (s State) IsDead() bool {
	return s == StateIdle || s == StateInvalid
}

// IsConnectingOrConnected возвращает true если вызов устанавливается или установлен
func (s State) IsConnectingOrConnected() bool {
	switch s {
	case StateIncoming, StateCallWaiting, StateConnecting, StateDialing,
		StateRedialing, StateActive, StateOnHold:
		return true
	}
	return false
}

// IsDialing возвращает true для состояний набора номера
func (s State) IsDialing() bool {
	return s == StateDialing || s == StateRedialing
}

// IsIncoming возвращает true для входящих состояний
func (s State) IsIncoming() bool {
	return s == StateIncoming || s == StateCallWaiting
}

// SessionModificationState состояние согласования видео (upgrade/downgrade)
// внутри установленного вызова. Не зависит от State.
type SessionModificationState int

const (
	SessionModificationNoRequest SessionModificationState = iota
	SessionModificationWaitingForResponse
	SessionModificationReceivedUpgradeToVideoRequest
	SessionModificationUpgradeToVideoRequestTimedOut
	SessionModificationRequestFailed
)

// String возвращает строковое представление состояния согласования
func (s SessionModificationState) String() string {
	switch s {
	case SessionModificationNoRequest:
		return "NO_REQUEST"
	case SessionModificationWaitingForResponse:
		return "WAITING_FOR_RESPONSE"
	case SessionModificationReceivedUpgradeToVideoRequest:
		return "RECEIVED_UPGRADE_TO_VIDEO_REQUEST"
	case SessionModificationUpgradeToVideoRequestTimedOut:
		return "UPGRADE_TO_VIDEO_REQUEST_TIMED_OUT"
	case SessionModificationRequestFailed:
		return "REQUEST_FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}
