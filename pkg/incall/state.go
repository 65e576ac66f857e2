package incall

// InCallState глобальный режим экрана вызова. Всегда выводится из
// содержимого CallList и никогда не задается независимо.
type InCallState string

const (
	// StateNoCalls вызовов нет, экран можно закрыть
	StateNoCalls InCallState = "NO_CALLS"
	// StateIncoming есть входящий вызов
	StateIncoming InCallState = "INCOMING"
	// StateOutgoing есть исходящий вызов в наборе
	StateOutgoing InCallState = "OUTGOING"
	// StateInCall есть активный, удержанный или только что завершенный вызов
	StateInCall InCallState = "INCALL"
	// StateWaitingForAccount исходящий вызов ждет выбора аккаунта
	StateWaitingForAccount InCallState = "WAITING_FOR_ACCOUNT"
	// StatePendingOutgoing исходящий вызов создан, но платформа еще не начала набор
	StatePendingOutgoing InCallState = "PENDING_OUTGOING"
)

// States все состояния в порядке объявления
func States() []InCallState {
	return []InCallState{
		StateNoCalls,
		StateIncoming,
		StateOutgoing,
		StateInCall,
		StateWaitingForAccount,
		StatePendingOutgoing,
	}
}

func (s InCallState) String() string {
	return string(s)
}

// IsIncoming true для INCOMING
func (s InCallState) IsIncoming() bool {
	return s == StateIncoming
}

// IsConnectingOrConnected true если есть вызов, который показывается на экране
func (s InCallState) IsConnectingOrConnected() bool {
	return s == StateIncoming || s == StateOutgoing || s == StateInCall
}
