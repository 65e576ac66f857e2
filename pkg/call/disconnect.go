package call

import "fmt"

// DisconnectCode классифицирует причину завершения вызова
type DisconnectCode int

const (
	DisconnectUnknown DisconnectCode = iota
	DisconnectError
	DisconnectLocal
	DisconnectRemote
	DisconnectCanceled
	DisconnectMissed
	DisconnectRejected
	DisconnectBusy
	DisconnectRestricted
	DisconnectOther
	DisconnectAnsweredElsewhere
)

// String возвращает строковое представление кода
func (c DisconnectCode) String() string {
	switch c {
	case DisconnectUnknown:
		return "UNKNOWN"
	case DisconnectError:
		return "ERROR"
	case DisconnectLocal:
		return "LOCAL"
	case DisconnectRemote:
		return "REMOTE"
	case DisconnectCanceled:
		return "CANCELED"
	case DisconnectMissed:
		return "MISSED"
	case DisconnectRejected:
		return "REJECTED"
	case DisconnectBusy:
		return "BUSY"
	case DisconnectRestricted:
		return "RESTRICTED"
	case DisconnectOther:
		return "OTHER"
	case DisconnectAnsweredElsewhere:
		return "ANSWERED_ELSEWHERE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// DisconnectCause причина завершения вызова.
// Имеет смысл только когда вызов находится в StateDisconnected.
type DisconnectCause struct {
	Code DisconnectCode
	// Label короткая строка для карточки вызова ("Занято")
	Label string
	// Description текст диалога ошибки, пустой если диалог не нужен
	Description string
	// Reason техническая причина для логов
	Reason string
}

// NewDisconnectCause создает причину только с кодом
func NewDisconnectCause(code DisconnectCode) DisconnectCause {
	return DisconnectCause{Code: code}
}

// IsError возвращает true если пользователю нужно показать диалог ошибки
func (d DisconnectCause) IsError() bool {
	switch d.Code {
	case DisconnectError, DisconnectBusy, DisconnectRestricted:
		return d.Description != ""
	}
	return false
}

// String возвращает строковое представление причины
func (d DisconnectCause) String() string {
	if d.Reason != "" {
		return fmt.Sprintf("%s(%s)", d.Code, d.Reason)
	}
	return d.Code.String()
}
