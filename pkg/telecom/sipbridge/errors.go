package sipbridge

import (
	"fmt"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/pkg/errors"
)

var (
	// ErrNoMedia в SDP нет ни одного активного потока
	ErrNoMedia = errors.New("нет медиа потоков")
	// ErrUnknownCall команда для вызова, которого нет в мосте
	ErrUnknownCall = errors.New("неизвестный вызов")
	// ErrClosed мост остановлен
	ErrClosed = errors.New("мост остановлен")
)

// StatusError финальный неуспешный ответ на запрос
type StatusError struct {
	Method string
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Reason)
}

// disconnectCauseFor причина завершения исходящего вызова по коду ответа
func disconnectCauseFor(code int, reason string) call.DisconnectCause {
	cause := call.DisconnectCause{Reason: fmt.Sprintf("%d %s", code, reason)}
	switch code {
	case 486, 600:
		cause.Code = call.DisconnectBusy
		cause.Label = "Занято"
		cause.Description = "Абонент занят"
	case 603:
		cause.Code = call.DisconnectRejected
	case 403:
		cause.Code = call.DisconnectRestricted
		cause.Description = "Вызов запрещен"
	case 487:
		cause.Code = call.DisconnectLocal
	default:
		cause.Code = call.DisconnectError
		cause.Description = fmt.Sprintf("Вызов не удался: %s", reason)
	}
	return cause
}
