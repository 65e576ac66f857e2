package calllist

import "github.com/arzzra/incallui/pkg/call"

// Каналы уведомлений CallList. Каждый канал независим: слушатель получает
// только те события, интерфейс которых реализует.

// IncomingCallListener получает только новые входящие вызовы
type IncomingCallListener interface {
	OnIncomingCall(c *call.Call)
}

// ChangeListener получает уведомление о любом изменении списка
type ChangeListener interface {
	OnCallListChange(l *CallList)
}

// DisconnectListener получает уведомление о только что завершенном вызове
type DisconnectListener interface {
	OnDisconnect(c *call.Call)
}

// UpgradeToVideoListener получает запрос собеседника на переход к видео
type UpgradeToVideoListener interface {
	OnUpgradeToVideo(c *call.Call)
}

// ActiveSubListener получает смену активной подписки (DSDA)
type ActiveSubListener interface {
	OnActiveSubChanged(subID int64)
}

// CallUpdateListener получает изменения конкретного вызова по его ID
type CallUpdateListener interface {
	OnCallChanged(c *call.Call)
}
