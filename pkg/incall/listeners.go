package incall

import (
	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
)

// Каналы рассылки Presenter. Каждый канал регистрируется отдельно.

// StateListener смена InCallState
type StateListener interface {
	OnStateChange(oldState, newState InCallState, list *calllist.CallList)
}

// IncomingCallListener новый входящий вызов
type IncomingCallListener interface {
	OnIncomingCall(oldState, newState InCallState, c *call.Call)
}

// DetailsListener изменились детали вызова (возможности, свойства)
type DetailsListener interface {
	OnDetailsChanged(c *call.Call)
}

// CanAddCallListener изменилась возможность добавить вызов
type CanAddCallListener interface {
	OnCanAddCallChanged(canAddCall bool)
}

// OrientationListener поворот устройства
type OrientationListener interface {
	OnDeviceOrientationChanged(rotation int)
}

// EventListener события экрана: полноэкранный режим и видимость
// дополнительной информации.
type EventListener interface {
	OnFullscreenModeChanged(isFullscreen bool)
	OnSecondaryInfoVisibilityChanged(isVisible bool)
}

// UIListener экран показан или скрыт
type UIListener interface {
	OnUiShowing(showing bool)
}

// PluginUpdateListener внешнее дополнение обновило данные вызова
type PluginUpdateListener interface {
	OnPluginUpdated(callID string)
}
