package incall

import (
	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/telecom"
)

// Внешние участники, которых вызывает Presenter. Реализуются слоем
// отображения или тестовыми двойниками.

// UISurface экран вызова (activity)
type UISurface interface {
	// IsStarted false если экран закрывается или уничтожен
	IsStarted() bool
	// IsVisible экран сейчас виден пользователю
	IsVisible() bool
	Finish()
	DismissKeyguard(dismiss bool)
	DismissPendingDialogs()
	MaybeShowErrorDialog(cause call.DisconnectCause)
	SetExcludeFromRecents(exclude bool)
	IsCallCardVisible() bool
	// IsAnimating карточка вызова проигрывает анимацию, обновления откладываются
	IsAnimating() bool
}

// Host окружение приложения, умеющее запускать экран вызова
type Host interface {
	StartInCallUI(showDialpad, newOutgoingCall bool)
	EnableScreenTimeout(enable bool)
}

// StatusBarNotifier уведомление в строке состояния, в том числе
// полноэкранное уведомление о входящем вызове.
type StatusBarNotifier interface {
	StateListener
	UpdateNotification(state InCallState, list *calllist.CallList)
}

// ProximitySensor датчик приближения
type ProximitySensor interface {
	StateListener
	IsScreenReallyOff() bool
	OnUiShowing(showing bool)
	TearDown()
}

// AudioModeProvider текущее состояние звука
type AudioModeProvider interface {
	Mute() bool
	AudioMode() telecom.AudioRoute
}

// ContactInfo данные контакта для отображения
type ContactInfo struct {
	Name   string
	Number string
	Label  string
}

// ContactInfoCache асинхронный поиск данных контакта по вызову.
// cb может быть вызван позже с другой горутины.
type ContactInfoCache interface {
	FindInfo(c *call.Call, isIncoming bool, cb func(callID string, info ContactInfo))
	ClearCache()
}

// Dependencies ресурсы сессии, передаваемые в SetUp
type Dependencies struct {
	CallList          *calllist.CallList
	Host              Host
	AudioModeProvider AudioModeProvider
	StatusBarNotifier StatusBarNotifier
	ProximitySensor   ProximitySensor
	ContactInfoCache  ContactInfoCache
}
