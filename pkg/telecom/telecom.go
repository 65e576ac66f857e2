// Package telecom описывает границу между ядром экрана вызова и телефонной
// платформой: исходящие команды (ответить, отклонить, удержать...) и входящие
// события о вызовах.
//
// Все команды работают по принципу fire-and-forget. Результат команды ядро
// узнает только из последующего события OnCallUpdated.
package telecom

import (
	"fmt"

	"github.com/arzzra/incallui/pkg/call"
)

// AudioRoute маршрут звука
type AudioRoute int

const (
	AudioRouteEarpiece AudioRoute = iota
	AudioRouteSpeaker
	AudioRouteWiredHeadset
	AudioRouteBluetooth
)

var audioRouteNames = map[AudioRoute]string{
	AudioRouteEarpiece:     "EARPIECE",
	AudioRouteSpeaker:      "SPEAKER",
	AudioRouteWiredHeadset: "WIRED_HEADSET",
	AudioRouteBluetooth:    "BLUETOOTH",
}

func (r AudioRoute) String() string {
	if name, ok := audioRouteNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(r))
}

// Commands адаптер телефонных команд
type Commands interface {
	AnswerCall(callID string, videoState call.VideoState)
	// RejectCall отклоняет входящий вызов. При withMessage собеседнику
	// отправляется text.
	RejectCall(callID string, withMessage bool, text string)
	DisconnectCall(callID string)
	HoldCall(callID string)
	UnholdCall(callID string)
	Mute(on bool)
	SetAudioRoute(route AudioRoute)
	Merge(callID string)
	Swap(callID string)
	AddCall()
	CanAddCall() bool

	RequestVideoUpgrade(callID string, videoState call.VideoState)
	AcceptVideoUpgrade(callID string, videoState call.VideoState)
	DeclineVideoUpgrade(callID string)
	SwitchCamera(callID string, front bool)
	PauseVideo(callID string, pause bool)
	SetDeviceOrientation(callID string, rotation int)

	// CanRecord умеет ли платформа записывать вызовы
	CanRecord() bool
	StartRecording(callID string)
	StopRecording(callID string)
	Transfer(callID string, target string)
}

// Listener получатель событий телефонной платформы.
// Платформа передает копии вызовов, владелец Call после передачи - получатель.
type Listener interface {
	OnCallAdded(c *call.Call)
	OnCallUpdated(c *call.Call)
	OnCallRemoved(c *call.Call)
	OnUpgradeToVideoRequest(c *call.Call)
	OnDetailsChanged(c *call.Call)
	OnCanAddCallChanged(canAddCall bool)
	OnServiceBind()
	OnServiceUnbind()
}
