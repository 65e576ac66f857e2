// Package telecomtest содержит тестовые двойники телефонного адаптера.
package telecomtest

import (
	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/stretchr/testify/mock"
)

// Commands mock для telecom.Commands
type Commands struct {
	mock.Mock
}

var _ telecom.Commands = (*Commands)(nil)

// количество аргументов методов без результата
var arity = map[string]int{
	"AnswerCall":           2,
	"RejectCall":           3,
	"DisconnectCall":       1,
	"HoldCall":             1,
	"UnholdCall":           1,
	"Mute":                 1,
	"SetAudioRoute":        1,
	"Merge":                1,
	"Swap":                 1,
	"AddCall":              0,
	"RequestVideoUpgrade":  2,
	"AcceptVideoUpgrade":   2,
	"DeclineVideoUpgrade":  1,
	"SwitchCamera":         2,
	"PauseVideo":           2,
	"SetDeviceOrientation": 2,
	"StartRecording":       1,
	"StopRecording":        1,
	"Transfer":             2,
}

// NewCommands создает mock, который принимает любые вызовы и записывает их.
// Проверка через AssertCalled, AssertNotCalled, AssertNumberOfCalls.
// CanAddCall и CanRecord возвращают true.
func NewCommands() *Commands {
	m := &Commands{}
	for method, n := range arity {
		args := make([]interface{}, n)
		for i := range args {
			args[i] = mock.Anything
		}
		m.On(method, args...).Return().Maybe()
	}
	m.On("CanAddCall").Return(true).Maybe()
	m.On("CanRecord").Return(true).Maybe()
	return m
}

// NewStrictCommands создает mock без ожиданий: каждый вызов нужно задать через On
func NewStrictCommands() *Commands {
	return &Commands{}
}

func (m *Commands) AnswerCall(callID string, videoState call.VideoState) {
	m.MethodCalled("AnswerCall", callID, videoState)
}

func (m *Commands) RejectCall(callID string, withMessage bool, text string) {
	m.MethodCalled("RejectCall", callID, withMessage, text)
}

func (m *Commands) DisconnectCall(callID string) { m.MethodCalled("DisconnectCall", callID) }

func (m *Commands) HoldCall(callID string) { m.MethodCalled("HoldCall", callID) }

func (m *Commands) UnholdCall(callID string) { m.MethodCalled("UnholdCall", callID) }

func (m *Commands) Mute(on bool) { m.MethodCalled("Mute", on) }

func (m *Commands) SetAudioRoute(route telecom.AudioRoute) { m.MethodCalled("SetAudioRoute", route) }

func (m *Commands) Merge(callID string) { m.MethodCalled("Merge", callID) }

func (m *Commands) Swap(callID string) { m.MethodCalled("Swap", callID) }

func (m *Commands) AddCall() { m.MethodCalled("AddCall") }

func (m *Commands) CanAddCall() bool {
	return m.MethodCalled("CanAddCall").Bool(0)
}

// SetCanRecord меняет ответ CanRecord у mock из NewCommands
func (m *Commands) SetCanRecord(ok bool) {
	for _, c := range m.ExpectedCalls {
		if c.Method == "CanRecord" {
			c.ReturnArguments = mock.Arguments{ok}
		}
	}
}

func (m *Commands) CanRecord() bool {
	return m.MethodCalled("CanRecord").Bool(0)
}

func (m *Commands) RequestVideoUpgrade(callID string, videoState call.VideoState) {
	m.MethodCalled("RequestVideoUpgrade", callID, videoState)
}

func (m *Commands) AcceptVideoUpgrade(callID string, videoState call.VideoState) {
	m.MethodCalled("AcceptVideoUpgrade", callID, videoState)
}

func (m *Commands) DeclineVideoUpgrade(callID string) { m.MethodCalled("DeclineVideoUpgrade", callID) }

func (m *Commands) SwitchCamera(callID string, front bool) {
	m.MethodCalled("SwitchCamera", callID, front)
}

func (m *Commands) PauseVideo(callID string, pause bool) { m.MethodCalled("PauseVideo", callID, pause) }

func (m *Commands) SetDeviceOrientation(callID string, rotation int) {
	m.MethodCalled("SetDeviceOrientation", callID, rotation)
}

func (m *Commands) StartRecording(callID string) { m.MethodCalled("StartRecording", callID) }

func (m *Commands) StopRecording(callID string) { m.MethodCalled("StopRecording", callID) }

func (m *Commands) Transfer(callID string, target string) {
	m.MethodCalled("Transfer", callID, target)
}
