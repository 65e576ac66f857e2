package presenter

import (
	"testing"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/subscription"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/arzzra/incallui/pkg/telecom/telecomtest"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	started  bool
	visible  bool
	finished int
}

func (s *fakeSurface) IsStarted() bool                           { return s.started }
func (s *fakeSurface) IsVisible() bool                           { return s.visible }
func (s *fakeSurface) DismissKeyguard(bool)                      {}
func (s *fakeSurface) DismissPendingDialogs()                    {}
func (s *fakeSurface) MaybeShowErrorDialog(call.DisconnectCause) {}
func (s *fakeSurface) SetExcludeFromRecents(bool)                {}
func (s *fakeSurface) IsCallCardVisible() bool                   { return true }
func (s *fakeSurface) IsAnimating() bool                         { return false }

func (s *fakeSurface) Finish() {
	s.finished++
	s.started = false
}

type fakeHost struct {
	starts        int
	screenTimeout []bool
}

func (h *fakeHost) StartInCallUI(bool, bool)        { h.starts++ }
func (h *fakeHost) EnableScreenTimeout(enable bool) { h.screenTimeout = append(h.screenTimeout, enable) }

type fakeAudio struct {
	muted bool
	route telecom.AudioRoute
}

func (a *fakeAudio) Mute() bool                    { return a.muted }
func (a *fakeAudio) AudioMode() telecom.AudioRoute { return a.route }

// harness incall.Presenter с подключенной сессией поверх ручного планировщика
type harness struct {
	loop    *looper.Manual
	list    *calllist.CallList
	cmds    *telecomtest.Commands
	incall  *incall.Presenter
	host    *fakeHost
	audio   *fakeAudio
	surface *fakeSurface
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:    looper.NewManual(time.Unix(0, 0)),
		cmds:    telecomtest.NewCommands(),
		host:    &fakeHost{},
		audio:   &fakeAudio{route: telecom.AudioRouteEarpiece},
		surface: &fakeSurface{started: true, visible: true},
	}
	h.list = calllist.New(h.loop, subscription.NewSingleSim(1))
	h.incall = incall.New(h.cmds)
	require.NoError(t, h.incall.SetUp(incall.Dependencies{
		CallList:          h.list,
		Host:              h.host,
		AudioModeProvider: h.audio,
	}))
	return h
}

// showUI поднимает экран вызова. Вызывать когда уже есть вызовы.
func (h *harness) showUI() {
	h.incall.SetActivity(h.surface)
}

func (h *harness) activeCall(id string, caps call.Capability) *call.Call {
	c := call.New(id, call.StateActive)
	c.AccountHandle = "acc"
	c.Capabilities = caps
	h.list.OnUpdate(c)
	return c
}

func (h *harness) update(c *call.Call, mutate func(*call.Call)) *call.Call {
	next := c.Clone()
	mutate(next)
	h.list.OnUpdate(next)
	return next
}
