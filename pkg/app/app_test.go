package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/config"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/presenter"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/arzzra/incallui/pkg/telecom/telecomtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const account = "sip:incallui@127.0.0.1:5060"

type staticAudio struct {
	muted bool
	route telecom.AudioRoute
}

func (a *staticAudio) Mute() bool                    { return a.muted }
func (a *staticAudio) AudioMode() telecom.AudioRoute { return a.route }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCore(t *testing.T, mutate func(*config.Config)) (*core, *looper.Manual, *telecomtest.Commands, *config.Config) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	m := looper.NewManual(time.Unix(0, 0))
	cmds := telecomtest.NewCommands()
	c := wire(m, cmds, &staticAudio{}, cfg, discardLogger(), nil)
	return c, m, cmds, cfg
}

func newCall(id string, state call.State) *call.Call {
	c := call.New(id, state)
	c.Number = "alice"
	c.SubscriptionID = 1
	c.AccountHandle = account
	c.Capabilities = call.CapabilityRespondViaText | call.CapabilityHold |
		call.CapabilitySupportHold | call.CapabilityMute
	return c
}

func withState(c *call.Call, state call.State) *call.Call {
	n := c.Clone()
	n.State = state
	return n
}

func disconnected(c *call.Call, code call.DisconnectCode) *call.Call {
	n := withState(c, call.StateDisconnected)
	n.DisconnectCause = call.NewDisconnectCause(code)
	return n
}

func TestWire_IncomingCallLifecycle(t *testing.T) {
	c, m, cmds, cfg := newTestCore(t, nil)

	c.binding.OnServiceBind()
	require.True(t, c.incall.IsServiceConnected())
	assert.Nil(t, c.host.Surface())

	in := newCall("c1", call.StateIncoming)
	c.binding.OnCallAdded(in)

	assert.Equal(t, incall.StateIncoming, c.incall.State())
	s := c.host.Surface()
	require.NotNil(t, s, "полноэкранное уведомление поднимает экран")
	assert.True(t, s.IsStarted())
	assert.Equal(t, 1, c.host.Launches())
	assert.True(t, c.incall.HasActivity())
	assert.Equal(t, "alice", c.notifier.caller.Number)

	answer := c.screens.answerUI
	assert.True(t, answer.Shown)
	assert.Equal(t, presenter.TargetSetAudioWithSms, answer.Targets)
	assert.False(t, c.screens.buttonsUI.Enabled)

	m.Post(func() { c.screens.answer.OnAnswer(call.VideoAudioOnly) })
	cmds.AssertCalled(t, "AnswerCall", "c1", call.VideoAudioOnly)

	c.binding.OnCallUpdated(withState(in, call.StateActive))
	assert.Equal(t, incall.StateInCall, c.incall.State())
	assert.False(t, answer.Shown)
	assert.True(t, c.screens.buttonsUI.Enabled)
	assert.Same(t, s, c.host.Surface())

	m.Post(func() { c.screens.buttons.HoldClicked(true) })
	cmds.AssertCalled(t, "HoldCall", "c1")

	c.binding.OnCallUpdated(disconnected(in, call.DisconnectRemote))
	assert.Equal(t, incall.StateInCall, c.incall.State(), "завершенный вызов еще показывается")
	require.NotNil(t, c.host.Surface())

	m.Advance(cfg.DisconnectDelays.Remote)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
	assert.Nil(t, c.host.Surface())
	assert.False(t, c.incall.HasActivity())
	assert.False(t, s.IsStarted())
	assert.True(t, c.incall.IsServiceConnected())
}

func TestWire_IncomingWithoutTextResponses(t *testing.T) {
	c, _, _, _ := newTestCore(t, func(cfg *config.Config) {
		cfg.TextResponses = nil
	})
	c.binding.OnServiceBind()

	c.binding.OnCallAdded(newCall("c1", call.StateIncoming))
	assert.Equal(t, presenter.TargetSetAudioWithoutSms, c.screens.answerUI.Targets)
}

func TestWire_DeclineIncoming(t *testing.T) {
	c, m, cmds, _ := newTestCore(t, nil)
	c.binding.OnServiceBind()

	in := newCall("c1", call.StateIncoming)
	c.binding.OnCallAdded(in)
	m.Post(c.incall.DeclineIncomingCall)
	cmds.AssertCalled(t, "RejectCall", "c1", false, "")

	c.binding.OnCallUpdated(disconnected(in, call.DisconnectRejected))
	m.Advance(0)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
	assert.Nil(t, c.host.Surface())
}

func TestWire_OutgoingCall(t *testing.T) {
	c, m, cmds, cfg := newTestCore(t, nil)
	c.binding.OnServiceBind()

	m.Post(c.prepareOutgoing)
	assert.Equal(t, incall.StateOutgoing, c.incall.State())
	s := c.host.Surface()
	require.NotNil(t, s)
	assert.True(t, s.IsStarted())

	out := newCall("o1", call.StateConnecting)
	c.binding.OnCallAdded(out)
	assert.Equal(t, incall.StatePendingOutgoing, c.incall.State())

	c.binding.OnCallUpdated(withState(out, call.StateDialing))
	assert.Equal(t, incall.StateOutgoing, c.incall.State())

	c.binding.OnCallUpdated(withState(out, call.StateActive))
	assert.Equal(t, incall.StateInCall, c.incall.State())
	assert.Equal(t, 1, c.host.Launches(), "экран поднимается один раз")

	var hungUp bool
	m.Post(func() { hungUp = c.incall.HangUpOngoingCall() })
	require.True(t, hungUp)
	cmds.AssertCalled(t, "DisconnectCall", "o1")

	c.binding.OnCallUpdated(disconnected(out, call.DisconnectLocal))
	m.Advance(cfg.DisconnectDelays.Local)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
	assert.Nil(t, c.host.Surface())
}

func TestWire_OutgoingBusyShowsError(t *testing.T) {
	c, m, _, cfg := newTestCore(t, nil)
	c.binding.OnServiceBind()
	m.Post(c.prepareOutgoing)

	out := newCall("o1", call.StateDialing)
	c.binding.OnCallAdded(out)

	busy := withState(out, call.StateDisconnected)
	busy.DisconnectCause = call.DisconnectCause{
		Code:        call.DisconnectBusy,
		Label:       "Занято",
		Description: "Абонент занят",
	}
	c.binding.OnCallUpdated(busy)

	s := c.host.Surface()
	require.NotNil(t, s)
	cause, ok := s.LastError()
	require.True(t, ok)
	assert.Equal(t, call.DisconnectBusy, cause.Code)

	m.Advance(cfg.DisconnectDelays.Other)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
}

func TestWire_CancelOutgoing(t *testing.T) {
	c, m, _, _ := newTestCore(t, nil)
	c.binding.OnServiceBind()

	m.Post(c.prepareOutgoing)
	require.NotNil(t, c.host.Surface())

	m.Post(c.cancelOutgoing)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
	assert.Nil(t, c.host.Surface())
}

func TestWire_AutoAnswer(t *testing.T) {
	c, _, cmds, _ := newTestCore(t, func(cfg *config.Config) {
		cfg.Features.AutoAnswer = true
	})
	c.binding.OnServiceBind()

	in := newCall("c1", call.StateIncoming)
	in.VideoState = call.VideoBidirectional
	c.binding.OnCallAdded(in)

	cmds.AssertCalled(t, "AnswerCall", "c1", call.VideoBidirectional)
}

func TestWire_AutoAnswerSkipsCallWaiting(t *testing.T) {
	c, _, cmds, _ := newTestCore(t, func(cfg *config.Config) {
		cfg.Features.AutoAnswer = true
	})
	c.binding.OnServiceBind()

	c.binding.OnCallAdded(newCall("c0", call.StateActive))
	c.binding.OnCallAdded(newCall("c1", call.StateCallWaiting))

	assert.Equal(t, incall.StateIncoming, c.incall.State())
	cmds.AssertNotCalled(t, "AnswerCall", mock.Anything, mock.Anything)
}

func TestWire_ServiceUnbindCleansUp(t *testing.T) {
	c, m, _, cfg := newTestCore(t, nil)
	c.binding.OnServiceBind()
	c.binding.OnCallAdded(newCall("c1", call.StateIncoming))
	require.NotNil(t, c.host.Surface())

	c.binding.OnServiceUnbind()
	assert.Equal(t, incall.StateInCall, c.incall.State(), "вызов принудительно завершен и еще показывается")
	assert.False(t, c.incall.IsServiceConnected())
	require.NotNil(t, c.incall.CallList(), "экран еще поднят, очистка отложена")

	m.Advance(cfg.DisconnectDelays.Other)
	assert.Equal(t, incall.StateNoCalls, c.incall.State())
	assert.Nil(t, c.host.Surface())
	assert.False(t, c.incall.IsServiceConnected())
	assert.Nil(t, c.incall.CallList(), "сессия очищена")

	// Следующая сессия подключается заново
	c.binding.OnServiceBind()
	assert.True(t, c.incall.IsServiceConnected())
	c.binding.OnCallAdded(newCall("c2", call.StateIncoming))
	assert.NotNil(t, c.host.Surface())
}

func TestWire_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.Default()
	m := looper.NewManual(time.Unix(0, 0))
	c := wire(m, telecomtest.NewCommands(), &staticAudio{}, cfg, discardLogger(), reg)

	c.binding.OnServiceBind()
	c.binding.OnCallAdded(newCall("c1", call.StateIncoming))

	n, err := testutil.GatherAndCount(reg,
		"incallui_call_list_calls_tracked",
		"incallui_presenter_state_transitions_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}

func TestHost_StartIsIdempotent(t *testing.T) {
	c, m, _, _ := newTestCore(t, nil)
	c.binding.OnServiceBind()
	m.Post(c.prepareOutgoing)

	m.Post(func() { c.host.StartInCallUI(true, false) })
	assert.Equal(t, 1, c.host.Launches())
	assert.False(t, c.screens.buttonsUI.Dialpad, "клавиатура показывается только при создании экрана")
}

func TestContacts_Cache(t *testing.T) {
	contacts := &Contacts{}
	var got []incall.ContactInfo
	cb := func(_ string, info incall.ContactInfo) { got = append(got, info) }

	contacts.FindInfo(newCall("c1", call.StateIncoming), true, cb)
	contacts.FindInfo(newCall("c2", call.StateIncoming), true, cb)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Number)
	assert.Len(t, contacts.cache, 1)

	contacts.ClearCache()
	assert.Nil(t, contacts.cache)
}

func TestApp_NewAndClose(t *testing.T) {
	cfg := config.Default()
	cfg.SIP.ListenAddr = "127.0.0.1:0"
	a, err := New(cfg, Options{Logger: discardLogger()})
	require.NoError(t, err)
	require.NotNil(t, a.Registry())
	require.NotNil(t, a.Presenter())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Run(context.Background()), ErrClosed)
}

func TestApp_NewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SIP.ListenNetwork = "sctp"
	_, err := New(cfg, Options{Logger: discardLogger()})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestMetricsServer(t *testing.T) {
	reg := newRegistry()
	srv := newMetricsServer("127.0.0.1:0", reg, discardLogger())
	require.NoError(t, srv.start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.stop(ctx)
	})

	res, err := http.Get("http://" + srv.addr + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get("http://" + srv.addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
