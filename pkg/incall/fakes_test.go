package incall

import (
	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/telecom"
)

type fakeUI struct {
	started     bool
	visible     bool
	cardVisible bool
	animating   bool

	finished           int
	excludeFromRecents []bool
	keyguard           []bool
	dismissedDialogs   int
	errorDialogs       []call.DisconnectCause
}

func newFakeUI() *fakeUI {
	return &fakeUI{started: true}
}

func (f *fakeUI) IsStarted() bool         { return f.started }
func (f *fakeUI) IsVisible() bool         { return f.visible }
func (f *fakeUI) IsCallCardVisible() bool { return f.cardVisible }
func (f *fakeUI) IsAnimating() bool       { return f.animating }
func (f *fakeUI) DismissPendingDialogs()  { f.dismissedDialogs++ }

func (f *fakeUI) Finish() {
	f.finished++
	f.started = false
}

func (f *fakeUI) DismissKeyguard(dismiss bool) { f.keyguard = append(f.keyguard, dismiss) }

func (f *fakeUI) MaybeShowErrorDialog(cause call.DisconnectCause) {
	f.errorDialogs = append(f.errorDialogs, cause)
}

func (f *fakeUI) SetExcludeFromRecents(exclude bool) {
	f.excludeFromRecents = append(f.excludeFromRecents, exclude)
}

type startRequest struct {
	showDialpad     bool
	newOutgoingCall bool
}

type fakeHost struct {
	starts        []startRequest
	screenTimeout []bool
}

func (h *fakeHost) StartInCallUI(showDialpad, newOutgoingCall bool) {
	h.starts = append(h.starts, startRequest{showDialpad, newOutgoingCall})
}

func (h *fakeHost) EnableScreenTimeout(enable bool) {
	h.screenTimeout = append(h.screenTimeout, enable)
}

type fakeNotifier struct {
	notifications []InCallState
	transitions   [][2]InCallState
}

func (n *fakeNotifier) OnStateChange(oldState, newState InCallState, _ *calllist.CallList) {
	n.transitions = append(n.transitions, [2]InCallState{oldState, newState})
}

func (n *fakeNotifier) UpdateNotification(state InCallState, _ *calllist.CallList) {
	n.notifications = append(n.notifications, state)
}

type fakeProximity struct {
	screenOff bool
	teardowns int
	showing   []bool
}

func (p *fakeProximity) OnStateChange(InCallState, InCallState, *calllist.CallList) {}
func (p *fakeProximity) IsScreenReallyOff() bool                                    { return p.screenOff }
func (p *fakeProximity) OnUiShowing(showing bool)                                   { p.showing = append(p.showing, showing) }
func (p *fakeProximity) TearDown()                                                  { p.teardowns++ }

type fakeAudio struct{}

func (fakeAudio) Mute() bool                    { return false }
func (fakeAudio) AudioMode() telecom.AudioRoute { return telecom.AudioRouteEarpiece }

type fakeContacts struct {
	clears int
}

func (c *fakeContacts) FindInfo(cl *call.Call, _ bool, cb func(string, ContactInfo)) {
	cb(cl.ID, ContactInfo{Number: cl.Number})
}

func (c *fakeContacts) ClearCache() { c.clears++ }

// recorder слушатель всех каналов Presenter
type recorder struct {
	states       [][2]InCallState
	incoming     []string
	details      []string
	canAddCall   []bool
	orientations []int
	fullscreen   []bool
	secondary    []bool
	uiShowing    []bool
	plugins      []string
}

func (r *recorder) OnStateChange(oldState, newState InCallState, _ *calllist.CallList) {
	r.states = append(r.states, [2]InCallState{oldState, newState})
}

func (r *recorder) OnIncomingCall(_, _ InCallState, c *call.Call) {
	r.incoming = append(r.incoming, c.ID)
}

func (r *recorder) OnDetailsChanged(c *call.Call)           { r.details = append(r.details, c.ID) }
func (r *recorder) OnCanAddCallChanged(can bool)            { r.canAddCall = append(r.canAddCall, can) }
func (r *recorder) OnDeviceOrientationChanged(rotation int) { r.orientations = append(r.orientations, rotation) }
func (r *recorder) OnFullscreenModeChanged(v bool)          { r.fullscreen = append(r.fullscreen, v) }
func (r *recorder) OnSecondaryInfoVisibilityChanged(v bool) { r.secondary = append(r.secondary, v) }
func (r *recorder) OnUiShowing(showing bool)                { r.uiShowing = append(r.uiShowing, showing) }
func (r *recorder) OnPluginUpdated(callID string)           { r.plugins = append(r.plugins, callID) }
