package presenter

import (
	"testing"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/stretchr/testify/assert"
)

type fakeModUI struct {
	enabled   []bool
	shown     map[ModButton]bool
	recording []bool
	manage    int
}

func (u *fakeModUI) SetEnabled(enabled bool)           { u.enabled = append(u.enabled, enabled) }
func (u *fakeModUI) ShowButton(b ModButton, show bool) { u.shown[b] = show }
func (u *fakeModUI) SetRecording(on bool)              { u.recording = append(u.recording, on) }
func (u *fakeModUI) DisplayManageConference(bool)      { u.manage++ }

func newModButtons(h *harness, settings Settings) (*ModButtonPresenter, *fakeModUI) {
	p := NewModButtonPresenter(h.incall, h.list, h.cmds, settings, nil)
	u := &fakeModUI{shown: map[ModButton]bool{}}
	p.OnUiReady(u)
	return p, u
}

const allModCaps = call.CapabilityMergeConference | call.CapabilityAddParticipant |
	call.CapabilityTransfer | call.CapabilityManageConference

func TestModButtonPresenter_Visibility(t *testing.T) {
	tests := []struct {
		name       string
		state      call.State
		caps       call.Capability
		conference bool
		emergency  bool
		recording  bool
		want       map[ModButton]bool
	}{
		{
			name: "active conference", state: call.StateActive, caps: allModCaps, conference: true, recording: true,
			want: map[ModButton]bool{
				ModButtonMerge: true, ModButtonAddParticipant: true, ModButtonRecord: true,
				ModButtonTransfer: true, ModButtonManageConference: true,
			},
		},
		{
			name: "held call", state: call.StateOnHold, caps: allModCaps, recording: true,
			want: map[ModButton]bool{
				ModButtonMerge: true, ModButtonAddParticipant: false, ModButtonRecord: false,
				ModButtonTransfer: true, ModButtonManageConference: false,
			},
		},
		{
			name: "emergency call is not recorded", state: call.StateActive, emergency: true, recording: true,
			want: map[ModButton]bool{
				ModButtonMerge: false, ModButtonAddParticipant: false, ModButtonRecord: false,
				ModButtonTransfer: false, ModButtonManageConference: false,
			},
		},
		{
			name: "recording disabled", state: call.StateActive,
			want: map[ModButton]bool{
				ModButtonMerge: false, ModButtonAddParticipant: false, ModButtonRecord: false,
				ModButtonTransfer: false, ModButtonManageConference: false,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := call.New("x", tt.state)
			c.AccountHandle = "acc"
			c.Capabilities = tt.caps
			c.IsEmergency = tt.emergency
			if tt.conference {
				c.ChildIDs = []string{"c1", "c2"}
			}
			h.list.OnUpdate(c)
			h.showUI()

			_, u := newModButtons(h, StaticSettings{Provisioned: true, Recording: tt.recording})

			assert.Equal(t, []bool{true}, u.enabled)
			assert.Equal(t, tt.want, u.shown)
		})
	}
}

func TestModButtonPresenter_RecordToggles(t *testing.T) {
	h := newHarness(t)
	h.activeCall("x", 0)
	h.showUI()
	p, u := newModButtons(h, StaticSettings{Recording: true})

	p.RecordClicked()
	h.cmds.AssertCalled(t, "StartRecording", "x")
	assert.True(t, p.IsRecording("x"))

	p.RecordClicked()
	h.cmds.AssertCalled(t, "StopRecording", "x")
	assert.False(t, p.IsRecording("x"))
	assert.Equal(t, []bool{false, true, false}, u.recording)
}

func TestModButtonPresenter_RecordNeedsPlatformSupport(t *testing.T) {
	h := newHarness(t)
	h.cmds.SetCanRecord(false)
	h.activeCall("x", 0)
	h.showUI()
	p, u := newModButtons(h, StaticSettings{Recording: true})

	assert.False(t, u.shown[ModButtonRecord])

	p.RecordClicked()
	h.cmds.AssertNotCalled(t, "StartRecording", "x")
	assert.False(t, p.IsRecording("x"))
	assert.NotContains(t, u.recording, true)
}

func TestModButtonPresenter_Actions(t *testing.T) {
	h := newHarness(t)
	h.activeCall("x", allModCaps)
	h.showUI()
	p, u := newModButtons(h, nil)

	p.TransferClicked("")
	h.cmds.AssertNotCalled(t, "Transfer", "x", "")

	p.TransferClicked("sip:bob@example.com")
	h.cmds.AssertCalled(t, "Transfer", "x", "sip:bob@example.com")

	p.MergeClicked()
	h.cmds.AssertCalled(t, "Merge", "x")

	p.AddParticipantClicked()
	h.cmds.AssertCalled(t, "AddCall")

	p.ManageConferenceClicked()
	assert.Equal(t, 1, u.manage)
}

func TestModButtonPresenter_NoCalls(t *testing.T) {
	h := newHarness(t)
	p, u := newModButtons(h, nil)

	assert.Equal(t, []bool{false}, u.enabled)
	assert.Empty(t, u.shown)

	p.RecordClicked()
	p.MergeClicked()
	h.cmds.AssertNotCalled(t, "StartRecording", "x")
	h.cmds.AssertNumberOfCalls(t, "Merge", 0)
}

func TestModButtonPresenter_DetailsUpdateButtons(t *testing.T) {
	h := newHarness(t)
	x := h.activeCall("x", 0)
	h.showUI()
	_, u := newModButtons(h, nil)
	assert.False(t, u.shown[ModButtonTransfer])

	withTransfer := x.Clone()
	withTransfer.Capabilities = call.CapabilityTransfer
	h.incall.OnDetailsChanged(withTransfer)
	assert.True(t, u.shown[ModButtonTransfer])
}

func TestModButton_String(t *testing.T) {
	assert.Equal(t, "MANAGE_CONFERENCE", ModButtonManageConference.String())
	assert.Equal(t, "ModButton(9)", ModButton(9).String())
}
