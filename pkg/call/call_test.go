package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Predicates(t *testing.T) {
	tests := []struct {
		state      State
		dead       bool
		connecting bool
		incoming   bool
	}{
		{StateIdle, true, false, false},
		{StateInvalid, true, false, false},
		{StatePreDialWait, false, false, false},
		{StateConnecting, false, true, false},
		{StateDialing, false, true, false},
		{StateIncoming, false, true, true},
		{StateCallWaiting, false, true, true},
		{StateActive, false, true, false},
		{StateOnHold, false, true, false},
		{StateDisconnected, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.dead, tt.state.IsDead())
			assert.Equal(t, tt.connecting, tt.state.IsConnectingOrConnected())
			assert.Equal(t, tt.incoming, tt.state.IsIncoming())
		})
	}

	assert.Equal(t, "UNKNOWN(99)", State(99).String())
}

func TestCapability_Has(t *testing.T) {
	c := CapabilityHold | CapabilitySupportHold | CapabilityMute

	assert.True(t, c.Has(CapabilityHold))
	assert.True(t, c.Has(CapabilityHold|CapabilitySupportHold))
	assert.False(t, c.Has(CapabilityHold|CapabilitySwapConference))
	assert.Equal(t, "HOLD|SUPPORT_HOLD|MUTE", c.String())
	assert.Equal(t, "NONE", Capability(0).String())
}

func TestVideoState(t *testing.T) {
	assert.True(t, VideoAudioOnly.IsAudioOnly())
	assert.True(t, VideoBidirectional.IsBidirectional())
	assert.True(t, VideoTx.IsTransmissionEnabled())
	assert.False(t, VideoTx.IsReceptionEnabled())
	assert.True(t, (VideoRx | VideoPaused).IsPaused())
	assert.Equal(t, "RX|PAUSED", (VideoRx | VideoPaused).String())
}

func TestCall_Clone(t *testing.T) {
	c := New("a", StateActive)
	c.ChildIDs = []string{"b", "c"}

	cp := c.Clone()
	cp.State = StateOnHold
	cp.ChildIDs[0] = "x"

	assert.Equal(t, StateActive, c.State)
	assert.Equal(t, "b", c.ChildIDs[0])
	assert.True(t, cp.IsConference())
	assert.Nil(t, (*Call)(nil).Clone())
}

func TestDisconnectCause_IsError(t *testing.T) {
	assert.False(t, NewDisconnectCause(DisconnectBusy).IsError())
	assert.True(t, DisconnectCause{Code: DisconnectBusy, Description: "Абонент занят"}.IsError())
	assert.False(t, DisconnectCause{Code: DisconnectRemote, Description: "x"}.IsError())
	assert.Equal(t, "REMOTE(bye)", DisconnectCause{Code: DisconnectRemote, Reason: "bye"}.String())
}
