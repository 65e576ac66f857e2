package call

import "strings"

// Capability битовая маска возможностей вызова
type Capability uint32

const (
	CapabilityHold Capability = 1 << iota
	CapabilitySupportHold
	CapabilityMergeConference
	CapabilitySwapConference
	CapabilityRespondViaText
	CapabilityMute
	CapabilityManageConference
	CapabilitySupportsVTLocalBidirectional
	CapabilitySupportsVTRemoteBidirectional
	CapabilitySupportsDowngradeToVoice
	CapabilityAddParticipant
	CapabilityTransfer
)

// CapabilitySupportsVT обе стороны поддерживают двустороннее видео
const CapabilitySupportsVT = CapabilitySupportsVTLocalBidirectional | CapabilitySupportsVTRemoteBidirectional

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapabilityHold, "HOLD"},
	{CapabilitySupportHold, "SUPPORT_HOLD"},
	{CapabilityMergeConference, "MERGE_CONFERENCE"},
	{CapabilitySwapConference, "SWAP_CONFERENCE"},
	{CapabilityRespondViaText, "RESPOND_VIA_TEXT"},
	{CapabilityMute, "MUTE"},
	{CapabilityManageConference, "MANAGE_CONFERENCE"},
	{CapabilitySupportsVTLocalBidirectional, "VT_LOCAL_BIDIRECTIONAL"},
	{CapabilitySupportsVTRemoteBidirectional, "VT_REMOTE_BIDIRECTIONAL"},
	{CapabilitySupportsDowngradeToVoice, "DOWNGRADE_TO_VOICE"},
	{CapabilityAddParticipant, "ADD_PARTICIPANT"},
	{CapabilityTransfer, "TRANSFER"},
}

// Has возвращает true если установлены все биты other
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// String возвращает список возможностей через "|"
func (c Capability) String() string {
	if c == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range capabilityNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// VideoState битовая маска состояния видео
type VideoState uint8

const (
	VideoAudioOnly VideoState = 0
	VideoTx        VideoState = 1 << 0
	VideoRx        VideoState = 1 << 1
	VideoPaused    VideoState = 1 << 2

	VideoBidirectional = VideoTx | VideoRx
)

// IsVideo есть передача или прием видео
func (v VideoState) IsVideo() bool { return v&VideoBidirectional != 0 }

// IsBidirectional видео в обе стороны
func (v VideoState) IsBidirectional() bool { return v&VideoBidirectional == VideoBidirectional }

// IsTransmissionEnabled включена передача видео
func (v VideoState) IsTransmissionEnabled() bool { return v&VideoTx != 0 }

// IsReceptionEnabled включен прием видео
func (v VideoState) IsReceptionEnabled() bool { return v&VideoRx != 0 }

// IsPaused видео на паузе
func (v VideoState) IsPaused() bool { return v&VideoPaused != 0 }

// IsAudioOnly только звук
func (v VideoState) IsAudioOnly() bool { return !v.IsVideo() }

func (v VideoState) String() string {
	var s string
	switch {
	case v.IsBidirectional():
		s = "BIDIRECTIONAL"
	case v.IsTransmissionEnabled():
		s = "TX"
	case v.IsReceptionEnabled():
		s = "RX"
	default:
		s = "AUDIO_ONLY"
	}
	if v.IsPaused() {
		s += "|PAUSED"
	}
	return s
}
