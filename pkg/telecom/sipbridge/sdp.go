package sipbridge

import (
	"strconv"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"
)

// Направления медиа потока (RFC 3264)
const (
	directionSendRecv = "sendrecv"
	directionSendOnly = "sendonly"
	directionRecvOnly = "recvonly"
	directionInactive = "inactive"
)

// Форматы, которые объявляет локальная сторона
const (
	audioPayloadPCMU  = 0
	audioPayloadPCMA  = 8
	audioPayloadDTMF  = 101
	videoPayloadH264  = 96
	videoClockRateHz  = 90000
	defaultAudioPort  = 40000
	defaultVideoPort  = 40002
	defaultSDPSession = "incallui"
)

// MediaOffer описание медиа, разобранное из SDP собеседника.
// Направления пересчитаны в локальную перспективу.
type MediaOffer struct {
	HasAudio bool
	// Hold собеседник поставил вызов на удержание
	Hold bool
	// HasVideo собеседник объявил видео поток с ненулевым портом
	HasVideo   bool
	VideoState call.VideoState
}

// Capabilities возможности вызова, которые дает такое описание медиа
func (o MediaOffer) Capabilities() call.Capability {
	caps := call.CapabilityHold | call.CapabilitySupportHold | call.CapabilityMute | call.CapabilityTransfer
	if o.HasVideo {
		caps |= call.CapabilitySupportsVT | call.CapabilitySupportsDowngradeToVoice
	}
	return caps
}

// ParseSDP разбирает SDP собеседника. Пустое тело означает предложение
// только со звуком (INVITE без SDP).
func ParseSDP(body []byte) (MediaOffer, error) {
	if len(body) == 0 {
		return MediaOffer{HasAudio: true}, nil
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal(body); err != nil {
		return MediaOffer{}, errors.Wrap(err, "разбор SDP")
	}

	offer := MediaOffer{}
	sessionDir := directionOf(sd.Attributes, directionSendRecv)
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Port.Value == 0 {
			continue
		}
		dir := directionOf(md.Attributes, sessionDir)
		switch md.MediaName.Media {
		case "audio":
			offer.HasAudio = true
			offer.Hold = dir == directionSendOnly || dir == directionInactive
		case "video":
			offer.HasVideo = true
			offer.VideoState = videoStateFromRemote(dir)
		}
	}

	if !offer.HasAudio && !offer.HasVideo {
		return MediaOffer{}, errors.Wrap(ErrNoMedia, "разбор SDP")
	}
	return offer, nil
}

// directionOf ищет атрибут направления, иначе возвращает def
func directionOf(attrs []sdp.Attribute, def string) string {
	for _, a := range attrs {
		switch a.Key {
		case directionSendRecv, directionSendOnly, directionRecvOnly, directionInactive:
			return a.Key
		}
	}
	return def
}

// videoStateFromRemote переводит направление собеседника в локальное видео состояние
func videoStateFromRemote(dir string) call.VideoState {
	switch dir {
	case directionSendOnly:
		return call.VideoRx
	case directionRecvOnly:
		return call.VideoTx
	case directionInactive:
		return call.VideoBidirectional | call.VideoPaused
	default:
		return call.VideoBidirectional
	}
}

// videoDirection локальное направление видео для состояния vs
func videoDirection(vs call.VideoState) string {
	switch {
	case vs.IsPaused():
		return directionInactive
	case vs.IsBidirectional():
		return directionSendRecv
	case vs.IsTransmissionEnabled():
		return directionSendOnly
	case vs.IsReceptionEnabled():
		return directionRecvOnly
	default:
		return directionInactive
	}
}

// MediaParams локальные параметры медиа для SDP
type MediaParams struct {
	Host      string
	AudioPort int
	VideoPort int
}

func (p MediaParams) withDefaults() MediaParams {
	if p.Host == "" {
		p.Host = "127.0.0.1"
	}
	if p.AudioPort == 0 {
		p.AudioPort = defaultAudioPort
	}
	if p.VideoPort == 0 {
		p.VideoPort = defaultVideoPort
	}
	return p
}

// BuildSDP строит локальное предложение или ответ. hold переводит звук
// в sendonly, а видео в inactive.
func BuildSDP(p MediaParams, vs call.VideoState, hold bool) ([]byte, error) {
	p = p.withDefaults()
	now := uint64(time.Now().Unix())

	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      now,
			SessionVersion: now,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: p.Host,
		},
		SessionName: sdp.SessionName(defaultSDPSession),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: p.Host},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	audioDir := directionSendRecv
	if hold {
		audioDir = directionSendOnly
	}
	audio := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "audio",
			Port:   sdp.RangedPort{Value: p.AudioPort},
			Protos: []string{"RTP", "AVP"},
			Formats: []string{
				strconv.Itoa(audioPayloadPCMU),
				strconv.Itoa(audioPayloadPCMA),
				strconv.Itoa(audioPayloadDTMF),
			},
		},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("rtpmap", "0 PCMU/8000"),
			sdp.NewAttribute("rtpmap", "8 PCMA/8000"),
			sdp.NewAttribute("rtpmap", "101 telephone-event/8000"),
			sdp.NewAttribute("fmtp", "101 0-16"),
			sdp.NewPropertyAttribute(audioDir),
		},
	}
	sd.MediaDescriptions = []*sdp.MediaDescription{audio}

	if vs.IsVideo() {
		dir := videoDirection(vs)
		if hold {
			dir = directionInactive
		}
		video := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: p.VideoPort},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{strconv.Itoa(videoPayloadH264)},
			},
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("rtpmap", strconv.Itoa(videoPayloadH264)+" H264/"+strconv.Itoa(videoClockRateHz)),
				sdp.NewPropertyAttribute(dir),
			},
		}
		sd.MediaDescriptions = append(sd.MediaDescriptions, video)
	}

	body, err := sd.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "сборка SDP")
	}
	return body, nil
}
