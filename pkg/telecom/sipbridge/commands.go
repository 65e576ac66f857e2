package sipbridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Dial начинает исходящий вызов на target (SIP URI).
// Вызов проходит CONNECTING, DIALING и завершается ACTIVE или DISCONNECTED.
func (b *Bridge) Dial(ctx context.Context, target string) (string, error) {
	uri, err := parseTarget(target)
	if err != nil {
		return "", err
	}
	body, err := BuildSDP(b.cfg.Media, call.VideoAudioOnly, false)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	c := call.New(id, call.StateConnecting)
	c.Number = uri.User
	c.SubscriptionID = b.cfg.SubscriptionID
	c.AccountHandle = b.accountHandle()
	c.Capabilities = MediaOffer{HasAudio: true}.Capabilities()

	s := newSession(id, true, c, b.logger)
	s.localURI = b.contact
	s.remoteURI = uri
	s.remoteTarget = uri
	req := s.request(sip.INVITE, b.contact)
	req.AppendHeader(sdpContentType())
	req.SetBody(body)
	s.invite = req

	dialCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	b.sessions[id] = s
	added := s.snapshot()
	s.fire(evDial)
	c.State = call.StateDialing
	dialing := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Исходящий вызов", slog.String("call_id", id), slog.String("target", target))
	b.emit(func(l telecom.Listener) { l.OnCallAdded(added) })
	b.emitUpdated(dialing)
	b.spawn(func() { b.runInvite(dialCtx, s, req) })
	return id, nil
}

// parseTarget разбирает SIP URI собеседника
func parseTarget(target string) (sip.Uri, error) {
	var uri sip.Uri
	if err := sip.ParseUri(target, &uri); err != nil {
		return sip.Uri{}, errors.Wrapf(err, "адрес %q", target)
	}
	if uri.Host == "" {
		return sip.Uri{}, errors.Errorf("адрес %q без хоста", target)
	}
	return uri, nil
}

// runInvite ждет финальный ответ на исходящий INVITE
func (b *Bridge) runInvite(ctx context.Context, s *session, req *sip.Request) {
	res, err := b.transport.Invite(ctx, req, func(r *sip.Response) {
		if r.StatusCode != 180 && r.StatusCode != 183 {
			return
		}
		b.mu.Lock()
		if s.sig.Can(evProgress) {
			s.fire(evProgress)
		}
		b.mu.Unlock()
	})

	b.mu.Lock()
	if s.terminated() {
		b.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		b.logger.Warn("Исходящий вызов не удался", slog.String("call_id", s.id), slog.String("error", err.Error()))
		b.endLocked(s, call.DisconnectCause{
			Code:        call.DisconnectError,
			Description: "Нет связи с сервером",
			Reason:      err.Error(),
		})
	case res.StatusCode >= 300:
		b.endLocked(s, disconnectCauseFor(int(res.StatusCode), res.Reason))
	default:
		b.confirmLocked(s, res)
	}
	snap := s.snapshot()
	b.mu.Unlock()
	b.emitUpdated(snap)
}

// confirmLocked исходящий вызов принят собеседником
func (b *Bridge) confirmLocked(s *session, res *sip.Response) {
	if to := res.To(); to != nil {
		s.remoteTag, _ = to.Params.Get("tag")
	}
	if contact := res.Contact(); contact != nil {
		s.remoteTarget = contact.Address
	}
	offer, err := ParseSDP(res.Body())
	if err != nil {
		b.logger.Warn("Некорректный SDP ответа", slog.String("call_id", s.id), slog.String("error", err.Error()))
		offer = MediaOffer{HasAudio: true}
	}
	s.offer = offer
	s.fire(evAnswer)
	s.call.State = call.StateActive
	s.call.Capabilities = offer.Capabilities()
	s.call.VideoState = offer.VideoState
	s.call.ConnectTime = time.Now()
}

// sessionLocked ищет вызов. Неизвестный вызов пишется в лог.
func (b *Bridge) sessionLocked(op, id string) *session {
	s, ok := b.sessions[id]
	if !ok {
		b.logger.Warn("Команда для неизвестного вызова",
			slog.String("op", op),
			slog.String("call_id", id),
			slog.String("error", ErrUnknownCall.Error()))
		return nil
	}
	return s
}

// AnswerCall принимает входящий вызов с видео состоянием videoState
func (b *Bridge) AnswerCall(callID string, videoState call.VideoState) {
	b.mu.Lock()
	s := b.sessionLocked("answer", callID)
	if s == nil || s.outbound || !s.sig.Can(evAnswer) {
		b.mu.Unlock()
		return
	}
	if !s.offer.HasVideo {
		videoState = call.VideoAudioOnly
	}
	body, err := BuildSDP(b.cfg.Media, videoState, false)
	if err != nil {
		b.mu.Unlock()
		b.logger.Error("Не удалось собрать SDP ответа", slog.String("error", err.Error()))
		return
	}
	res := s.response(int(sip.StatusOK), "OK", body)
	res.AppendHeader(sdpContentType())
	res.AppendHeader(&sip.ContactHeader{Address: b.contact})

	s.fire(evAnswer)
	s.call.State = call.StateActive
	s.call.VideoState = videoState
	s.call.Capabilities &^= call.CapabilityRespondViaText
	s.call.ConnectTime = time.Now()
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Вызов принят", slog.String("call_id", callID), slog.String("video", videoState.String()))
	b.respond(s.respond, res)
	b.emitUpdated(snap)
}

// RejectCall отклоняет входящий вызов. С сообщением отвечает 603 и
// отправляет собеседнику text запросом MESSAGE, иначе 486.
func (b *Bridge) RejectCall(callID string, withMessage bool, text string) {
	b.mu.Lock()
	s := b.sessionLocked("reject", callID)
	if s == nil || s.outbound || !s.sig.Is(sigRinging) {
		b.mu.Unlock()
		return
	}
	res := s.response(486, "Busy Here", nil)
	var msg *sip.Request
	if withMessage {
		res = s.response(603, "Decline", nil)
		msg = b.messageRequest(s, text)
	}
	b.endLocked(s, call.NewDisconnectCause(call.DisconnectRejected))
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Вызов отклонен", slog.String("call_id", callID), slog.Bool("with_message", withMessage))
	b.respond(s.respond, res)
	b.emitUpdated(snap)
	if msg != nil {
		b.spawn(func() { b.send(msg) })
	}
}

// messageRequest MESSAGE с текстом вне диалога
func (b *Bridge) messageRequest(s *session, text string) *sip.Request {
	req := sip.NewRequest(sip.MESSAGE, s.remoteTarget)
	req.AppendHeader(&sip.FromHeader{
		Address: b.contact,
		Params:  sip.NewParams().Add("tag", sip.RandString(8)),
	})
	req.AppendHeader(&sip.ToHeader{Address: s.remoteURI, Params: sip.NewParams()})
	callID := sip.CallIDHeader(uuid.NewString())
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.MESSAGE})
	ct := sip.ContentTypeHeader("text/plain;charset=UTF-8")
	req.AppendHeader(&ct)
	req.SetBody([]byte(text))
	return req
}

// DisconnectCall завершает вызов: BYE для установленного, CANCEL для
// набираемого, 603 для входящего.
func (b *Bridge) DisconnectCall(callID string) {
	b.mu.Lock()
	s := b.sessionLocked("disconnect", callID)
	if s == nil {
		b.mu.Unlock()
		return
	}
	var (
		req *sip.Request
		res *sip.Response
	)
	switch s.state() {
	case sigRinging:
		res = s.response(603, "Decline", nil)
	case sigCalling, sigProceeding:
		req = buildCancel(s.invite)
	case sigConfirmed, sigHeld:
		req = s.request(sip.BYE, b.contact)
	}
	b.endLocked(s, call.NewDisconnectCause(call.DisconnectLocal))
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Вызов завершен локально", slog.String("call_id", callID))
	if res != nil {
		b.respond(s.respond, res)
	}
	b.emitUpdated(snap)
	if req != nil {
		b.spawn(func() { b.send(req) })
	}
}

// buildCancel CANCEL для исходящего INVITE
func buildCancel(invite *sip.Request) *sip.Request {
	req := sip.NewRequest(sip.CANCEL, invite.Recipient)
	if via := invite.Via(); via != nil {
		req.AppendHeader(via.Clone())
	}
	if h := invite.From(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	if h := invite.To(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	if h := invite.CallID(); h != nil {
		req.AppendHeader(sip.HeaderClone(h))
	}
	seq := uint32(1)
	if h := invite.CSeq(); h != nil {
		seq = h.SeqNo
	}
	req.AppendHeader(&sip.CSeqHeader{SeqNo: seq, MethodName: sip.CANCEL})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	return req
}

// send отправляет запрос и пишет неуспех в лог
func (b *Bridge) send(req *sip.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := b.transport.Do(ctx, req)
	if err != nil {
		b.logger.Warn("Запрос не доставлен", slog.String("method", string(req.Method)), slog.String("error", err.Error()))
		return
	}
	if res.StatusCode >= 300 {
		b.logger.Warn("Запрос отклонен",
			slog.String("method", string(req.Method)),
			slog.String("error", (&StatusError{Method: string(req.Method), Code: int(res.StatusCode), Reason: res.Reason}).Error()))
	}
}

// reinvite отправляет re-INVITE с новым SDP. apply вызывается под
// блокировкой с результатом согласования; ok=false при ошибке или отказе.
func (b *Bridge) reinvite(op, callID string, videoState call.VideoState, hold bool, allowed func(*session) bool, apply func(s *session, ok bool, answer MediaOffer)) {
	b.mu.Lock()
	s := b.sessionLocked(op, callID)
	if s == nil {
		b.mu.Unlock()
		return
	}
	if !allowed(s) {
		b.mu.Unlock()
		b.logger.Warn("Команда недоступна в состоянии вызова",
			slog.String("op", op),
			slog.String("call_id", callID),
			slog.String("state", s.state()))
		return
	}
	body, err := BuildSDP(b.cfg.Media, videoState, hold)
	if err != nil {
		b.mu.Unlock()
		b.logger.Error("Не удалось собрать SDP", slog.String("op", op), slog.String("error", err.Error()))
		return
	}
	req := s.request(sip.INVITE, b.contact)
	req.AppendHeader(sdpContentType())
	req.SetBody(body)
	b.mu.Unlock()

	b.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := b.transport.Invite(ctx, req, nil)

		ok := err == nil && res.StatusCode < 300
		var answer MediaOffer
		if ok {
			if answer, err = ParseSDP(res.Body()); err != nil {
				ok = false
			}
		}
		if !ok {
			attrs := []any{slog.String("op", op), slog.String("call_id", callID)}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			} else {
				attrs = append(attrs, slog.Int("status", int(res.StatusCode)))
			}
			b.logger.Warn("re-INVITE не удался", attrs...)
		}

		b.mu.Lock()
		if s.terminated() {
			b.mu.Unlock()
			return
		}
		apply(s, ok, answer)
		snap := s.snapshot()
		b.mu.Unlock()
		b.emitUpdated(snap)
	})
}

func inState(states ...string) func(*session) bool {
	return func(s *session) bool {
		for _, st := range states {
			if s.sig.Is(st) {
				return true
			}
		}
		return false
	}
}

// HoldCall ставит вызов на удержание (re-INVITE sendonly)
func (b *Bridge) HoldCall(callID string) {
	b.mu.Lock()
	vs := call.VideoAudioOnly
	if s, ok := b.sessions[callID]; ok {
		vs = s.call.VideoState
	}
	b.mu.Unlock()

	b.reinvite("hold", callID, vs, true, inState(sigConfirmed), func(s *session, ok bool, _ MediaOffer) {
		if ok && s.fire(evHold) {
			s.call.State = call.StateOnHold
		}
	})
}

// UnholdCall снимает вызов с удержания (re-INVITE sendrecv)
func (b *Bridge) UnholdCall(callID string) {
	b.mu.Lock()
	vs := call.VideoAudioOnly
	if s, ok := b.sessions[callID]; ok {
		vs = s.call.VideoState
	}
	b.mu.Unlock()

	b.reinvite("unhold", callID, vs, false, inState(sigHeld), func(s *session, ok bool, _ MediaOffer) {
		if ok && s.fire(evResume) {
			s.call.State = call.StateActive
		}
	})
}

// Swap удерживает callID и снимает с удержания другой вызов
func (b *Bridge) Swap(callID string) {
	b.mu.Lock()
	var other string
	for id, s := range b.sessions {
		if id != callID && s.sig.Is(sigHeld) {
			other = id
			break
		}
	}
	b.mu.Unlock()

	b.HoldCall(callID)
	if other != "" {
		b.UnholdCall(other)
	}
}

// RequestVideoUpgrade предлагает собеседнику видео состояние videoState.
// Аудио состояние означает переход обратно к голосу.
func (b *Bridge) RequestVideoUpgrade(callID string, videoState call.VideoState) {
	b.reinvite("video_request", callID, videoState, false, inState(sigConfirmed), func(s *session, ok bool, answer MediaOffer) {
		if !ok || answer.HasVideo != videoState.IsVideo() {
			s.call.SessionModificationState = call.SessionModificationRequestFailed
			return
		}
		s.offer = answer
		s.call.VideoState = answer.VideoState
		s.call.SessionModificationState = call.SessionModificationNoRequest
	})
}

// AcceptVideoUpgrade принимает запрос собеседника на видео
func (b *Bridge) AcceptVideoUpgrade(callID string, videoState call.VideoState) {
	b.reinvite("video_accept", callID, videoState, false, inState(sigConfirmed), func(s *session, ok bool, answer MediaOffer) {
		s.call.SessionModificationState = call.SessionModificationNoRequest
		s.call.ModifyToVideoState = call.VideoAudioOnly
		if ok && answer.HasVideo {
			s.offer = answer
			s.call.VideoState = videoState
		}
	})
}

// DeclineVideoUpgrade отклоняет запрос на видео. Собеседник уже получил
// ответ без видео, поэтому сигнализация не нужна.
func (b *Bridge) DeclineVideoUpgrade(callID string) {
	b.mu.Lock()
	s := b.sessionLocked("video_decline", callID)
	if s == nil {
		b.mu.Unlock()
		return
	}
	s.call.SessionModificationState = call.SessionModificationNoRequest
	s.call.ModifyToVideoState = call.VideoAudioOnly
	snap := s.snapshot()
	b.mu.Unlock()
	b.emitUpdated(snap)
}

// Transfer слепой перевод вызова на target (REFER)
func (b *Bridge) Transfer(callID string, target string) {
	uri, err := parseTarget(target)
	if err != nil {
		b.logger.Warn("Некорректный адрес перевода", slog.String("target", target), slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	s := b.sessionLocked("transfer", callID)
	if s == nil || !(s.sig.Is(sigConfirmed) || s.sig.Is(sigHeld)) {
		b.mu.Unlock()
		return
	}
	req := s.request(sip.REFER, b.contact)
	req.AppendHeader(&sip.ReferToHeader{Address: uri})
	b.mu.Unlock()

	b.logger.Info("Перевод вызова", slog.String("call_id", callID), slog.String("target", target))
	b.spawn(func() { b.send(req) })
}

// Mute включает или выключает микрофон
func (b *Bridge) Mute(on bool) {
	b.mu.Lock()
	b.muted = on
	b.mu.Unlock()
	b.logger.Debug("Микрофон", slog.Bool("muted", on))
}

// IsMuted состояние микрофона
func (b *Bridge) IsMuted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

// SetAudioRoute переключает маршрут звука
func (b *Bridge) SetAudioRoute(route telecom.AudioRoute) {
	b.mu.Lock()
	b.route = route
	b.mu.Unlock()
	b.logger.Debug("Маршрут звука", slog.String("route", route.String()))
}

// AudioRoute текущий маршрут звука
func (b *Bridge) AudioRoute() telecom.AudioRoute {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.route
}

// CanAddCall можно ли начать еще один вызов
func (b *Bridge) CanAddCall() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.liveLocked() < maxCalls
}

func (b *Bridge) unsupported(op string, attrs ...any) {
	b.logger.Info("Команда не поддерживается", append([]any{slog.String("op", op)}, attrs...)...)
}

func (b *Bridge) Merge(callID string) { b.unsupported("merge", slog.String("call_id", callID)) }
func (b *Bridge) AddCall()            { b.unsupported("add_call") }

func (b *Bridge) SwitchCamera(callID string, front bool) {
	b.unsupported("switch_camera", slog.String("call_id", callID), slog.Bool("front", front))
}

func (b *Bridge) PauseVideo(callID string, pause bool) {
	b.unsupported("pause_video", slog.String("call_id", callID), slog.Bool("pause", pause))
}

func (b *Bridge) SetDeviceOrientation(callID string, rotation int) {
	b.unsupported("device_orientation", slog.String("call_id", callID), slog.Int("rotation", rotation))
}

// CanRecord мост не записывает медиа
func (b *Bridge) CanRecord() bool { return false }

func (b *Bridge) StartRecording(callID string) {
	b.unsupported("start_recording", slog.String("call_id", callID))
}

func (b *Bridge) StopRecording(callID string) {
	b.unsupported("stop_recording", slog.String("call_id", callID))
}
