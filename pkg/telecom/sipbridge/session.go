package sipbridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/emiago/sipgo/sip"
	"github.com/looplab/fsm"
)

// Состояния сигнализации одного вызова
const (
	sigIdle       = "idle"
	sigRinging    = "ringing"
	sigCalling    = "calling"
	sigProceeding = "proceeding"
	sigConfirmed  = "confirmed"
	sigHeld       = "held"
	sigTerminated = "terminated"
)

// События сигнализации
const (
	evRing     = "ring"
	evDial     = "dial"
	evProgress = "progress"
	evAnswer   = "answer"
	evHold     = "hold"
	evResume   = "resume"
	evEnd      = "end"
)

func newSignalling(logger *slog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		sigIdle,
		fsm.Events{
			{Name: evRing, Src: []string{sigIdle}, Dst: sigRinging},
			{Name: evDial, Src: []string{sigIdle}, Dst: sigCalling},
			{Name: evProgress, Src: []string{sigCalling}, Dst: sigProceeding},
			{Name: evAnswer, Src: []string{sigRinging, sigCalling, sigProceeding}, Dst: sigConfirmed},
			{Name: evHold, Src: []string{sigConfirmed}, Dst: sigHeld},
			{Name: evResume, Src: []string{sigHeld}, Dst: sigConfirmed},
			{Name: evEnd, Src: []string{sigIdle, sigRinging, sigCalling, sigProceeding, sigConfirmed, sigHeld}, Dst: sigTerminated},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Сигнализация",
					slog.String("event", e.Event),
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)
}

// session SIP диалог одного вызова
type session struct {
	id       string
	outbound bool
	sig      *fsm.FSM
	call     *call.Call
	logger   *slog.Logger

	// invite первый INVITE диалога
	invite *sip.Request
	// respond отвечает на входящий INVITE до финального ответа
	respond func(*sip.Response) error

	localURI     sip.Uri
	remoteURI    sip.Uri
	remoteTarget sip.Uri
	localTag     string
	remoteTag    string
	cseq         uint32

	offer MediaOffer
	// cancel прерывает исходящий INVITE
	cancel context.CancelFunc
}

func newSession(id string, outbound bool, c *call.Call, logger *slog.Logger) *session {
	l := logger.With(slog.String("call_id", id))
	return &session{
		id:       id,
		outbound: outbound,
		sig:      newSignalling(l),
		call:     c,
		logger:   l,
		localTag: sip.RandString(8),
	}
}

// fire выполняет переход. Недопустимый переход пишется в лог и возвращает false.
func (s *session) fire(event string) bool {
	if err := s.sig.Event(context.Background(), event); err != nil {
		s.logger.Warn("Переход сигнализации отклонен",
			slog.String("event", event),
			slog.String("state", s.sig.Current()),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (s *session) state() string {
	return s.sig.Current()
}

func (s *session) terminated() bool {
	return s.sig.Is(sigTerminated)
}

// snapshot копия вызова для слушателя
func (s *session) snapshot() *call.Call {
	return s.call.Clone()
}

// request строит запрос внутри диалога
func (s *session) request(method sip.RequestMethod, contact sip.Uri) *sip.Request {
	req := sip.NewRequest(method, s.remoteTarget)

	req.AppendHeader(&sip.FromHeader{
		Address: s.localURI,
		Params:  sip.NewParams().Add("tag", s.localTag),
	})
	to := &sip.ToHeader{Address: s.remoteURI, Params: sip.NewParams()}
	if s.remoteTag != "" {
		to.Params = to.Params.Add("tag", s.remoteTag)
	}
	req.AppendHeader(to)

	callID := sip.CallIDHeader(s.id)
	req.AppendHeader(&callID)

	s.cseq++
	req.AppendHeader(&sip.CSeqHeader{SeqNo: s.cseq, MethodName: method})
	req.AppendHeader(&sip.ContactHeader{Address: contact})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	return req
}

// response строит ответ на входящий INVITE с локальным тегом
func (s *session) response(code int, reason string, body []byte) *sip.Response {
	res := sip.NewResponseFromRequest(s.invite, sip.StatusCode(code), reason, body)
	if to := res.To(); to != nil {
		if _, ok := to.Params.Get("tag"); !ok {
			to.Params = to.Params.Add("tag", s.localTag)
		}
	}
	return res
}

func (s *session) String() string {
	return fmt.Sprintf("%s(%s)", s.id, s.state())
}
