// Package sipbridge реализует телефонный слой поверх SIP.
//
// Входящие INVITE, CANCEL и BYE превращаются в события telecom.Listener,
// команды экрана вызова (ответить, отклонить, удержать, перевести) в SIP
// запросы. Медиа не передается: SDP служит только для согласования видео
// и удержания.
package sipbridge

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/pkg/errors"
)

const (
	requestTimeout = 5 * time.Second
	// maxCalls одновременно живых вызовов
	maxCalls = 2
)

// Config параметры моста
type Config struct {
	Network        string
	ListenAddr     string
	UserAgent      string
	ContactUser    string
	SubscriptionID int64
	Media          MediaParams
	Logger         *slog.Logger
}

// contactURI локальный Contact из адреса прослушивания
func (c Config) contactURI() (sip.Uri, error) {
	host, portStr, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return sip.Uri{}, errors.Wrapf(err, "адрес прослушивания %q", c.ListenAddr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sip.Uri{}, errors.Wrapf(err, "порт %q", portStr)
	}
	return sip.Uri{Scheme: "sip", User: c.ContactUser, Host: host, Port: port}, nil
}

// Bridge телефонный слой на SIP
type Bridge struct {
	cfg       Config
	logger    *slog.Logger
	transport Transport
	contact   sip.Uri
	// spawn запускает сетевые операции команд
	spawn func(func())

	ua     *sipgo.UserAgent
	server *sipgo.Server

	mu       sync.Mutex
	listener telecom.Listener
	sessions map[string]*session
	muted    bool
	route    telecom.AudioRoute
	closed   bool
}

var _ telecom.Commands = (*Bridge)(nil)

// New создает мост с UA, сервером и клиентом sipgo
func New(cfg Config) (*Bridge, error) {
	contact, err := cfg.contactURI()
	if err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "incallui"
	}
	if cfg.Network == "" {
		cfg.Network = "udp"
	}
	if cfg.Media.Host == "" {
		cfg.Media.Host = contact.Host
	}

	ua, err := sipgo.NewUA(
		sipgo.WithUserAgent(cfg.UserAgent),
		sipgo.WithUserAgentHostname(contact.Host),
	)
	if err != nil {
		return nil, errors.Wrap(err, "создание UA")
	}
	server, err := sipgo.NewServer(ua)
	if err != nil {
		_ = ua.Close()
		return nil, errors.Wrap(err, "создание SIP сервера")
	}
	client, err := sipgo.NewClient(ua, sipgo.WithClientHostname(contact.Host))
	if err != nil {
		_ = ua.Close()
		return nil, errors.Wrap(err, "создание SIP клиента")
	}

	b := newBridge(cfg, contact, &clientTransport{client: client})
	b.ua = ua
	b.server = server
	b.registerHandlers()
	return b, nil
}

func newBridge(cfg Config, contact sip.Uri, transport Transport) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "sipbridge")),
		transport: transport,
		contact:   contact,
		spawn:     func(f func()) { go f() },
		sessions:  make(map[string]*session),
	}
}

// accountHandle аккаунт вызовов моста: собственный Contact
func (b *Bridge) accountHandle() string {
	return b.contact.String()
}

// SetListener задает получателя событий. Вызывается до Serve.
func (b *Bridge) SetListener(l telecom.Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

func (b *Bridge) registerHandlers() {
	b.server.OnInvite(func(req *sip.Request, tx sip.ServerTransaction) {
		id := req.CallID().Value()
		b.handleInvite(req, tx.Respond)
		<-tx.Done()
		b.onInviteDone(id)
	})
	b.server.OnCancel(func(req *sip.Request, tx sip.ServerTransaction) {
		b.handleCancel(req, tx.Respond)
	})
	b.server.OnBye(func(req *sip.Request, tx sip.ServerTransaction) {
		b.handleBye(req, tx.Respond)
	})
	b.server.OnAck(func(req *sip.Request, tx sip.ServerTransaction) {
		b.handleAck(req)
	})
}

// Serve привязывает сервис и принимает SIP до отмены ctx.
// Перед возвратом все вызовы завершаются и сервис отвязывается.
func (b *Bridge) Serve(ctx context.Context) error {
	if b.server == nil {
		return errors.New("мост создан без SIP сервера")
	}
	b.emit(func(l telecom.Listener) { l.OnServiceBind() })
	b.logger.Info("Запуск SIP сервера",
		slog.String("network", b.cfg.Network),
		slog.String("address", b.cfg.ListenAddr))

	err := b.server.ListenAndServe(ctx, b.cfg.Network, b.cfg.ListenAddr)
	if err != nil && ctx.Err() == nil {
		b.logger.Error("SIP сервер остановлен с ошибкой", slog.String("error", err.Error()))
	} else {
		err = nil
	}

	b.shutdown()
	b.emit(func(l telecom.Listener) { l.OnServiceUnbind() })
	return err
}

// Close останавливает UA
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	if b.ua != nil {
		return b.ua.Close()
	}
	return nil
}

// shutdown завершает все вызовы без сигнализации
func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closed = true
	var snaps []*call.Call
	for _, s := range b.sessions {
		b.endLocked(s, call.NewDisconnectCause(call.DisconnectLocal))
		snaps = append(snaps, s.snapshot())
	}
	b.mu.Unlock()
	for _, c := range snaps {
		b.emitUpdated(c)
	}
}

func (b *Bridge) emit(f func(telecom.Listener)) {
	b.mu.Lock()
	l := b.listener
	b.mu.Unlock()
	if l != nil {
		f(l)
	}
}

func (b *Bridge) emitUpdated(c *call.Call) {
	b.emit(func(l telecom.Listener) { l.OnCallUpdated(c) })
}

// liveLocked количество незавершенных вызовов
func (b *Bridge) liveLocked() int {
	n := 0
	for _, s := range b.sessions {
		if !s.terminated() {
			n++
		}
	}
	return n
}

// endLocked переводит вызов в DISCONNECTED и забывает диалог
func (b *Bridge) endLocked(s *session, cause call.DisconnectCause) {
	if !s.terminated() {
		s.fire(evEnd)
	}
	s.call.State = call.StateDisconnected
	s.call.DisconnectCause = cause
	if s.cancel != nil {
		s.cancel()
	}
	delete(b.sessions, s.id)
}

// handleInvite новый входящий вызов или re-INVITE установленного
func (b *Bridge) handleInvite(req *sip.Request, respond func(*sip.Response) error) {
	id := req.CallID().Value()

	b.mu.Lock()
	if s, ok := b.sessions[id]; ok {
		b.handleReinviteLocked(s, req, respond)
		return
	}
	if b.closed {
		b.mu.Unlock()
		b.respond(respond, sip.NewResponseFromRequest(req, 503, "Service Unavailable", nil))
		return
	}
	if b.liveLocked() >= maxCalls {
		b.mu.Unlock()
		b.respond(respond, sip.NewResponseFromRequest(req, 486, "Busy Here", nil))
		return
	}

	offer, err := ParseSDP(req.Body())
	if err != nil {
		b.mu.Unlock()
		b.logger.Warn("Входящий вызов с некорректным SDP",
			slog.String("call_id", id),
			slog.String("error", err.Error()))
		b.respond(respond, sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	state := call.StateIncoming
	if b.liveLocked() > 0 {
		state = call.StateCallWaiting
	}
	c := call.New(id, state)
	c.SubscriptionID = b.cfg.SubscriptionID
	c.AccountHandle = b.accountHandle()
	c.Capabilities = offer.Capabilities() | call.CapabilityRespondViaText
	c.VideoState = offer.VideoState

	s := newSession(id, false, c, b.logger)
	s.invite = req
	s.respond = respond
	s.offer = offer
	if from := req.From(); from != nil {
		s.remoteURI = from.Address
		s.remoteTag, _ = from.Params.Get("tag")
		c.Number = from.Address.User
	}
	if to := req.To(); to != nil {
		s.localURI = to.Address
	}
	s.remoteTarget = s.remoteURI
	if contact := req.Contact(); contact != nil {
		s.remoteTarget = contact.Address
	}
	s.fire(evRing)
	b.sessions[id] = s
	ringing := s.response(180, "Ringing", nil)
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Входящий вызов",
		slog.String("call_id", id),
		slog.String("from", c.Number),
		slog.String("state", state.String()))
	b.respond(respond, ringing)
	b.emit(func(l telecom.Listener) { l.OnCallAdded(snap) })
}

// handleReinviteLocked собеседник меняет параметры установленного вызова.
// Предложение видео становится запросом на переход к видео, локальная
// сторона отвечает текущим состоянием до решения пользователя.
func (b *Bridge) handleReinviteLocked(s *session, req *sip.Request, respond func(*sip.Response) error) {
	offer, err := ParseSDP(req.Body())
	if err != nil {
		b.mu.Unlock()
		b.respond(respond, sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	upgrade := false
	switch {
	case offer.HasVideo && !s.call.VideoState.IsVideo():
		upgrade = true
		s.call.ModifyToVideoState = offer.VideoState
	case !offer.HasVideo:
		s.call.VideoState = call.VideoAudioOnly
	default:
		s.call.VideoState = offer.VideoState
	}
	s.offer = offer
	s.call.Capabilities = offer.Capabilities()

	body, err := BuildSDP(b.cfg.Media, s.call.VideoState, s.sig.Is(sigHeld))
	if err != nil {
		b.mu.Unlock()
		b.logger.Error("Не удалось собрать SDP ответа", slog.String("error", err.Error()))
		b.respond(respond, sip.NewResponseFromRequest(req, 500, "Server Internal Error", nil))
		return
	}
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", body)
	res.AppendHeader(sdpContentType())
	res.AppendHeader(&sip.ContactHeader{Address: b.contact})
	snap := s.snapshot()
	b.mu.Unlock()

	b.respond(respond, res)
	if upgrade {
		b.logger.Info("Запрос перехода к видео", slog.String("call_id", s.id))
		b.emit(func(l telecom.Listener) { l.OnUpgradeToVideoRequest(snap) })
		return
	}
	b.emitUpdated(snap)
}

// onInviteDone транзакция INVITE завершилась. Вызов, оставшийся без
// ответа, считается пропущенным.
func (b *Bridge) onInviteDone(id string) {
	b.mu.Lock()
	s, ok := b.sessions[id]
	if !ok || !s.sig.Is(sigRinging) {
		b.mu.Unlock()
		return
	}
	b.endLocked(s, call.NewDisconnectCause(call.DisconnectMissed))
	snap := s.snapshot()
	b.mu.Unlock()
	b.emitUpdated(snap)
}

// handleCancel собеседник отозвал INVITE до ответа
func (b *Bridge) handleCancel(req *sip.Request, respond func(*sip.Response) error) {
	id := req.CallID().Value()

	b.mu.Lock()
	s, ok := b.sessions[id]
	if !ok || !s.sig.Is(sigRinging) {
		b.mu.Unlock()
		b.respond(respond, sip.NewResponseFromRequest(req, sip.StatusCallTransactionDoesNotExists, "Call/Transaction Does Not Exist", nil))
		return
	}
	terminated := s.response(487, "Request Terminated", nil)
	b.endLocked(s, call.NewDisconnectCause(call.DisconnectMissed))
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Входящий вызов отменен", slog.String("call_id", id))
	b.respond(respond, sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil))
	b.respond(s.respond, terminated)
	b.emitUpdated(snap)
}

// handleBye собеседник завершил вызов
func (b *Bridge) handleBye(req *sip.Request, respond func(*sip.Response) error) {
	id := req.CallID().Value()

	b.mu.Lock()
	s, ok := b.sessions[id]
	if !ok {
		b.mu.Unlock()
		b.respond(respond, sip.NewResponseFromRequest(req, sip.StatusCallTransactionDoesNotExists, "Call/Transaction Does Not Exist", nil))
		return
	}
	b.endLocked(s, call.NewDisconnectCause(call.DisconnectRemote))
	snap := s.snapshot()
	b.mu.Unlock()

	b.logger.Info("Собеседник завершил вызов", slog.String("call_id", id))
	b.respond(respond, sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil))
	b.emitUpdated(snap)
}

func (b *Bridge) handleAck(req *sip.Request) {
	b.logger.Debug("ACK", slog.String("call_id", req.CallID().Value()))
}

func (b *Bridge) respond(respond func(*sip.Response) error, res *sip.Response) {
	if respond == nil {
		return
	}
	if err := respond(res); err != nil {
		b.logger.Warn("Не удалось отправить ответ",
			slog.Int("status", int(res.StatusCode)),
			slog.String("error", err.Error()))
	}
}

func sdpContentType() *sip.ContentTypeHeader {
	ct := sip.ContentTypeHeader("application/sdp")
	return &ct
}
