package sipbridge

import (
	"context"
	"sync"
	"testing"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/emiago/sipgo/sip"
)

// fakeTransport записывает запросы и отвечает заданными функциями.
// По умолчанию отвечает 200 OK, на INVITE с двусторонним SDP звука.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*sip.Request

	do     func(req *sip.Request) (*sip.Response, error)
	invite func(req *sip.Request, onProvisional func(*sip.Response)) (*sip.Response, error)
}

func (f *fakeTransport) Do(_ context.Context, req *sip.Request) (*sip.Response, error) {
	f.record(req)
	if f.do != nil {
		return f.do(req)
	}
	return sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil), nil
}

func (f *fakeTransport) Invite(_ context.Context, req *sip.Request, onProvisional func(*sip.Response)) (*sip.Response, error) {
	f.record(req)
	if f.invite != nil {
		return f.invite(req, onProvisional)
	}
	return answerWith(req, sdpHeader+audioSDP("sendrecv")), nil
}

func (f *fakeTransport) record(req *sip.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeTransport) methods() []sip.RequestMethod {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sip.RequestMethod, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Method)
	}
	return out
}

func (f *fakeTransport) last() *sip.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// answerWith 200 OK с SDP и тегом собеседника
func answerWith(req *sip.Request, body string) *sip.Response {
	res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", []byte(body))
	if to := res.To(); to != nil {
		to.Params = to.Params.Add("tag", "peer-tag")
	}
	res.AppendHeader(&sip.ContactHeader{Address: sip.Uri{Scheme: "sip", User: "bob", Host: "10.0.0.3", Port: 5070}})
	return res
}

type fakeListener struct {
	mu       sync.Mutex
	added    []*call.Call
	updated  []*call.Call
	upgrades []*call.Call
	binds    int
	unbinds  int
}

func (l *fakeListener) OnCallAdded(c *call.Call) {
	l.mu.Lock()
	l.added = append(l.added, c)
	l.mu.Unlock()
}

func (l *fakeListener) OnCallUpdated(c *call.Call) {
	l.mu.Lock()
	l.updated = append(l.updated, c)
	l.mu.Unlock()
}

func (l *fakeListener) OnUpgradeToVideoRequest(c *call.Call) {
	l.mu.Lock()
	l.upgrades = append(l.upgrades, c)
	l.mu.Unlock()
}

func (l *fakeListener) OnCallRemoved(*call.Call)    {}
func (l *fakeListener) OnDetailsChanged(*call.Call) {}
func (l *fakeListener) OnCanAddCallChanged(bool)    {}
func (l *fakeListener) OnServiceBind()              { l.binds++ }
func (l *fakeListener) OnServiceUnbind()            { l.unbinds++ }

func (l *fakeListener) lastUpdate() *call.Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.updated) == 0 {
		return nil
	}
	return l.updated[len(l.updated)-1]
}

// responder собирает ответы сервера на один входящий запрос
type responder struct {
	codes []int
	last  *sip.Response
}

func (r *responder) respond(res *sip.Response) error {
	r.codes = append(r.codes, int(res.StatusCode))
	r.last = res
	return nil
}

var localContact = sip.Uri{Scheme: "sip", User: "incallui", Host: "127.0.0.1", Port: 5060}

func newTestBridge(t *testing.T) (*Bridge, *fakeTransport, *fakeListener) {
	t.Helper()
	tr := &fakeTransport{}
	cfg := Config{
		ListenAddr:     "127.0.0.1:5060",
		ContactUser:    "incallui",
		SubscriptionID: 1,
		Media:          MediaParams{Host: "127.0.0.1"},
	}
	b := newBridge(cfg, localContact, tr)
	b.spawn = func(f func()) { f() }
	l := &fakeListener{}
	b.SetListener(l)
	return b, tr, l
}

// newInvite входящий INVITE от alice
func newInvite(callID string, body string) *sip.Request {
	req := sip.NewRequest(sip.INVITE, localContact)
	req.AppendHeader(&sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            "10.0.0.2",
		Port:            5060,
		Params:          sip.NewParams().Add("branch", "z9hG4bK"+callID),
	})
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{Scheme: "sip", User: "alice", Host: "10.0.0.2"},
		Params:  sip.NewParams().Add("tag", "alice-tag"),
	})
	req.AppendHeader(&sip.ToHeader{Address: localContact, Params: sip.NewParams()})
	id := sip.CallIDHeader(callID)
	req.AppendHeader(&id)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})
	req.AppendHeader(&sip.ContactHeader{Address: sip.Uri{Scheme: "sip", User: "alice", Host: "10.0.0.2", Port: 5062}})
	if body != "" {
		req.AppendHeader(sdpContentType())
		req.SetBody([]byte(body))
	}
	return req
}

// inDialog запрос собеседника внутри диалога callID
func inDialog(method sip.RequestMethod, callID string, body string) *sip.Request {
	req := newInvite(callID, body)
	req.Method = method
	req.To().Params = req.To().Params.Add("tag", "local")
	req.CSeq().SeqNo = 2
	req.CSeq().MethodName = method
	return req
}
