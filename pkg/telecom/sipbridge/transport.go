package sipbridge

import (
	"context"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/pkg/errors"
)

// Transport отправляет запросы от имени моста
type Transport interface {
	// Do отправляет запрос и ждет финальный ответ
	Do(ctx context.Context, req *sip.Request) (*sip.Response, error)
	// Invite отправляет INVITE, передает предварительные ответы в
	// onProvisional и подтверждает успешный финальный ответ ACK.
	Invite(ctx context.Context, req *sip.Request, onProvisional func(*sip.Response)) (*sip.Response, error)
}

// clientTransport Transport поверх sipgo.Client
type clientTransport struct {
	client *sipgo.Client
}

func (t *clientTransport) Do(ctx context.Context, req *sip.Request) (*sip.Response, error) {
	res, err := t.client.Do(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "отправка %s", req.Method)
	}
	return res, nil
}

func (t *clientTransport) Invite(ctx context.Context, req *sip.Request, onProvisional func(*sip.Response)) (*sip.Response, error) {
	tx, err := t.client.TransactionRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "отправка INVITE")
	}
	defer tx.Terminate()

	for {
		select {
		case res, ok := <-tx.Responses():
			if !ok {
				return nil, errors.New("транзакция INVITE закрыта без ответа")
			}
			if res.StatusCode < 200 {
				if onProvisional != nil {
					onProvisional(res)
				}
				continue
			}
			if res.StatusCode < 300 {
				if err := t.client.WriteRequest(buildAck(req, res)); err != nil {
					return res, errors.Wrap(err, "отправка ACK")
				}
			}
			return res, nil
		case <-tx.Done():
			if err := tx.Err(); err != nil {
				return nil, errors.Wrap(err, "транзакция INVITE")
			}
			return nil, errors.New("транзакция INVITE завершена без ответа")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// buildAck создает ACK на успешный ответ INVITE
func buildAck(invite *sip.Request, res *sip.Response) *sip.Request {
	target := invite.Recipient
	if c := res.Contact(); c != nil {
		target = c.Address
	}
	ack := sip.NewRequest(sip.ACK, target)
	if from := invite.From(); from != nil {
		ack.AppendHeader(sip.HeaderClone(from))
	}
	if to := res.To(); to != nil {
		ack.AppendHeader(sip.HeaderClone(to))
	}
	if callID := invite.CallID(); callID != nil {
		ack.AppendHeader(sip.HeaderClone(callID))
	}
	seq := uint32(1)
	if cseq := invite.CSeq(); cseq != nil {
		seq = cseq.SeqNo
	}
	ack.AppendHeader(&sip.CSeqHeader{SeqNo: seq, MethodName: sip.ACK})
	ack.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	return ack
}
