// Package subscription изолирует логику нескольких SIM (DSDA: dual-SIM
// dual-active) за одной стратегией, чтобы конечный автомат не проверял
// режим работы устройства в каждой ветке.
package subscription

import "github.com/arzzra/incallui/pkg/call"

// DefaultSubscriptionID подписка по умолчанию для устройств с одной SIM
const DefaultSubscriptionID int64 = 1

// Policy стратегия работы с подписками
type Policy interface {
	// MultiActive true если одновременно могут быть живые вызовы на разных подписках
	MultiActive() bool
	// Subscriptions известные подписки в порядке слотов
	Subscriptions() []int64
	// DefaultSubscription подписка, активная при старте
	DefaultSubscription() int64
	// SlotCount количество слотов для отслеживания вызовов презентерами
	SlotCount() int
	// Slot индекс слота подписки. Неизвестная подписка попадает в слот 0.
	Slot(subID int64) int
	// TracksActiveSubscription true если вызов должен сделать свою подписку активной
	TracksActiveSubscription(c *call.Call) bool
}

// SingleSim политика для устройства с одной SIM
type SingleSim struct {
	SubscriptionID int64
}

// NewSingleSim создает политику одной SIM
func NewSingleSim(subID int64) SingleSim {
	if subID == 0 {
		subID = DefaultSubscriptionID
	}
	return SingleSim{SubscriptionID: subID}
}

func (p SingleSim) MultiActive() bool                        { return false }
func (p SingleSim) Subscriptions() []int64                   { return []int64{p.SubscriptionID} }
func (p SingleSim) DefaultSubscription() int64               { return p.SubscriptionID }
func (p SingleSim) SlotCount() int                           { return 1 }
func (p SingleSim) Slot(int64) int                           { return 0 }
func (p SingleSim) TracksActiveSubscription(*call.Call) bool { return false }

// Dsda политика для двух и более одновременно активных SIM
type Dsda struct {
	subs []int64
}

// NewDsda создает политику DSDA. Порядок subs задает номера слотов.
func NewDsda(subs ...int64) *Dsda {
	cp := append([]int64(nil), subs...)
	if len(cp) == 0 {
		cp = []int64{DefaultSubscriptionID}
	}
	return &Dsda{subs: cp}
}

func (p *Dsda) MultiActive() bool { return len(p.subs) > 1 }

func (p *Dsda) Subscriptions() []int64 { return append([]int64(nil), p.subs...) }

func (p *Dsda) DefaultSubscription() int64 { return p.subs[0] }

func (p *Dsda) SlotCount() int { return len(p.subs) }

func (p *Dsda) Slot(subID int64) int {
	for i, s := range p.subs {
		if s == subID {
			return i
		}
	}
	return 0
}

func (p *Dsda) TracksActiveSubscription(c *call.Call) bool {
	return c != nil && c.IsActiveSub
}
