package call

import (
	"fmt"
	"time"
)

// Call изменяемая запись об одном телефонном вызове.
//
// Запись поставляет телефонный слой. После регистрации в CallList
// владельцем записи становится список; другие компоненты не должны
// хранить ссылку на вызов после его удаления из списка.
type Call struct {
	// Идентификация
	ID             string
	SubscriptionID int64

	// Состояние
	State                    State
	SessionModificationState SessionModificationState
	DisconnectCause          DisconnectCause

	Capabilities Capability
	VideoState   VideoState
	// ModifyToVideoState видео состояние, запрошенное собеседником
	ModifyToVideoState VideoState

	// Адресация
	Number        string
	AccountHandle string
	IsEmergency   bool

	// IsActiveSub вызов относится к активной подписке (DSDA)
	IsActiveSub bool

	// Конференция
	ParentID string
	ChildIDs []string

	CreateTime  time.Time
	ConnectTime time.Time
}

// New создает вызов в указанном состоянии
func New(id string, state State) *Call {
	return &Call{
		ID:         id,
		State:      state,
		CreateTime: time.Now(),
	}
}

// Can проверяет наличие всех возможностей want
func (c *Call) Can(want Capability) bool {
	return c.Capabilities.Has(want)
}

// IsConference возвращает true для вызова-конференции
func (c *Call) IsConference() bool {
	return len(c.ChildIDs) > 0
}

// IsVideoCall возвращает true если в вызове есть видео
func (c *Call) IsVideoCall() bool {
	return c.VideoState.IsVideo()
}

// Clone возвращает независимую копию вызова
func (c *Call) Clone() *Call {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ChildIDs != nil {
		cp.ChildIDs = append([]string(nil), c.ChildIDs...)
	}
	return &cp
}

// String возвращает краткое описание для логов
func (c *Call) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%s, %s, sub=%d, caps=%s, video=%s, mod=%s]",
		c.ID, c.State, c.SubscriptionID, c.Capabilities, c.VideoState, c.SessionModificationState)
}
