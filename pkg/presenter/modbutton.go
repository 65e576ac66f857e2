package presenter

import (
	"fmt"
	"log/slog"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/arzzra/incallui/pkg/ui"
)

// ModButton дополнительная кнопка вызова
type ModButton int

const (
	ModButtonMerge ModButton = iota
	ModButtonAddParticipant
	ModButtonRecord
	ModButtonTransfer
	ModButtonManageConference
)

var modButtonNames = [...]string{
	ModButtonMerge:            "MERGE",
	ModButtonAddParticipant:   "ADD_PARTICIPANT",
	ModButtonRecord:           "RECORD",
	ModButtonTransfer:         "TRANSFER",
	ModButtonManageConference: "MANAGE_CONFERENCE",
}

func (b ModButton) String() string {
	if b >= 0 && int(b) < len(modButtonNames) {
		return modButtonNames[b]
	}
	return fmt.Sprintf("ModButton(%d)", int(b))
}

// ModButtonUI контракт дополнительных кнопок
type ModButtonUI interface {
	SetEnabled(enabled bool)
	ShowButton(b ModButton, show bool)
	SetRecording(on bool)
	DisplayManageConference(show bool)
}

// ModButtonPresenter управляет дополнительными кнопками: конференция,
// запись и перевод вызова.
type ModButtonPresenter struct {
	ui.Presenter[ModButtonUI]

	incall   *incall.Presenter
	calls    *calllist.CallList
	commands telecom.Commands
	settings Settings
	logger   *slog.Logger

	call      *call.Call
	recording map[string]bool
}

var (
	_ incall.StateListener        = (*ModButtonPresenter)(nil)
	_ incall.IncomingCallListener = (*ModButtonPresenter)(nil)
	_ incall.DetailsListener      = (*ModButtonPresenter)(nil)
)

// NewModButtonPresenter создает презентер дополнительных кнопок
func NewModButtonPresenter(ic *incall.Presenter, calls *calllist.CallList, commands telecom.Commands,
	settings Settings, logger *slog.Logger) *ModButtonPresenter {
	if settings == nil {
		settings = StaticSettings{Provisioned: true}
	}
	return &ModButtonPresenter{
		incall:    ic,
		calls:     calls,
		commands:  commands,
		settings:  settings,
		logger:    componentLogger(logger, "mod_button_presenter"),
		recording: make(map[string]bool),
	}
}

// OnUiReady подписка на события
func (p *ModButtonPresenter) OnUiReady(u ModButtonUI) {
	p.Presenter.OnUiReady(u)
	p.incall.AddStateListener(p)
	p.incall.AddIncomingCallListener(p)
	p.incall.AddDetailsListener(p)
	p.OnStateChange(incall.StateNoCalls, p.incall.State(), p.calls)
}

// OnUiUnready экран ушел
func (p *ModButtonPresenter) OnUiUnready(u ModButtonUI) {
	p.incall.RemoveStateListener(p)
	p.incall.RemoveIncomingCallListener(p)
	p.incall.RemoveDetailsListener(p)
	p.Presenter.OnUiUnready(u)
}

// OnStateChange выбор вызова для кнопок
func (p *ModButtonPresenter) OnStateChange(_, newState incall.InCallState, list *calllist.CallList) {
	switch {
	case list == nil:
		p.call = nil
	case newState == incall.StateOutgoing:
		p.call = list.OutgoingCall()
	case newState == incall.StateInCall:
		p.call = list.ActiveOrBackgroundCall()
	case newState == incall.StateIncoming:
		p.call = list.IncomingCall()
	default:
		p.call = nil
	}
	if newState == incall.StateNoCalls {
		clear(p.recording)
	}

	u, ok := p.UI()
	if !ok {
		return
	}
	u.SetEnabled(newState.IsConnectingOrConnected() && !newState.IsIncoming() && p.call != nil)
	if p.call != nil {
		p.updateButtons(p.call)
	}
}

// OnIncomingCall то же что смена состояния
func (p *ModButtonPresenter) OnIncomingCall(oldState, newState incall.InCallState, _ *call.Call) {
	p.OnStateChange(oldState, newState, p.calls)
}

// OnDetailsChanged обновление только для текущего вызова
func (p *ModButtonPresenter) OnDetailsChanged(c *call.Call) {
	if c == nil || p.call == nil || c.ID != p.call.ID {
		return
	}
	p.call = c
	p.updateButtons(c)
}

// MergeClicked объединение в конференцию
func (p *ModButtonPresenter) MergeClicked() {
	if p.call == nil {
		return
	}
	p.commands.Merge(p.call.ID)
}

// AddParticipantClicked добавление участника открывает набор номера
func (p *ModButtonPresenter) AddParticipantClicked() {
	if p.call == nil {
		return
	}
	p.logger.Info("Добавление участника", slog.String("call_id", p.call.ID))
	p.commands.AddCall()
}

// canRecord запись включена в настройках и поддерживается платформой
func (p *ModButtonPresenter) canRecord() bool {
	return p.settings.CallRecordingEnabled() && p.commands.CanRecord()
}

// RecordClicked включает или выключает запись текущего вызова.
// Без поддержки записи нажатие игнорируется.
func (p *ModButtonPresenter) RecordClicked() {
	if p.call == nil {
		return
	}
	if !p.recording[p.call.ID] && !p.canRecord() {
		p.logger.Warn("Запись вызова недоступна", slog.String("call_id", p.call.ID))
		return
	}
	id := p.call.ID
	on := !p.recording[id]
	if on {
		p.commands.StartRecording(id)
	} else {
		p.commands.StopRecording(id)
	}
	p.recording[id] = on
	p.logger.Info("Запись вызова", slog.String("call_id", id), slog.Bool("on", on))
	if u, ok := p.UI(); ok {
		u.SetRecording(on)
	}
}

// IsRecording идет ли запись вызова
func (p *ModButtonPresenter) IsRecording(callID string) bool {
	return p.recording[callID]
}

// TransferClicked перевод вызова на target
func (p *ModButtonPresenter) TransferClicked(target string) {
	if p.call == nil || target == "" {
		return
	}
	p.logger.Info("Перевод вызова",
		slog.String("call_id", p.call.ID),
		slog.String("target", target))
	p.commands.Transfer(p.call.ID, target)
}

// ManageConferenceClicked открывает управление конференцией
func (p *ModButtonPresenter) ManageConferenceClicked() {
	if u, ok := p.UI(); ok {
		u.DisplayManageConference(true)
	}
}

func (p *ModButtonPresenter) updateButtons(c *call.Call) {
	u, ok := p.UI()
	if !ok {
		return
	}
	active := c.State == call.StateActive
	u.ShowButton(ModButtonMerge, c.Can(call.CapabilityMergeConference))
	u.ShowButton(ModButtonAddParticipant, active && c.Can(call.CapabilityAddParticipant))
	u.ShowButton(ModButtonRecord, active && !c.IsEmergency && p.canRecord())
	u.ShowButton(ModButtonTransfer, (active || c.State == call.StateOnHold) && c.Can(call.CapabilityTransfer))
	u.ShowButton(ModButtonManageConference, c.IsConference() && c.Can(call.CapabilityManageConference))
	u.SetRecording(p.recording[c.ID])
}
