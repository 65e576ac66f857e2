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

// Button кнопка панели вызова
type Button int

const (
	ButtonAudio Button = iota
	ButtonMute
	ButtonDialpad
	ButtonHold
	ButtonSwap
	ButtonUpgradeToVideo
	ButtonSwitchCamera
	ButtonAddCall
	ButtonMerge
	ButtonPauseVideo
)

var buttonNames = [...]string{
	ButtonAudio:          "AUDIO",
	ButtonMute:           "MUTE",
	ButtonDialpad:        "DIALPAD",
	ButtonHold:           "HOLD",
	ButtonSwap:           "SWAP",
	ButtonUpgradeToVideo: "UPGRADE_TO_VIDEO",
	ButtonSwitchCamera:   "SWITCH_CAMERA",
	ButtonAddCall:        "ADD_CALL",
	ButtonMerge:          "MERGE",
	ButtonPauseVideo:     "PAUSE_VIDEO",
}

func (b Button) String() string {
	if b >= 0 && int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

// Buttons все кнопки панели
func Buttons() []Button {
	out := make([]Button, len(buttonNames))
	for i := range out {
		out[i] = Button(i)
	}
	return out
}

// CallButtonUI контракт панели кнопок
type CallButtonUI interface {
	SetEnabled(enabled bool)
	ShowButton(b Button, show bool)
	EnableButton(b Button, enable bool)
	SetHold(on bool)
	SetMute(on bool)
	SetAudio(route telecom.AudioRoute)
	SetCameraSwitched(backFacing bool)
	SetVideoPaused(paused bool)
	DisplayDialpad(show, animate bool)
	UpdateButtonStates()
}

// CallButtonPresenter управляет панелью кнопок текущего вызова
type CallButtonPresenter struct {
	ui.Presenter[CallButtonUI]

	incall   *incall.Presenter
	calls    *calllist.CallList
	commands telecom.Commands
	audio    incall.AudioModeProvider
	settings Settings
	logger   *slog.Logger

	call *call.Call

	automaticallyMuted bool
	previousMuteState  bool
}

var (
	_ incall.StateListener        = (*CallButtonPresenter)(nil)
	_ incall.IncomingCallListener = (*CallButtonPresenter)(nil)
	_ incall.DetailsListener      = (*CallButtonPresenter)(nil)
	_ incall.CanAddCallListener   = (*CallButtonPresenter)(nil)
	_ incall.UIListener           = (*CallButtonPresenter)(nil)
)

// NewCallButtonPresenter создает презентер панели кнопок
func NewCallButtonPresenter(ic *incall.Presenter, calls *calllist.CallList, commands telecom.Commands,
	audio incall.AudioModeProvider, settings Settings, logger *slog.Logger) *CallButtonPresenter {
	if settings == nil {
		settings = StaticSettings{Provisioned: true}
	}
	return &CallButtonPresenter{
		incall:   ic,
		calls:    calls,
		commands: commands,
		audio:    audio,
		settings: settings,
		logger:   componentLogger(logger, "call_button_presenter"),
	}
}

// OnUiReady подписка на события и немедленное обновление кнопок
func (p *CallButtonPresenter) OnUiReady(u CallButtonUI) {
	p.Presenter.OnUiReady(u)

	p.incall.AddStateListener(p)
	p.incall.AddIncomingCallListener(p)
	p.incall.AddDetailsListener(p)
	p.incall.AddCanAddCallListener(p)
	p.incall.AddUIListener(p)

	p.OnStateChange(incall.StateNoCalls, p.incall.State(), p.calls)
}

// OnUiUnready экран ушел
func (p *CallButtonPresenter) OnUiUnready(u CallButtonUI) {
	p.incall.RemoveStateListener(p)
	p.incall.RemoveIncomingCallListener(p)
	p.incall.RemoveDetailsListener(p)
	p.incall.RemoveCanAddCallListener(p)
	p.incall.RemoveUIListener(p)
	p.Presenter.OnUiUnready(u)
}

// Call вызов, к которому относятся кнопки
func (p *CallButtonPresenter) Call() *call.Call {
	return p.call
}

// OnStateChange выбор вызова для панели по новому состоянию
func (p *CallButtonPresenter) OnStateChange(_, newState incall.InCallState, list *calllist.CallList) {
	u, hasUI := p.UI()

	switch {
	case list == nil:
		p.call = nil
	case newState == incall.StateOutgoing:
		p.call = list.OutgoingCall()
	case newState == incall.StateInCall:
		p.call = list.ActiveOrBackgroundCall()
	case newState == incall.StateIncoming:
		if hasUI {
			u.DisplayDialpad(false, true)
		}
		p.call = list.IncomingCall()
	default:
		p.call = nil
	}
	p.updateUi(newState, p.call)
}

// OnIncomingCall то же что смена состояния
func (p *CallButtonPresenter) OnIncomingCall(oldState, newState incall.InCallState, _ *call.Call) {
	p.OnStateChange(oldState, newState, p.calls)
}

// OnDetailsChanged обновление только для текущего вызова
func (p *CallButtonPresenter) OnDetailsChanged(c *call.Call) {
	if _, ok := p.UI(); !ok || c == nil || p.call == nil || c.ID != p.call.ID {
		return
	}
	p.call = c
	p.updateButtonsState(c)
}

// OnCanAddCallChanged изменилась доступность добавления вызова
func (p *CallButtonPresenter) OnCanAddCallChanged(bool) {
	if _, ok := p.UI(); ok && p.call != nil {
		p.updateButtonsState(p.call)
	}
}

// OnUiShowing при возврате на экран восстанавливаем звук после AddCallClicked
func (p *CallButtonPresenter) OnUiShowing(showing bool) {
	if showing {
		p.refreshMuteState()
	}
}

// SetAudioMode переключает аудио маршрут
func (p *CallButtonPresenter) SetAudioMode(route telecom.AudioRoute) {
	p.logger.Debug("Новый аудио маршрут", slog.String("route", route.String()))
	p.commands.SetAudioRoute(route)
}

// ToggleSpeakerphone громкая связь или обратно на трубку
func (p *CallButtonPresenter) ToggleSpeakerphone() {
	route := telecom.AudioRouteSpeaker
	if p.audio != nil && p.audio.AudioMode() == telecom.AudioRouteSpeaker {
		route = telecom.AudioRouteEarpiece
	}
	p.SetAudioMode(route)
}

// MuteClicked включает или выключает микрофон
func (p *CallButtonPresenter) MuteClicked(checked bool) {
	p.logger.Debug("Микрофон", slog.Bool("mute", checked))
	p.commands.Mute(checked)
	if u, ok := p.UI(); ok && !p.automaticallyMuted {
		u.SetMute(checked)
	}
}

// HoldClicked удержание текущего вызова
func (p *CallButtonPresenter) HoldClicked(checked bool) {
	if p.call == nil {
		return
	}
	if checked {
		p.logger.Info("Вызов на удержание", slog.String("call_id", p.call.ID))
		p.commands.HoldCall(p.call.ID)
		return
	}
	p.logger.Info("Снятие с удержания", slog.String("call_id", p.call.ID))
	p.commands.UnholdCall(p.call.ID)
}

// SwapClicked переключение между вызовами
func (p *CallButtonPresenter) SwapClicked() {
	if p.call == nil {
		return
	}
	p.logger.Info("Переключение вызовов", slog.String("call_id", p.call.ID))
	p.commands.Swap(p.call.ID)
}

// MergeClicked объединение в конференцию
func (p *CallButtonPresenter) MergeClicked() {
	if p.call == nil {
		return
	}
	p.commands.Merge(p.call.ID)
}

// AddCallClicked выключает микрофон текущего вызова и открывает набор
// нового. Прежнее состояние микрофона вернется при показе экрана.
func (p *CallButtonPresenter) AddCallClicked() {
	p.automaticallyMuted = true
	if p.audio != nil {
		p.previousMuteState = p.audio.Mute()
	}
	p.MuteClicked(true)
	p.commands.AddCall()
}

func (p *CallButtonPresenter) refreshMuteState() {
	if p.automaticallyMuted && p.audio != nil && p.audio.Mute() != p.previousMuteState {
		if _, ok := p.UI(); !ok {
			return
		}
		p.automaticallyMuted = false
		p.MuteClicked(p.previousMuteState)
		return
	}
	p.automaticallyMuted = false
}

// ChangeToVideoClicked запрос перехода к двустороннему видео
func (p *CallButtonPresenter) ChangeToVideoClicked() {
	if p.call == nil {
		return
	}
	target := (p.call.VideoState &^ call.VideoPaused) | call.VideoBidirectional
	p.commands.RequestVideoUpgrade(p.call.ID, target)
	p.calls.SetSessionModificationState(p.call.ID, call.SessionModificationWaitingForResponse)
}

// ChangeToVoiceClicked переход видео вызова в голосовой
func (p *CallButtonPresenter) ChangeToVoiceClicked() {
	if p.call == nil {
		return
	}
	p.commands.RequestVideoUpgrade(p.call.ID, call.VideoAudioOnly)
}

// SwitchCameraClicked выбор камеры
func (p *CallButtonPresenter) SwitchCameraClicked(useFrontFacingCamera bool) {
	if p.call == nil {
		return
	}
	p.commands.SwitchCamera(p.call.ID, useFrontFacingCamera)
	if u, ok := p.UI(); ok {
		u.SetCameraSwitched(!useFrontFacingCamera)
	}
}

// PauseVideoClicked приостановка или возобновление исходящего видео
func (p *CallButtonPresenter) PauseVideoClicked(pause bool) {
	if p.call == nil {
		return
	}
	id := p.call.ID
	p.commands.PauseVideo(id, pause)
	if u, ok := p.UI(); ok {
		u.SetVideoPaused(pause)
	}
	if !pause {
		p.calls.SetSessionModificationState(id, call.SessionModificationWaitingForResponse)
	}
}

// ShowDialpadClicked показ или скрытие клавиатуры
func (p *CallButtonPresenter) ShowDialpadClicked(checked bool) {
	if u, ok := p.UI(); ok {
		u.DisplayDialpad(checked, true)
	}
}

func (p *CallButtonPresenter) updateUi(state incall.InCallState, c *call.Call) {
	u, ok := p.UI()
	if !ok {
		return
	}
	enabled := state.IsConnectingOrConnected() && !state.IsIncoming() && c != nil
	u.SetEnabled(enabled)
	if c == nil {
		return
	}
	p.updateButtonsState(c)
}

func (p *CallButtonPresenter) updateButtonsState(c *call.Call) {
	u, ok := p.UI()
	if !ok {
		return
	}
	isVideo := c.IsVideoCall()

	// Показываем либо HOLD, либо SWAP. Если hold поддерживается, но сейчас
	// недоступен, HOLD виден выключенным.
	showSwap := c.Can(call.CapabilitySwapConference)
	showHold := !showSwap && c.Can(call.CapabilitySupportHold)
	enableHold := showHold && c.Can(call.CapabilityHold)

	showAddCall := p.commands.CanAddCall()
	showMerge := c.Can(call.CapabilityMergeConference)
	showMute := c.Can(call.CapabilityMute)

	u.ShowButton(ButtonAudio, true)
	u.ShowButton(ButtonSwap, showSwap)
	u.ShowButton(ButtonHold, showHold)
	u.EnableButton(ButtonHold, enableHold)
	u.SetHold(c.State == call.StateOnHold)
	u.ShowButton(ButtonMute, showMute)
	u.ShowButton(ButtonAddCall, showAddCall)
	u.ShowButton(ButtonUpgradeToVideo, p.showUpgradeToVideo(c))
	u.ShowButton(ButtonSwitchCamera, isVideo)
	u.ShowButton(ButtonPauseVideo, isVideo)
	u.ShowButton(ButtonDialpad, !isVideo)
	u.ShowButton(ButtonMerge, showMerge)
	if p.audio != nil {
		u.SetAudio(p.audio.AudioMode())
	}

	u.UpdateButtonStates()
}

func (p *CallButtonPresenter) showUpgradeToVideo(c *call.Call) bool {
	if c.VideoState.IsBidirectional() && !p.settings.VideoUpgradeExtended() {
		return false
	}
	renegotiable := c.Can(call.CapabilitySupportsVT) ||
		c.Can(call.CapabilitySupportsDowngradeToVoice) ||
		p.settings.AlternateCallProviders() > 0
	if !renegotiable {
		return false
	}
	if c.State != call.StateActive && c.State != call.StateOnHold {
		return false
	}
	return p.settings.DeviceProvisioned()
}
