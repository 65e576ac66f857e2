package presenter

import (
	"log/slog"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/calllist"
	"github.com/arzzra/incallui/pkg/incall"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/telecom"
	"github.com/arzzra/incallui/pkg/ui"
)

// SessionModificationResetDelay через сколько неудачный запрос видео
// сбрасывается в NO_REQUEST
const SessionModificationResetDelay = 3 * time.Second

// CameraDirection выбранная камера
type CameraDirection int

const (
	CameraUnknown CameraDirection = iota
	CameraFront
	CameraBack
)

func (d CameraDirection) String() string {
	switch d {
	case CameraFront:
		return "FRONT"
	case CameraBack:
		return "BACK"
	}
	return "UNKNOWN"
}

// VideoCallUI контракт видео экрана
type VideoCallUI interface {
	ShowVideoViews(showPreview, showIncoming bool)
	HideVideoUi()
	SetPreviewCamera(dir CameraDirection)
	DisplaySessionModificationState(state call.SessionModificationState)
	SetFullScreen(fullScreen bool)
	SetDeviceOrientation(rotation int)
	CleanupSurfaces()
}

// VideoCallPresenter следит за основным вызовом и решает, какие видео
// поверхности показывать.
type VideoCallPresenter struct {
	ui.Presenter[VideoCallUI]

	incall   *incall.Presenter
	calls    *calllist.CallList
	commands telecom.Commands
	sched    looper.Scheduler
	logger   *slog.Logger

	primary    *call.Call
	videoState call.VideoState
	callState  call.State
	videoMode  bool
	camera     CameraDirection
	rotation   int

	displayedModification call.SessionModificationState
	resetTask             looper.Task
}

var (
	_ incall.StateListener        = (*VideoCallPresenter)(nil)
	_ incall.IncomingCallListener = (*VideoCallPresenter)(nil)
	_ incall.OrientationListener  = (*VideoCallPresenter)(nil)
	_ incall.EventListener        = (*VideoCallPresenter)(nil)
	_ calllist.CallUpdateListener = (*VideoCallPresenter)(nil)
)

// NewVideoCallPresenter создает презентер видео
func NewVideoCallPresenter(ic *incall.Presenter, calls *calllist.CallList, commands telecom.Commands,
	sched looper.Scheduler, logger *slog.Logger) *VideoCallPresenter {
	return &VideoCallPresenter{
		incall:   ic,
		calls:    calls,
		commands: commands,
		sched:    sched,
		logger:   componentLogger(logger, "video_call_presenter"),
	}
}

// OnUiReady подписка и немедленная оценка текущего состояния
func (p *VideoCallPresenter) OnUiReady(u VideoCallUI) {
	p.Presenter.OnUiReady(u)

	p.incall.AddStateListener(p)
	p.incall.AddIncomingCallListener(p)
	p.incall.AddOrientationListener(p)
	p.incall.AddEventListener(p)

	p.OnStateChange(incall.StateNoCalls, p.incall.State(), p.calls)
}

// OnUiUnready экран ушел
func (p *VideoCallPresenter) OnUiUnready(u VideoCallUI) {
	p.incall.RemoveStateListener(p)
	p.incall.RemoveIncomingCallListener(p)
	p.incall.RemoveOrientationListener(p)
	p.incall.RemoveEventListener(p)
	if p.primary != nil {
		p.calls.RemoveCallUpdateListener(p.primary.ID, p)
	}
	p.cancelSessionModificationReset()
	p.primary = nil
	p.videoMode = false
	p.displayedModification = call.SessionModificationNoRequest
	p.Presenter.OnUiUnready(u)
}

// IsVideoMode показывается ли видео
func (p *VideoCallPresenter) IsVideoMode() bool {
	return p.videoMode
}

// Primary основной вызов
func (p *VideoCallPresenter) Primary() *call.Call {
	return p.primary
}

// Camera текущая камера
func (p *VideoCallPresenter) Camera() CameraDirection {
	return p.camera
}

// OnStateChange выбор основного вызова
func (p *VideoCallPresenter) OnStateChange(_, newState incall.InCallState, list *calllist.CallList) {
	if newState == incall.StateNoCalls {
		if p.videoMode {
			p.exitVideoMode()
		}
		if u, ok := p.UI(); ok {
			u.CleanupSurfaces()
		}
	}
	if list == nil {
		list = p.calls
	}

	// Ожидающий входящий не заменяет активный видео вызов: решение о
	// полноэкранном режиме принимается по входящему, а камера остается
	// за активным.
	var primary, current *call.Call
	switch newState {
	case incall.StateIncoming:
		primary = list.ActiveCall()
		current = list.IncomingCall()
		if !isActiveVideoCall(primary) {
			primary = current
		}
	case incall.StateOutgoing:
		primary = list.OutgoingCall()
		current = primary
	case incall.StatePendingOutgoing:
		primary = list.PendingOutgoingCall()
		current = primary
	case incall.StateInCall:
		primary = list.ActiveCall()
		current = primary
	}

	if callID(primary) != callID(p.primary) {
		p.onPrimaryCallChanged(primary)
	} else if primary != nil {
		p.primary = primary
		p.checkForVideoStateChange(primary)
		p.checkForCallStateChange(primary)
	}

	if current != nil {
		p.maybeExitFullScreen(current)
	}
}

// OnIncomingCall то же что смена состояния
func (p *VideoCallPresenter) OnIncomingCall(oldState, newState incall.InCallState, _ *call.Call) {
	p.OnStateChange(oldState, newState, p.calls)
}

// OnCallChanged изменения основного вызова
func (p *VideoCallPresenter) OnCallChanged(c *call.Call) {
	if p.primary == nil || c.ID != p.primary.ID {
		return
	}
	p.primary = c
	p.checkForVideoStateChange(c)
	p.checkForCallStateChange(c)
	p.checkForSessionModificationChange(c)
	p.maybeExitFullScreen(c)
}

// OnDeviceOrientationChanged поворот устройства
func (p *VideoCallPresenter) OnDeviceOrientationChanged(rotation int) {
	p.rotation = rotation
	if u, ok := p.UI(); ok {
		u.SetDeviceOrientation(rotation)
	}
}

// OnFullscreenModeChanged полноэкранный режим переключен
func (p *VideoCallPresenter) OnFullscreenModeChanged(fullScreen bool) {
	if u, ok := p.UI(); ok {
		u.SetFullScreen(fullScreen)
	}
}

func (p *VideoCallPresenter) OnSecondaryInfoVisibilityChanged(bool) {}

// OnSurfaceClicked касание видео переключает полноэкранный режим
func (p *VideoCallPresenter) OnSurfaceClicked() {
	if !p.videoMode {
		return
	}
	p.incall.SetFullScreen(!p.incall.IsFullScreen())
}

func (p *VideoCallPresenter) onPrimaryCallChanged(primary *call.Call) {
	if p.primary != nil {
		p.calls.RemoveCallUpdateListener(p.primary.ID, p)
	}
	p.primary = primary
	if primary == nil {
		if p.videoMode {
			p.exitVideoMode()
		}
		return
	}
	p.calls.AddCallUpdateListener(primary.ID, p)

	p.logger.Debug("Новый основной вызов", slog.String("call", primary.String()))
	p.callState = primary.State
	switch {
	case primary.IsVideoCall():
		p.enterVideoMode(primary)
	case p.videoMode:
		p.exitVideoMode()
	}
	p.videoState = primary.VideoState
}

func (p *VideoCallPresenter) checkForVideoStateChange(c *call.Call) {
	if p.videoState == c.VideoState {
		return
	}
	p.updateCameraSelection(c)
	switch {
	case c.IsVideoCall():
		p.enterVideoMode(c)
	case p.videoMode:
		p.exitVideoMode()
	}
	p.videoState = c.VideoState
}

func (p *VideoCallPresenter) checkForCallStateChange(c *call.Call) {
	if p.callState == c.State {
		return
	}
	p.callState = c.State
	if c.IsVideoCall() {
		prev := p.camera
		p.updateCameraSelection(c)
		if prev != p.camera && isActiveVideoCall(c) && p.camera != CameraUnknown {
			p.commands.SwitchCamera(c.ID, p.camera == CameraFront)
		}
	}
	p.showVideoUi(c.VideoState, c.State)
}

// checkForSessionModificationChange показывает статус запроса видео.
// Неудачный запрос через SessionModificationResetDelay сбрасывается.
func (p *VideoCallPresenter) checkForSessionModificationChange(c *call.Call) {
	state := c.SessionModificationState
	if state == p.displayedModification {
		return
	}
	p.displayedModification = state
	if u, ok := p.UI(); ok {
		u.DisplaySessionModificationState(state)
	}

	switch state {
	case call.SessionModificationRequestFailed, call.SessionModificationUpgradeToVideoRequestTimedOut:
		p.scheduleSessionModificationReset(c.ID)
	default:
		// Новый запрос или ответ: отложенный сброс относится к прошлому
		p.cancelSessionModificationReset()
	}
}

func (p *VideoCallPresenter) scheduleSessionModificationReset(id string) {
	p.cancelSessionModificationReset()
	p.resetTask = p.sched.PostDelayed(SessionModificationResetDelay, func() {
		p.resetTask = nil
		p.calls.SetSessionModificationState(id, call.SessionModificationNoRequest)
	})
}

func (p *VideoCallPresenter) cancelSessionModificationReset() {
	if p.resetTask != nil {
		p.resetTask.Cancel()
		p.resetTask = nil
	}
}

func (p *VideoCallPresenter) enterVideoMode(c *call.Call) {
	if _, ok := p.UI(); !ok {
		return
	}
	p.logger.Info("Вход в видео режим",
		slog.String("call_id", c.ID),
		slog.String("video_state", c.VideoState.String()))
	p.showVideoUi(c.VideoState, c.State)
	p.updateCameraSelection(c)
	p.commands.SetDeviceOrientation(c.ID, p.rotation)
	p.videoMode = true
}

func (p *VideoCallPresenter) exitVideoMode() {
	if _, ok := p.UI(); !ok {
		return
	}
	p.logger.Info("Выход из видео режима")
	p.showVideoUi(call.VideoAudioOnly, call.StateActive)
	p.videoMode = false
	p.incall.SetFullScreen(false)
}

func (p *VideoCallPresenter) showVideoUi(videoState call.VideoState, state call.State) {
	u, ok := p.UI()
	if !ok {
		return
	}
	showIncoming := !videoState.IsPaused() && state == call.StateActive
	switch {
	case videoState.IsBidirectional():
		u.ShowVideoViews(true, showIncoming)
	case videoState.IsTransmissionEnabled():
		u.ShowVideoViews(true, false)
	case videoState.IsReceptionEnabled():
		u.ShowVideoViews(false, showIncoming)
	default:
		u.HideVideoUi()
	}
	p.incall.EnableScreenTimeout(videoState.IsAudioOnly())
}

// updateCameraSelection исходящий видео вызов стартует с фронтальной
// камеры, входящий только если передает видео.
func (p *VideoCallPresenter) updateCameraSelection(c *call.Call) {
	dir := CameraUnknown
	switch {
	case c == nil || c.VideoState.IsAudioOnly():
	case c.State.IsDialing() || c.State == call.StateConnecting:
		dir = CameraFront
	case c.State.IsIncoming():
		if c.VideoState.IsTransmissionEnabled() {
			dir = CameraFront
		}
	case c.VideoState.IsTransmissionEnabled():
		dir = p.camera
		if dir == CameraUnknown {
			dir = CameraFront
		}
	}
	p.camera = dir
	if u, ok := p.UI(); ok {
		u.SetPreviewCamera(dir)
	}
}

func (p *VideoCallPresenter) maybeExitFullScreen(c *call.Call) {
	if !c.IsVideoCall() || c.State.IsIncoming() || c.State.IsDialing() {
		p.incall.SetFullScreen(false)
	}
}

func isActiveVideoCall(c *call.Call) bool {
	return c != nil && c.IsVideoCall() && c.State == call.StateActive
}

func callID(c *call.Call) string {
	if c == nil {
		return ""
	}
	return c.ID
}
