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

// TargetSet набор действий на экране ответа
type TargetSet int

const (
	TargetSetVideoWithSms TargetSet = iota
	TargetSetVideoWithoutSms
	TargetSetAudioWithSms
	TargetSetAudioWithoutSms
	TargetSetVideoUpgradeRequest
)

var targetSetNames = map[TargetSet]string{
	TargetSetVideoWithSms:        "VIDEO_WITH_SMS",
	TargetSetVideoWithoutSms:     "VIDEO_WITHOUT_SMS",
	TargetSetAudioWithSms:        "AUDIO_WITH_SMS",
	TargetSetAudioWithoutSms:     "AUDIO_WITHOUT_SMS",
	TargetSetVideoUpgradeRequest: "VIDEO_UPGRADE_REQUEST",
}

func (t TargetSet) String() string {
	if name, ok := targetSetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TargetSet(%d)", int(t))
}

// AnswerUI контракт экрана ответа
type AnswerUI interface {
	OnShowAnswerUi(shown bool)
	// ShowTargets videoState для набора апгрейда содержит запрошенное состояние
	ShowTargets(set TargetSet, videoState call.VideoState)
	ShowMessageDialog()
	ConfigureMessageDialog(textResponses []string)
}

// AnswerPresenter управляет экраном ответа на входящий вызов и на запрос
// перехода к видео. Отслеживает по одному вызову на слот подписки.
type AnswerPresenter struct {
	ui.Presenter[AnswerUI]

	incall   *incall.Presenter
	calls    *calllist.CallList
	commands telecom.Commands
	logger   *slog.Logger

	callIDs         []string
	hasTextMessages bool
}

var (
	_ incall.IncomingCallListener     = (*AnswerPresenter)(nil)
	_ incall.UIListener               = (*AnswerPresenter)(nil)
	_ calllist.CallUpdateListener     = (*AnswerPresenter)(nil)
	_ calllist.UpgradeToVideoListener = (*AnswerPresenter)(nil)
)

// NewAnswerPresenter создает презентер экрана ответа
func NewAnswerPresenter(ic *incall.Presenter, calls *calllist.CallList, commands telecom.Commands, logger *slog.Logger) *AnswerPresenter {
	return &AnswerPresenter{
		incall:   ic,
		calls:    calls,
		commands: commands,
		logger:   componentLogger(logger, "answer_presenter"),
		callIDs:  make([]string, calls.Policy().SlotCount()),
	}
}

// OnUiReady экран готов: сразу показываем ожидающий входящий или запрос видео
func (p *AnswerPresenter) OnUiReady(u AnswerUI) {
	p.Presenter.OnUiReady(u)

	if c := p.calls.IncomingCall(); c != nil {
		p.processIncomingCall(c)
	}
	if c := p.calls.VideoUpgradeRequestCall(); c != nil {
		p.processVideoUpgradeRequestCall(c)
	}

	p.calls.AddListener(p)
	p.incall.AddIncomingCallListener(p)
	p.incall.AddUIListener(p)
}

// OnUiUnready экран ушел
func (p *AnswerPresenter) OnUiUnready(u AnswerUI) {
	p.calls.RemoveListener(p)
	p.incall.RemoveIncomingCallListener(p)
	p.incall.RemoveUIListener(p)
	p.stopListening()
	p.Presenter.OnUiUnready(u)
}

// OnUiShowing экран может быть уничтожен при живом входящем, поэтому при
// скрытии снимаем подписки, а при показе восстанавливаем.
func (p *AnswerPresenter) OnUiShowing(showing bool) {
	if !showing {
		p.stopListening()
		return
	}
	if c := p.calls.IncomingCall(); c != nil {
		p.processIncomingCall(c)
	}
	if c := p.calls.VideoUpgradeRequestCall(); c != nil {
		p.processVideoUpgradeRequestCall(c)
	}
}

// OnIncomingCall новый входящий отменяет ожидающий запрос перехода к видео
func (p *AnswerPresenter) OnIncomingCall(_, _ incall.InCallState, c *call.Call) {
	if c == nil {
		return
	}
	if modify := p.calls.VideoUpgradeRequestCall(); modify != nil {
		p.showAnswerUi(false)
		p.logger.Info("Запрос видео отклонен из-за входящего вызова",
			slog.String("call_id", modify.ID))
		p.calls.RemoveCallUpdateListener(modify.ID, p)
		p.incall.DeclineUpgradeRequest()
	}
	if p.callIDs[p.slot(c.SubscriptionID)] != c.ID {
		p.processIncomingCall(c)
	}
}

// OnUpgradeToVideo запрос собеседника на видео. При входящем вызове
// запрос отклоняется.
func (p *AnswerPresenter) OnUpgradeToVideo(c *call.Call) {
	if _, ok := p.UI(); !ok || c == nil {
		return
	}
	if !isVideoUpgradePending(c) {
		return
	}
	if p.incall.State() == incall.StateIncoming {
		p.logger.Info("Запрос видео отклонен: есть входящий вызов",
			slog.String("call_id", c.ID))
		p.incall.DeclineUpgradeRequest()
		return
	}
	p.processVideoUpgradeRequestCall(c)
}

// OnCallChanged изменения отслеживаемого вызова
func (p *AnswerPresenter) OnCallChanged(c *call.Call) {
	if c.State.IsIncoming() {
		if !p.hasTextMessages {
			if texts := p.calls.TextResponses(c.ID); texts != nil {
				p.configureAnswerTargetsForSms(c, texts)
			}
		}
		return
	}

	pending := isVideoUpgradePending(c)
	if !pending {
		p.untrack(c)
	}
	p.showAnswerUi(p.calls.IncomingCall() != nil || pending)
	p.hasTextMessages = false
}

// OnAnswer ответ на входящий вызов или принятие запроса видео
func (p *AnswerPresenter) OnAnswer(videoState call.VideoState) {
	c := p.trackedCall()
	if c == nil {
		return
	}
	if isVideoUpgradePending(c) {
		p.incall.AcceptUpgradeRequest(videoState)
		return
	}
	p.logger.Info("Ответ на вызов",
		slog.String("call_id", c.ID),
		slog.String("video_state", videoState.String()))
	p.commands.AnswerCall(c.ID, videoState)
}

// OnDecline отклонение входящего вызова или запроса видео
func (p *AnswerPresenter) OnDecline() {
	c := p.trackedCall()
	if c == nil {
		return
	}
	if isVideoUpgradePending(c) {
		p.incall.DeclineUpgradeRequest()
		return
	}
	p.logger.Info("Вызов отклонен", slog.String("call_id", c.ID))
	p.commands.RejectCall(c.ID, false, "")
}

// OnText пользователь выбрал ответ сообщением
func (p *AnswerPresenter) OnText() {
	if u, ok := p.UI(); ok {
		u.ShowMessageDialog()
	}
}

// RejectCallWithMessage отклоняет вызов с текстом. CallList не меняется:
// результат придет от телефонного адаптера.
func (p *AnswerPresenter) RejectCallWithMessage(message string) {
	c := p.trackedCall()
	if c == nil {
		p.logger.Warn("Нет отслеживаемого вызова для ответа сообщением")
		return
	}
	p.logger.Info("Вызов отклонен с сообщением", slog.String("call_id", c.ID))
	p.commands.RejectCall(c.ID, true, message)
	p.OnDismissDialog()
}

// OnDismissDialog диалог выбора сообщения закрыт
func (p *AnswerPresenter) OnDismissDialog() {
	p.incall.OnDismissDialog()
}

func (p *AnswerPresenter) processIncomingCall(c *call.Call) {
	p.track(c)
	p.logger.Debug("Показ входящего", slog.String("call_id", c.ID))
	if p.showAnswerUi(true) {
		p.configureAnswerTargetsForSms(c, p.calls.TextResponses(c.ID))
	}
}

func (p *AnswerPresenter) processVideoUpgradeRequestCall(c *call.Call) {
	p.track(c)

	if c.VideoState == c.ModifyToVideoState {
		p.logger.Warn("Запрошенное видео состояние совпадает с текущим",
			slog.String("call_id", c.ID))
		return
	}
	u, ok := p.UI()
	if !ok {
		p.logger.Error("Нет экрана для запроса видео", slog.String("call_id", c.ID))
		return
	}
	p.showAnswerUi(true)
	u.ShowTargets(TargetSetVideoUpgradeRequest, c.ModifyToVideoState)
}

func (p *AnswerPresenter) configureAnswerTargetsForSms(c *call.Call, texts []string) {
	u, ok := p.UI()
	if !ok {
		return
	}
	p.hasTextMessages = texts != nil
	withSms := c.Can(call.CapabilityRespondViaText) && p.hasTextMessages

	var set TargetSet
	switch {
	case c.IsVideoCall() && withSms:
		set = TargetSetVideoWithSms
	case c.IsVideoCall():
		set = TargetSetVideoWithoutSms
	case withSms:
		set = TargetSetAudioWithSms
	default:
		set = TargetSetAudioWithoutSms
	}
	u.ShowTargets(set, c.VideoState)
	if withSms {
		u.ConfigureMessageDialog(texts)
	}
}

// showAnswerUi возвращает false если экрана вызова нет
func (p *AnswerPresenter) showAnswerUi(show bool) bool {
	if !p.incall.HasActivity() {
		return false
	}
	if u, ok := p.UI(); ok {
		u.OnShowAnswerUi(show)
	}
	return true
}

func (p *AnswerPresenter) slot(subID int64) int {
	slot := p.calls.Policy().Slot(subID)
	if slot < 0 || slot >= len(p.callIDs) {
		return 0
	}
	return slot
}

func (p *AnswerPresenter) track(c *call.Call) {
	slot := p.slot(c.SubscriptionID)
	if prev := p.callIDs[slot]; prev != "" && prev != c.ID {
		p.calls.RemoveCallUpdateListener(prev, p)
	}
	p.callIDs[slot] = c.ID
	p.calls.AddCallUpdateListener(c.ID, p)
}

func (p *AnswerPresenter) untrack(c *call.Call) {
	p.calls.RemoveCallUpdateListener(c.ID, p)
	slot := p.slot(c.SubscriptionID)
	if p.callIDs[slot] == c.ID {
		p.callIDs[slot] = ""
	}
}

func (p *AnswerPresenter) stopListening() {
	for _, id := range p.callIDs {
		if id != "" {
			p.calls.RemoveCallUpdateListener(id, p)
		}
	}
}

// trackedCall вызов слота активной подписки
func (p *AnswerPresenter) trackedCall() *call.Call {
	id := p.callIDs[p.slot(p.calls.ActiveSubscription())]
	if id == "" {
		return nil
	}
	return p.calls.CallByID(id)
}

func isVideoUpgradePending(c *call.Call) bool {
	return c.SessionModificationState == call.SessionModificationReceivedUpgradeToVideoRequest
}
