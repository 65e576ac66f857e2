package calllist

import (
	"testing"
	"time"

	"github.com/arzzra/incallui/pkg/call"
	"github.com/arzzra/incallui/pkg/looper"
	"github.com/arzzra/incallui/pkg/subscription"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder записывает события всех каналов
type recorder struct {
	incoming   []string
	changes    int
	disconnect []string
	upgrades   []string
	subs       []int64
	updates    []string
}

func (r *recorder) OnIncomingCall(c *call.Call)   { r.incoming = append(r.incoming, c.ID) }
func (r *recorder) OnCallListChange(*CallList)    { r.changes++ }
func (r *recorder) OnDisconnect(c *call.Call)     { r.disconnect = append(r.disconnect, c.ID) }
func (r *recorder) OnUpgradeToVideo(c *call.Call) { r.upgrades = append(r.upgrades, c.ID) }
func (r *recorder) OnActiveSubChanged(sub int64)  { r.subs = append(r.subs, sub) }
func (r *recorder) OnCallChanged(c *call.Call)    { r.updates = append(r.updates, c.ID+":"+c.State.String()) }

// incomingOnly слушает только входящие и завершения
type incomingOnly struct {
	incoming   int
	disconnect int
}

func (l *incomingOnly) OnIncomingCall(*call.Call) { l.incoming++ }
func (l *incomingOnly) OnDisconnect(*call.Call)   { l.disconnect++ }

func newTestList(opts ...Option) (*CallList, *looper.Manual) {
	m := looper.NewManual(time.Unix(0, 0))
	return New(m, subscription.NewSingleSim(1), opts...), m
}

func disconnected(c *call.Call, code call.DisconnectCode) *call.Call {
	c.State = call.StateDisconnected
	c.DisconnectCause = call.NewDisconnectCause(code)
	return c
}

func TestCallList_IncomingNotifiesOnlyIncomingChannel(t *testing.T) {
	l, _ := newTestList()
	r := &recorder{}
	require.True(t, l.AddListener(r))
	assert.Equal(t, 1, r.changes, "новый слушатель сразу получает OnCallListChange")

	a := call.New("a", call.StateIncoming)
	l.OnIncoming(a, []string{"Перезвоню"})

	assert.Equal(t, []string{"a"}, r.incoming)
	assert.Equal(t, 1, r.changes, "общие слушатели не получают новый входящий")
	assert.Same(t, a, l.CallByID("a"))
	assert.Equal(t, []string{"Перезвоню"}, l.TextResponses("a"))
}

func TestCallList_UpdateNotifiesCallAndGenericListeners(t *testing.T) {
	l, _ := newTestList()
	r := &recorder{}
	l.AddListener(r)
	l.AddCallUpdateListener("a", r)

	a := call.New("a", call.StateIncoming)
	l.OnIncoming(a, nil)
	a.State = call.StateActive
	l.OnUpdate(a)

	assert.Equal(t, []string{"a:ACTIVE"}, r.updates)
	assert.Equal(t, 2, r.changes)

	l.RemoveCallUpdateListener("a", r)
	l.OnUpdate(a)
	assert.Len(t, r.updates, 1)
}

func TestCallList_ListenerIsolation(t *testing.T) {
	l, _ := newTestList()
	li := &incomingOnly{}
	require.True(t, l.AddListener(li))

	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	l.OnDisconnect(disconnected(a, call.DisconnectRemote))

	assert.Zero(t, li.incoming, "ACTIVE→DISCONNECTED не должен вызывать OnIncomingCall")
	assert.Equal(t, 1, li.disconnect)
}

func TestCallList_DisconnectDelayTable(t *testing.T) {
	tests := []struct {
		code  call.DisconnectCode
		delay time.Duration
	}{
		{call.DisconnectLocal, 200 * time.Millisecond},
		{call.DisconnectRemote, 2000 * time.Millisecond},
		{call.DisconnectRejected, 0},
		{call.DisconnectMissed, 0},
		{call.DisconnectCanceled, 0},
		{call.DisconnectBusy, 5000 * time.Millisecond},
		{call.DisconnectError, 5000 * time.Millisecond},
		{call.DisconnectUnknown, 5000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.delay, DelayForDisconnect(call.NewDisconnectCause(tt.code)))

			l, m := newTestList()
			a := call.New("a", call.StateActive)
			l.OnUpdate(a)
			l.OnDisconnect(disconnected(a, tt.code))
			require.NotNil(t, l.CallByID("a"), "вызов остается на время задержки")

			if tt.delay > 0 {
				m.Advance(tt.delay - time.Millisecond)
				assert.NotNil(t, l.CallByID("a"))
				m.Advance(time.Millisecond)
			} else {
				m.Advance(0)
			}
			assert.Nil(t, l.CallByID("a"))
			assert.Zero(t, l.Len())
		})
	}
}

func TestCallList_GracePeriodThenVanish(t *testing.T) {
	l, m := newTestList()
	r := &recorder{}
	l.AddListener(r)

	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	l.OnDisconnect(disconnected(a, call.DisconnectRemote))

	m.Advance(1999 * time.Millisecond)
	assert.Same(t, a, l.DisconnectedCall())
	assert.Same(t, a, l.FirstCall())
	assert.False(t, l.HasLiveCall())

	changesBefore := r.changes
	m.Advance(time.Millisecond)
	assert.Nil(t, l.CallByID("a"))
	assert.Nil(t, l.DisconnectedCall())
	assert.Nil(t, l.FirstCall())
	assert.Equal(t, call.StateIdle, a.State)
	assert.Equal(t, changesBefore+1, r.changes, "удаление уведомляет общих слушателей")
}

func TestCallList_DisconnectedUntrackedCallIsNotAdded(t *testing.T) {
	l, m := newTestList()
	r := &recorder{}
	l.AddListener(r)

	l.OnDisconnect(disconnected(call.New("ghost", call.StateActive), call.DisconnectRemote))

	assert.Nil(t, l.CallByID("ghost"))
	assert.Empty(t, r.disconnect)
	assert.Zero(t, m.Pending())
}

func TestCallList_DeadCallRemovedImmediately(t *testing.T) {
	l, _ := newTestList()
	a := call.New("a", call.StateDialing)
	l.OnUpdate(a)
	require.Equal(t, 1, l.Len())

	a.State = call.StateInvalid
	l.OnUpdate(a)
	assert.Zero(t, l.Len())

	l.OnUpdate(call.New("b", call.StateIdle))
	assert.Zero(t, l.Len(), "мертвый вызов не добавляется")
}

func TestCallList_StaleRemovalTimerIsNoop(t *testing.T) {
	l, m := newTestList()
	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	l.OnDisconnect(disconnected(a, call.DisconnectLocal))

	// вызов с тем же ID вернулся до срабатывания таймера
	back := call.New("a", call.StateActive)
	l.OnUpdate(back)
	assert.Zero(t, m.Pending(), "таймер удаления отменен")

	m.Advance(time.Minute)
	assert.Same(t, back, l.CallByID("a"))
	assert.Equal(t, call.StateActive, back.State)
}

func TestCallList_RepeatedDisconnectKeepsFirstTimer(t *testing.T) {
	l, m := newTestList()
	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	l.OnDisconnect(disconnected(a, call.DisconnectLocal))
	m.Advance(100 * time.Millisecond)

	l.OnDisconnect(a)
	assert.Equal(t, 1, m.Pending())

	m.Advance(100 * time.Millisecond)
	assert.Nil(t, l.CallByID("a"))
}

func TestCallList_CallWithStateIsCreationOrdered(t *testing.T) {
	l, _ := newTestList()
	for _, id := range []string{"h1", "x", "h2", "h3"} {
		state := call.StateOnHold
		if id == "x" {
			state = call.StateActive
		}
		l.OnUpdate(call.New(id, state))
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, "h2", l.SecondBackgroundCall().ID)
		assert.Equal(t, "h1", l.BackgroundCall().ID)
		assert.Equal(t, "h3", l.CallWithState(call.StateOnHold, 2).ID)
	}
	assert.Nil(t, l.CallWithState(call.StateOnHold, 3))

	// обновление не меняет позицию
	h1 := l.CallByID("h1")
	l.OnUpdate(h1)
	assert.Equal(t, "h1", l.BackgroundCall().ID)
	assert.Equal(t, []string{"h1", "x", "h2", "h3"}, ids(l.Calls()))
}

func TestCallList_Queries(t *testing.T) {
	l, _ := newTestList()
	assert.Nil(t, l.IncomingCall())
	assert.Nil(t, l.FirstCall())
	assert.False(t, l.HasLiveCall())

	l.OnUpdate(call.New("wait", call.StateCallWaiting))
	assert.Equal(t, "wait", l.IncomingCall().ID)
	l.OnIncoming(call.New("in", call.StateIncoming), nil)
	assert.Equal(t, "in", l.IncomingCall().ID, "INCOMING приоритетнее CALL_WAITING")

	l.OnUpdate(call.New("redial", call.StateRedialing))
	assert.Equal(t, "redial", l.OutgoingCall().ID)
	l.OnUpdate(call.New("dial", call.StateDialing))
	assert.Equal(t, "dial", l.OutgoingCall().ID)

	l.OnUpdate(call.New("conn", call.StateConnecting))
	assert.Equal(t, "conn", l.PendingOutgoingCall().ID)
	l.OnUpdate(call.New("pre", call.StatePreDialWait))
	assert.Equal(t, "pre", l.WaitingForAccountCall().ID)

	l.OnUpdate(call.New("hold", call.StateOnHold))
	assert.Equal(t, "hold", l.ActiveOrBackgroundCall().ID)
	l.OnUpdate(call.New("act", call.StateActive))
	assert.Equal(t, "act", l.ActiveOrBackgroundCall().ID)
	l.OnUpdate(call.New("ending", call.StateDisconnecting))
	assert.Equal(t, "ending", l.DisconnectingCall().ID)

	assert.True(t, l.HasLiveCall())
	assert.Equal(t, "in", l.FirstCall().ID)
}

func TestCallList_UpgradeToVideo(t *testing.T) {
	l, _ := newTestList()
	r := &recorder{}
	l.AddListener(r)

	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	assert.Nil(t, l.VideoUpgradeRequestCall())

	a.SessionModificationState = call.SessionModificationReceivedUpgradeToVideoRequest
	l.OnUpgradeToVideo(a)
	assert.Equal(t, []string{"a"}, r.upgrades)
	assert.Same(t, a, l.VideoUpgradeRequestCall())
}

func TestCallList_SetSessionModificationState(t *testing.T) {
	l, _ := newTestList()
	r := &recorder{}
	l.AddListener(r)

	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	l.AddCallUpdateListener("a", r)
	changes := r.changes

	require.True(t, l.SetSessionModificationState("a", call.SessionModificationWaitingForResponse))
	stored := l.CallByID("a")
	assert.Equal(t, call.SessionModificationWaitingForResponse, stored.SessionModificationState)
	assert.NotSame(t, a, stored)
	assert.Equal(t, call.SessionModificationNoRequest, a.SessionModificationState, "исходный вызов не меняется")
	assert.Equal(t, []string{"a:ACTIVE"}, r.updates)
	assert.Equal(t, changes+1, r.changes)

	assert.False(t, l.SetSessionModificationState("a", call.SessionModificationWaitingForResponse))
	assert.False(t, l.SetSessionModificationState("missing", call.SessionModificationNoRequest))
	assert.Len(t, r.updates, 1)
}

func TestCallList_ClearOnDisconnect(t *testing.T) {
	l, m := newTestList()
	r := &recorder{}
	l.AddListener(r)

	a := call.New("a", call.StateActive)
	b := call.New("b", call.StateOnHold)
	l.OnUpdate(a)
	l.OnUpdate(b)
	changes := r.changes

	l.ClearOnDisconnect()
	assert.Equal(t, changes+1, r.changes)
	assert.Equal(t, call.StateDisconnected, a.State)
	assert.Equal(t, call.DisconnectUnknown, b.DisconnectCause.Code)
	assert.Equal(t, 2, m.Pending())

	m.Advance(LongDisconnectDelay)
	assert.Zero(t, l.Len())
}

func TestCallList_TextResponsesDroppedOnDisconnect(t *testing.T) {
	l, _ := newTestList()
	a := call.New("a", call.StateIncoming)
	l.OnIncoming(a, []string{"Не могу говорить"})
	l.OnUpdate(a)
	assert.NotNil(t, l.TextResponses("a"), "обновление без ответов не стирает их")

	l.OnDisconnect(disconnected(a, call.DisconnectMissed))
	assert.Nil(t, l.TextResponses("a"))
}

func TestCallList_MultiSubscription(t *testing.T) {
	m := looper.NewManual(time.Unix(0, 0))
	l := New(m, subscription.NewDsda(1, 2))
	r := &recorder{}
	l.AddListener(r)
	assert.Equal(t, int64(1), l.ActiveSubscription())

	a := call.New("a", call.StateActive)
	a.SubscriptionID = 1
	l.OnUpdate(a)

	b := call.New("b", call.StateIncoming)
	b.SubscriptionID = 2
	b.IsActiveSub = true
	l.OnIncoming(b, nil)

	assert.Equal(t, int64(2), l.ActiveSubscription())
	assert.Equal(t, []int64{2}, r.subs)
	assert.True(t, l.HasAnyLiveCall(1))
	assert.True(t, l.IsAnyOtherSubActive(2))
	assert.Same(t, b, l.CallWithStateForSub(call.StateIncoming, 0, 2))
	assert.Nil(t, l.CallWithStateForSub(call.StateIncoming, 0, 1))

	l.SetActiveSubscription(2)
	assert.Len(t, r.subs, 1, "без смены нет уведомления")

	l.OnDisconnect(disconnected(b, call.DisconnectRejected))
	assert.False(t, l.HasAnyLiveCall(2))
	assert.True(t, l.SwitchToOtherActiveSub())
	assert.Equal(t, int64(1), l.ActiveSubscription())
	assert.False(t, l.SwitchToOtherActiveSub())
}

func TestCallList_SingleSimNeverSwitches(t *testing.T) {
	l, _ := newTestList()
	a := call.New("a", call.StateActive)
	a.SubscriptionID = 7
	a.IsActiveSub = true
	l.OnUpdate(a)

	assert.Equal(t, int64(1), l.ActiveSubscription())
	assert.False(t, l.IsAnyOtherSubActive(1))
	assert.False(t, l.SwitchToOtherActiveSub())
}

func TestCallList_RemoveListener(t *testing.T) {
	l, _ := newTestList()
	r := &recorder{}
	l.AddListener(r)
	l.RemoveListener(r)

	l.OnIncoming(call.New("a", call.StateIncoming), nil)
	l.OnUpdate(call.New("b", call.StateActive))
	assert.Empty(t, r.incoming)
	assert.Equal(t, 1, r.changes)
	assert.False(t, l.AddListener(struct{}{}))
}

func TestCallList_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	l, m := newTestList(WithMetrics(metrics))

	a := call.New("a", call.StateActive)
	l.OnUpdate(a)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tracked))

	l.OnDisconnect(disconnected(a, call.DisconnectRemote))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.scheduledRemovals.WithLabelValues("REMOTE")))

	m.Advance(MediumDisconnectDelay)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.tracked))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.removed))
}

func ids(calls []*call.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.ID)
	}
	return out
}
