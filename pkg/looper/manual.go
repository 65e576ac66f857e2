package looper

import (
	"sort"
	"sync"
	"time"
)

// Manual планировщик с управляемым временем для тестов.
//
// Post выполняет задачу сразу на горутине вызывающего (или после текущей
// задачи, если вызов пришел изнутри задачи). Отложенные задачи, в том числе
// с нулевой задержкой, выполняются только при Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	timed   []*manualTask
	queue   []func()
	running bool
}

type manualTask struct {
	due       time.Time
	seq       uint64
	fn        func()
	cancelled bool
	ran       bool
	owner     *Manual
}

// NewManual создает планировщик с временем start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Post ставит задачу в очередь и сразу ее выполняет
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.drain()
}

func (m *Manual) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.running = false
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

// PostDelayed регистрирует задачу, срок которой наступит через d
func (m *Manual) PostDelayed(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{due: m.now.Add(d), seq: m.seq, fn: fn, owner: m}
	m.timed = append(m.timed, t)
	sort.SliceStable(m.timed, func(i, j int) bool {
		if m.timed[i].due.Equal(m.timed[j].due) {
			return m.timed[i].seq < m.timed[j].seq
		}
		return m.timed[i].due.Before(m.timed[j].due)
	})
	return t
}

// Now возвращает текущее виртуальное время
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance сдвигает время на d и выполняет все задачи, срок которых наступил,
// в порядке сроков. Задачи, поставленные во время Advance, тоже учитываются.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.timed) == 0 || m.timed[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := m.timed[0]
		m.timed = m.timed[1:]
		if t.due.After(m.now) {
			m.now = t.due
		}
		if t.cancelled {
			m.mu.Unlock()
			continue
		}
		t.ran = true
		m.mu.Unlock()

		m.Post(t.fn)
	}
}

// Pending возвращает количество ожидающих отложенных задач
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timed {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (t *manualTask) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.ran || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}
