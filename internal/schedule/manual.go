package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic scheduler driven by Advance. Tasks run synchronously on the
// goroutine calling Advance, in due-time order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m        *Manual
	seq      int
	period   time.Duration
	next     time.Duration
	fn       Task
	canceled bool
}

// NewManual returns a scheduler at virtual time zero.
func NewManual() *Manual { return &Manual{} }

// Every registers fn; the first run is one period from now.
func (m *Manual) Every(period time.Duration, fn Task) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, seq: m.seq, period: period, next: m.now + period, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTask) Cancel() {
	t.m.mu.Lock()
	t.canceled = true
	t.m.mu.Unlock()
}

// Advance moves virtual time forward by d, firing every due task.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		due := m.nextDue(target)
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next += due.period
		fn := due.fn
		m.mu.Unlock()

		if !fn() {
			due.Cancel()
		}
	}
}

// Tick advances by one second, the period of timer accrual.
func (m *Manual) Tick(n int) {
	for i := 0; i < n; i++ {
		m.Advance(time.Second)
	}
}

// Pending reports how many tasks are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Duration) *manualTask {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	m.tasks = live
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].next != m.tasks[j].next {
			return m.tasks[i].next < m.tasks[j].next
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
	if len(m.tasks) == 0 || m.tasks[0].next > target {
		return nil
	}
	return m.tasks[0]
}
