package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue holds timers sorted by WakeTime. It is owned by a single control
// loop and is not safe for concurrent use.
type TimerQueue struct {
	list *Timer
}

// Schedule adds a timer to the queue
func (q *TimerQueue) Schedule(t *Timer) {
	t.Next = nil
	q.insert(t)
}

// insert inserts a timer in sorted order by WakeTime
func (q *TimerQueue) insert(t *Timer) {
	if q.list == nil || int32(t.WakeTime-q.list.WakeTime) < 0 {
		t.Next = q.list
		q.list = t
		return
	}

	current := q.list
	for current.Next != nil && int32(current.Next.WakeTime-t.WakeTime) <= 0 {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Cancel removes a timer from the queue. Returns false if it was not queued.
func (q *TimerQueue) Cancel(t *Timer) bool {
	if q.list == t {
		q.list = t.Next
		t.Next = nil
		return true
	}
	for current := q.list; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// Len returns the number of queued timers
func (q *TimerQueue) Len() int {
	n := 0
	for current := q.list; current != nil; current = current.Next {
		n++
	}
	return n
}

// NextWake returns the wake time of the earliest timer
func (q *TimerQueue) NextWake() (uint32, bool) {
	if q.list == nil {
		return 0, false
	}
	return q.list.WakeTime, true
}

// Dispatch runs every timer that is due at now and returns how many fired.
// Timers rescheduled by their handler are only run again on a later Dispatch,
// so a handler that reschedules into the past cannot stall the loop.
func (q *TimerQueue) Dispatch(now uint32) int {
	// Detach the due prefix first
	var due *Timer
	var tail *Timer
	for q.list != nil && TimeReached(now, q.list.WakeTime) {
		t := q.list
		q.list = t.Next
		t.Next = nil
		if tail == nil {
			due = t
		} else {
			tail.Next = t
		}
		tail = t
	}

	fired := 0
	for due != nil {
		t := due
		due = t.Next
		t.Next = nil

		fired++
		if t.Handler(t) == SF_RESCHEDULE {
			q.insert(t)
		}
	}
	return fired
}

// Periodic returns a handler that calls fn and reschedules every interval ticks.
// If the loop fell behind by more than one interval the next wake is realigned
// to now+interval rather than firing a burst of catch-up calls.
func Periodic(interval uint32, fn func(now uint32)) func(*Timer) uint8 {
	return func(t *Timer) uint8 {
		now := GetTime()
		fn(now)
		t.WakeTime += interval
		if TimeReached(now, t.WakeTime) {
			RecordTiming(EvtTickLate, 0, now, t.WakeTime, interval)
			t.WakeTime = now + interval
		}
		return SF_RESCHEDULE
	}
}
