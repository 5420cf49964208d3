package trigger

import (
	"sort"
	"time"
)

// task is a deferred display update belonging to one display epoch.
type task struct {
	due   time.Time
	epoch uint64
	seq   uint64
	name  string
	fn    func()
}

// schedule holds deferred tasks ordered by due time. It is polled by the
// owning Machine, so tasks run on the caller's goroutine.
type schedule struct {
	tasks []task
	seq   uint64
}

func (s *schedule) add(due time.Time, epoch uint64, name string, fn func()) {
	s.seq++
	s.tasks = append(s.tasks, task{due: due, epoch: epoch, seq: s.seq, name: name, fn: fn})
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].due.Equal(s.tasks[j].due) {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].due.Before(s.tasks[j].due)
	})
}

// cancelBefore drops every task that belongs to an epoch older than epoch.
// It returns the number of dropped tasks.
func (s *schedule) cancelBefore(epoch uint64) int {
	kept := s.tasks[:0]
	dropped := 0
	for _, t := range s.tasks {
		if t.epoch < epoch {
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return dropped
}

// popDue removes and returns the tasks due at or before now, in order.
func (s *schedule) popDue(now time.Time) []task {
	n := 0
	for n < len(s.tasks) && !s.tasks[n].due.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]task, n)
	copy(due, s.tasks[:n])
	s.tasks = append(s.tasks[:0], s.tasks[n:]...)
	return due
}

func (s *schedule) len() int {
	return len(s.tasks)
}
