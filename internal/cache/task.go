package cache

import (
	"sync"
	"time"
)

// Task runs a function on a fixed interval until stopped.
type Task struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartTask runs fn every interval on its own goroutine. A non-positive interval returns nil,
// and a nil *Task is valid to Stop.
func StartTask(interval time.Duration, fn func()) *Task {
	if interval <= 0 {
		return nil
	}

	t := &Task{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// stop wins when both are ready
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for a running invocation to return.
// fn never starts after Stop returns. Must not be called from fn itself.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
