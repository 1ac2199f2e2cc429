package runtimeabi

import (
	"sync"
	"time"
)

// Task is the runtime representation of a spawned lightweight thread,
// backing __pluto_spawn/task_get/task_detach/task_cancel. It wraps a Go
// goroutine; TaskGet/TaskCancel follow the same
// "background goroutine reporting through a buffered channel" shape the
// teacher's eval harness uses to run a subprocess with a timeout, adapted
// here to a cooperative cancellation signal instead of a process kill.
type Task struct {
	result   chan Ref
	cancel   chan struct{}
	canceled bool
	mu       sync.Mutex
}

// Spawn mirrors __pluto_spawn: runs thunk(arg) on its own goroutine with
// its own TaskContext (a fresh, zeroed error slot, per the ABI's TLS
// initialization note) sharing rt's heap, and returns a handle the caller
// can block on with TaskGet.
func (rt *Runtime) Spawn(thunk func(tc *TaskContext, arg Ref) Ref, arg Ref) *Task {
	t := &Task{
		result: make(chan Ref, 1),
		cancel: make(chan struct{}),
	}
	go func() {
		tc := NewTaskContext(rt)
		select {
		case <-t.cancel:
			return
		default:
		}
		t.result <- thunk(tc, arg)
	}()
	return t
}

// TaskGet mirrors __pluto_task_get: blocks until the spawned thunk
// returns and yields its result.
func (t *Task) TaskGet() Ref {
	return <-t.result
}

// TaskGetTimeout mirrors __pluto_task_get_timeout: waits up to the given
// number of milliseconds for the spawned thunk to finish, raising
// TaskTimeout onto tc's error slot and returning the zero Ref on expiry.
// The retry/backoff policy for .get_timeout is left undefined by the
// language's source docs; this runtime makes the simplest choice that
// satisfies the contract — a single fixed-duration wait, no retry or
// poll loop, since __pluto_task_get_timeout is a one-shot wait rather
// than a recurring check.
func (t *Task) TaskGetTimeout(tc *TaskContext, ms int) Ref {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case v := <-t.result:
		return v
	case <-timer.C:
		tc.RaiseError(&Object{Class: "TaskTimeout"})
		return 0
	}
}

// TaskDetach mirrors __pluto_task_detach: the caller no longer intends to
// call TaskGet. The goroutine still runs to completion; its result is
// simply left unread in the buffered channel.
func (t *Task) TaskDetach() {}

// TaskCancel mirrors __pluto_task_cancel: a best-effort, cooperative
// signal. A thunk already running past its cancellation check completes
// normally; Pluto's spawn contract documents cancellation as advisory,
// not preemptive.
func (t *Task) TaskCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return
	}
	t.canceled = true
	close(t.cancel)
}

// Channel is the runtime representation backing __pluto_chan_*. Send and
// Recv are fallible: a close races with a blocked send/recv, mirroring
// the ABI's documentation of both as fallible operations.
type Channel struct {
	data   chan Ref
	closed chan struct{}
	once   sync.Once
}

// ChanNew mirrors __pluto_chan_new.
func (rt *Runtime) ChanNew(capacity int) *Channel {
	return &Channel{
		data:   make(chan Ref, capacity),
		closed: make(chan struct{}),
	}
}

// ChanSend mirrors __pluto_chan_send. It raises onto tc's error slot and
// returns false if the channel is already closed.
func (c *Channel) ChanSend(tc *TaskContext, val Ref) bool {
	select {
	case <-c.closed:
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return false
	default:
	}
	select {
	case c.data <- val:
		return true
	case <-c.closed:
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return false
	}
}

// ChanRecv mirrors __pluto_chan_recv. It raises onto tc's error slot and
// returns the zero Ref if the channel is closed and drained.
func (c *Channel) ChanRecv(tc *TaskContext) Ref {
	select {
	case v, ok := <-c.data:
		if !ok {
			tc.RaiseError(&Object{Class: "ChannelClosedError"})
			return 0
		}
		return v
	case <-c.closed:
		select {
		case v, ok := <-c.data:
			if ok {
				return v
			}
		default:
		}
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return 0
	}
}

// ChanTrySend mirrors __pluto_chan_try_send: a non-blocking send. It
// raises ChannelFullError and returns false if the channel has no
// buffer space ready to accept val without blocking, or
// ChannelClosedError if the channel is already closed.
func (c *Channel) ChanTrySend(tc *TaskContext, val Ref) bool {
	select {
	case <-c.closed:
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return false
	default:
	}
	select {
	case c.data <- val:
		return true
	case <-c.closed:
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return false
	default:
		tc.RaiseError(&Object{Class: "ChannelFullError"})
		return false
	}
}

// ChanTryRecv mirrors __pluto_chan_try_recv: a non-blocking receive. It
// raises ChannelEmptyError and returns the zero Ref if no value is
// immediately available, or ChannelClosedError if the channel is closed
// and drained.
func (c *Channel) ChanTryRecv(tc *TaskContext) Ref {
	select {
	case v, ok := <-c.data:
		if !ok {
			tc.RaiseError(&Object{Class: "ChannelClosedError"})
			return 0
		}
		return v
	default:
	}
	select {
	case <-c.closed:
		tc.RaiseError(&Object{Class: "ChannelClosedError"})
		return 0
	default:
		tc.RaiseError(&Object{Class: "ChannelEmptyError"})
		return 0
	}
}

// ChanClose mirrors __pluto_chan_close. Closing twice is a no-op, not an
// error: the close is guarded by a sync.Once. Only the closed signal is
// closed, so a send racing with the close raises instead of panicking.
func (c *Channel) ChanClose() {
	c.once.Do(func() {
		close(c.closed)
	})
}
