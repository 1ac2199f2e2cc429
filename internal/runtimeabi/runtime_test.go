package runtimeabi

import (
	"bytes"
	"testing"
)

func TestStringConcat(t *testing.T) {
	rt := NewRuntime()
	a := rt.StringNew([]byte("foo"))
	b := rt.StringNew([]byte("bar"))
	got := rt.StringConcat(a, b)
	if rt.Display(got) != "foobar" {
		t.Fatalf("StringConcat = %q, want foobar", rt.Display(got))
	}
}

func TestArrayPushGetLen(t *testing.T) {
	rt := NewRuntime()
	arr := rt.ArrayNew(8, 0)
	for i := 0; i < 3; i++ {
		rt.ArrayPush(arr, rt.StringNew([]byte{byte('a' + i)}))
	}
	if got := rt.ArrayLen(arr); got != 3 {
		t.Fatalf("ArrayLen = %d, want 3", got)
	}
	if got := rt.Display(rt.ArrayGet(arr, 1)); got != "b" {
		t.Fatalf("ArrayGet(1) = %q, want b", got)
	}
}

func TestArrayGetOutOfRangeReturnsZeroRef(t *testing.T) {
	rt := NewRuntime()
	arr := rt.ArrayNew(8, 0)
	if got := rt.ArrayGet(arr, 5); got != 0 {
		t.Fatalf("ArrayGet out of range = %v, want zero Ref", got)
	}
}

func TestMapSetGet(t *testing.T) {
	rt := NewRuntime()
	m := rt.MapNew()
	key := rt.StringNew([]byte("k"))
	val := rt.StringNew([]byte("v"))
	rt.MapSet(m, key, val)
	if got := rt.MapGet(m, key); got != val {
		t.Fatalf("MapGet = %v, want %v", got, val)
	}
}

func TestSetAddContains(t *testing.T) {
	rt := NewRuntime()
	s := rt.SetNew()
	elem := rt.StringNew([]byte("x"))
	if rt.SetContains(s, elem) {
		t.Fatal("SetContains on empty set returned true")
	}
	rt.SetAdd(s, elem)
	if !rt.SetContains(s, elem) {
		t.Fatal("SetContains after SetAdd returned false")
	}
}

func TestErrorSlotRaiseHasClear(t *testing.T) {
	rt := NewRuntime()
	tc := NewTaskContext(rt)
	if tc.HasError() {
		t.Fatal("fresh TaskContext has error set")
	}
	tc.RaiseError(&Object{Class: "NotFoundError"})
	if !tc.HasError() {
		t.Fatal("HasError false after RaiseError")
	}
	if got := tc.GetError(); got.Class != "NotFoundError" {
		t.Fatalf("GetError().Class = %q, want NotFoundError", got.Class)
	}
	tc.ClearError()
	if tc.HasError() {
		t.Fatal("HasError true after ClearError")
	}
}

func TestSpawnTaskGetReturnsThunkResult(t *testing.T) {
	rt := NewRuntime()
	task := rt.Spawn(func(tc *TaskContext, arg Ref) Ref {
		return rt.StringConcat(arg, rt.StringNew([]byte("!")))
	}, rt.StringNew([]byte("hi")))
	if got := rt.Display(task.TaskGet()); got != "hi!" {
		t.Fatalf("TaskGet = %q, want hi!", got)
	}
}

func TestChanSendRecvRoundTrips(t *testing.T) {
	rt := NewRuntime()
	tc := NewTaskContext(rt)
	ch := rt.ChanNew(1)
	val := rt.StringNew([]byte("payload"))
	if ok := ch.ChanSend(tc, val); !ok {
		t.Fatal("ChanSend returned false on open channel")
	}
	got := ch.ChanRecv(tc)
	if got != val {
		t.Fatalf("ChanRecv = %v, want %v", got, val)
	}
}

func TestChanRecvAfterCloseRaises(t *testing.T) {
	rt := NewRuntime()
	tc := NewTaskContext(rt)
	ch := rt.ChanNew(0)
	ch.ChanClose()
	ch.ChanRecv(tc)
	if !tc.HasError() {
		t.Fatal("ChanRecv on closed, drained channel did not raise")
	}
	if got := tc.GetError().Class; got != "ChannelClosedError" {
		t.Fatalf("error class = %q, want ChannelClosedError", got)
	}
}

func TestTaskGetTimeoutExpiresWithTaskTimeout(t *testing.T) {
	rt := NewRuntime()
	block := make(chan struct{})
	task := rt.Spawn(func(tc *TaskContext, arg Ref) Ref {
		<-block
		return arg
	}, Ref(1))
	defer close(block)
	tc := NewTaskContext(rt)
	got := task.TaskGetTimeout(tc, 10)
	if got != 0 {
		t.Fatalf("TaskGetTimeout = %v, want 0 on expiry", got)
	}
	if !tc.HasError() {
		t.Fatal("TaskGetTimeout on an unfinished task did not raise")
	}
	if got := tc.GetError().Class; got != "TaskTimeout" {
		t.Fatalf("error class = %q, want TaskTimeout", got)
	}
}

func TestTaskGetTimeoutReturnsResultBeforeExpiry(t *testing.T) {
	rt := NewRuntime()
	task := rt.Spawn(func(tc *TaskContext, arg Ref) Ref {
		return arg
	}, Ref(42))
	tc := NewTaskContext(rt)
	got := task.TaskGetTimeout(tc, 5000)
	if tc.HasError() {
		t.Fatal("TaskGetTimeout raised on a task that finished in time")
	}
	if got != 42 {
		t.Fatalf("TaskGetTimeout = %v, want 42", got)
	}
}

func TestChanTrySendRaisesChannelFullWhenBufferIsFull(t *testing.T) {
	rt := NewRuntime()
	tc := NewTaskContext(rt)
	ch := rt.ChanNew(1)
	if ok := ch.ChanTrySend(tc, Ref(1)); !ok {
		t.Fatal("first ChanTrySend returned false on an empty buffered channel")
	}
	if ok := ch.ChanTrySend(tc, Ref(2)); ok {
		t.Fatal("second ChanTrySend on a full channel returned true")
	}
	if got := tc.GetError().Class; got != "ChannelFullError" {
		t.Fatalf("error class = %q, want ChannelFullError", got)
	}
}

func TestChanTryRecvRaisesChannelEmptyWhenNothingBuffered(t *testing.T) {
	rt := NewRuntime()
	tc := NewTaskContext(rt)
	ch := rt.ChanNew(1)
	got := ch.ChanTryRecv(tc)
	if got != 0 {
		t.Fatalf("ChanTryRecv on empty channel = %v, want 0", got)
	}
	if got := tc.GetError().Class; got != "ChannelEmptyError" {
		t.Fatalf("error class = %q, want ChannelEmptyError", got)
	}
}

func TestContractAbortPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("ContractAbort did not panic")
		}
		abortErr, ok := r.(*ContractAbortError)
		if !ok {
			t.Fatalf("panic value = %#v, want *ContractAbortError", r)
		}
		if abortErr.Msg != "index out of bounds" {
			t.Fatalf("Msg = %q, want %q", abortErr.Msg, "index out of bounds")
		}
	}()
	ContractAbort("index out of bounds")
}

func TestPrinterWritesDisplayedValue(t *testing.T) {
	rt := NewRuntime()
	var buf bytes.Buffer
	p := &Printer{Out: &buf}
	p.Print(rt.StringNew([]byte("hello")), rt)
	if got := buf.String(); got != "hello\n" {
		t.Fatalf("Print wrote %q, want %q", got, "hello\n")
	}
}
