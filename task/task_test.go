package task

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/failure"
)

type fakeButton struct {
	enabled bool
	label   string
}

func newFakeButton(label string) *fakeButton {
	return &fakeButton{enabled: true, label: label}
}

func (b *fakeButton) Enabled() bool           { return b.enabled }
func (b *fakeButton) SetEnabled(enabled bool) { b.enabled = enabled }
func (b *fakeButton) Label() string           { return b.label }
func (b *fakeButton) SetLabel(label string)   { b.label = label }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// startLoop runs a Loop for the lifetime of the test.
func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// goid returns the current goroutine id, parsed from the stack header
// "goroutine N [running]:".
func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	fields := strings.Fields(string(buf))
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(fields[1], 10, 64)
	return id
}

// loopGoroutine returns the id of the goroutine that runs loop callbacks.
func loopGoroutine(t *testing.T, loop *Loop) uint64 {
	t.Helper()
	ids := make(chan uint64, 1)
	loop.Dispatch(func() { ids <- goid() })
	select {
	case id := <-ids:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run the callback")
		return 0
	}
}

func newTestRunner(loop *Loop, metrics *Metrics) *Runner {
	return NewRunner(Config{
		Dispatcher: loop,
		Logger:     quietLogger(),
		Metrics:    metrics,
	})
}

func waitDelivered[T any](t *testing.T, tk *Task[T]) {
	t.Helper()
	select {
	case <-tk.Delivered():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s was not delivered (state=%s)", tk.Name(), tk.State())
	}
}

func TestSubmitFailureDeliversOnceAndReenablesControl(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)
	button := newFakeButton("LOGIN")

	var doneCalls, refreshCalls atomic.Int32
	var got Result[bool]

	tk, ok := Submit(runner, Spec[bool]{
		Name:    "login",
		Control: button,
		Op: func(ctx context.Context) (bool, error) {
			return false, errors.New("connection refused")
		},
		Done: func(r Result[bool]) {
			doneCalls.Add(1)
			got = r
		},
		Refresh: func() { refreshCalls.Add(1) },
	})
	if !ok {
		t.Fatal("Submit returned false for an enabled control")
	}
	waitDelivered(t, tk)

	if n := doneCalls.Load(); n != 1 {
		t.Errorf("Done called %d times, want 1", n)
	}
	if n := refreshCalls.Load(); n != 0 {
		t.Errorf("Refresh called %d times on failure, want 0", n)
	}
	if got.OK() || got.Err == nil {
		t.Fatal("expected failure result")
	}
	if got.Message() == "" {
		t.Error("failure message should not be empty")
	}
	if !button.Enabled() {
		t.Error("control left disabled after failure")
	}
	if button.Label() != "LOGIN" {
		t.Errorf("label = %q, want restored %q", button.Label(), "LOGIN")
	}
	if tk.State() != StateDelivered {
		t.Errorf("state = %s, want delivered", tk.State())
	}
}

func TestSubmitSuccessRunsCallbackOnLoopAndRefreshesOnce(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)
	button := newFakeButton("SUBMIT")

	loopID := loopGoroutine(t, loop)

	var doneCalls, refreshCalls atomic.Int32
	var onLoop atomic.Bool
	var doneID atomic.Uint64

	tk, ok := Submit(runner, Spec[[]string]{
		Name:    "gallery",
		Control: button,
		Op: func(ctx context.Context) ([]string, error) {
			return []string{"Biscuit", "Mochi"}, nil
		},
		Done: func(r Result[[]string]) {
			doneCalls.Add(1)
			onLoop.Store(loop.InLoop())
			doneID.Store(goid())
			if !r.OK() || len(r.Value) != 2 {
				t.Errorf("unexpected result %+v", r)
			}
		},
		Refresh: func() { refreshCalls.Add(1) },
	})
	if !ok {
		t.Fatal("Submit returned false")
	}
	waitDelivered(t, tk)

	if n := doneCalls.Load(); n != 1 {
		t.Errorf("Done called %d times, want 1", n)
	}
	if n := refreshCalls.Load(); n != 1 {
		t.Errorf("Refresh called %d times, want 1", n)
	}
	if !onLoop.Load() {
		t.Error("Done ran outside a loop callback")
	}
	if got := doneID.Load(); got == 0 || got != loopID || got == goid() {
		t.Errorf("Done ran on goroutine %d, want loop goroutine %d", got, loopID)
	}
	if !button.Enabled() {
		t.Error("control left disabled after success")
	}
}

func TestSubmitWhileInFlightIsNoop(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)
	button := newFakeButton("SUBMIT")

	release := make(chan struct{})
	var started atomic.Int32
	spec := Spec[int]{
		Name:      "adopt",
		Control:   button,
		BusyLabel: "SUBMITTING...",
		Op: func(ctx context.Context) (int, error) {
			started.Add(1)
			<-release
			return 1, nil
		},
	}

	first, ok := Submit(runner, spec)
	if !ok {
		t.Fatal("first Submit returned false")
	}
	if button.Enabled() {
		t.Error("control should be disabled while in flight")
	}
	if button.Label() != "SUBMITTING..." {
		t.Errorf("busy label = %q", button.Label())
	}

	second, ok := Submit(runner, spec)
	if ok || second != nil {
		t.Fatal("second Submit from a disabled control should be a no-op")
	}

	close(release)
	waitDelivered(t, first)

	if n := started.Load(); n != 1 {
		t.Errorf("operation started %d times, want 1", n)
	}
	if button.Label() != "SUBMIT" {
		t.Errorf("label = %q, want SUBMIT", button.Label())
	}
}

func TestPanicInOperationBecomesUnexpectedFailure(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)

	var got Result[string]
	tk, _ := Submit(runner, Spec[string]{
		Name: "encode-image",
		Op: func(ctx context.Context) (string, error) {
			var m map[string]int
			m["x"] = 1
			return "", nil
		},
		Done: func(r Result[string]) { got = r },
	})
	waitDelivered(t, tk)

	if got.OK() {
		t.Fatal("expected failure from panicking op")
	}
	if got.Err.Category != failure.Unexpected {
		t.Errorf("category = %s, want unexpected", got.Err.Category)
	}
}

func TestPanicInDoneIsReportedAndControlReenabled(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)
	button := newFakeButton("RESET")

	var fault atomic.Value
	tk, _ := Submit(runner, Spec[bool]{
		Name:    "reset-password",
		Control: button,
		Op:      func(ctx context.Context) (bool, error) { return true, nil },
		Done:    func(r Result[bool]) { panic("widget gone") },
		OnFault: func(msg string) { fault.Store(msg) },
	})
	waitDelivered(t, tk)

	msg, _ := fault.Load().(string)
	if msg == "" {
		t.Error("OnFault was not called")
	}
	if !button.Enabled() {
		t.Error("control left disabled after a panicking callback")
	}
}

func TestTimeoutClassifiedAsConnectivity(t *testing.T) {
	loop := startLoop(t)
	runner := newTestRunner(loop, nil)

	var got Result[bool]
	tk, _ := Submit(runner, Spec[bool]{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Op: func(ctx context.Context) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		},
		Done: func(r Result[bool]) { got = r },
	})
	waitDelivered(t, tk)

	if got.OK() || got.Err.Category != failure.Connectivity {
		t.Fatalf("got %+v, want connectivity failure", got)
	}
}

func TestMetricsRecordOutcome(t *testing.T) {
	loop := startLoop(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	runner := newTestRunner(loop, metrics)

	ok, _ := Submit(runner, Spec[int]{
		Name: "donations",
		Op:   func(ctx context.Context) (int, error) { return 3, nil },
	})
	bad, _ := Submit(runner, Spec[int]{
		Name: "donations",
		Op: func(ctx context.Context) (int, error) {
			return 0, failure.Logicalf("amount must be positive")
		},
	})
	waitDelivered(t, ok)
	waitDelivered(t, bad)

	if v := testutil.ToFloat64(metrics.total.WithLabelValues("donations", "success")); v != 1 {
		t.Errorf("success count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.total.WithLabelValues("donations", "logical")); v != 1 {
		t.Errorf("logical count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.inFlight); v != 0 {
		t.Errorf("in flight = %v, want 0", v)
	}
}

func TestLoopDropsAfterClose(t *testing.T) {
	loop := NewLoop()
	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	ran := make(chan struct{})
	loop.Dispatch(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("callback not run")
	}

	loop.Close()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after Close", err)
	}
	loop.Dispatch(func() { t.Error("callback ran after Close") })
	if loop.Processed() != 1 {
		t.Errorf("processed = %d, want 1", loop.Processed())
	}
}
