package reactor_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/reactor"
)

// spin drives the loop until pred holds or the pass budget runs out.
func spin(t *testing.T, l *reactor.Loop, pred func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if pred() {
			return
		}
		res, err := l.RunOnce()
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if res == reactor.NoMoreActiveWatchers {
			t.Fatal("loop drained before condition held")
		}
	}
	t.Fatal("condition never held")
}

func TestNoWatchersReportsDrained(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	res, err := l.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if res != reactor.NoMoreActiveWatchers {
		t.Fatalf("result = %v, want NoMoreActiveWatchers", res)
	}
}

func TestTimerFiresOnce(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	fired := 0
	tm := reactor.NewTimer(l, 5*time.Millisecond, func() { fired++ })
	tm.Start()
	spin(t, l, func() bool { return fired == 1 })

	res, err := l.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if res != reactor.NoMoreActiveWatchers {
		t.Fatal("fired timer still keeps the loop alive")
	}
}

func TestTimerStopBeforeFire(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	fired := false
	tm := reactor.NewTimer(l, time.Hour, func() { fired = true })
	tm.Start()
	tm.Stop()
	res, err := l.RunOnce()
	if err != nil {
		t.Fatal(err)
	}
	if res != reactor.NoMoreActiveWatchers || fired {
		t.Fatalf("stopped timer: result=%v fired=%v", res, fired)
	}
}

func TestTimerOrdering(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var order []int
	for _, d := range []struct {
		id    int
		delay time.Duration
	}{{2, 20 * time.Millisecond}, {0, 2 * time.Millisecond}, {1, 10 * time.Millisecond}} {
		id := d.id
		reactor.NewTimer(l, d.delay, func() { order = append(order, id) }).Start()
	}
	spin(t, l, func() bool { return len(order) == 3 })
	for i, id := range order {
		if i != id {
			t.Fatalf("firing order = %v", order)
		}
	}
}

func TestAsyncWakesFromOtherGoroutine(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	called := false
	a := reactor.NewAsync(l, func() { called = true })
	a.Start()
	l.Ref() // completion in flight
	go func() {
		time.Sleep(2 * time.Millisecond)
		a.Send()
	}()
	spin(t, l, func() bool {
		if called {
			l.Unref()
		}
		return called
	})
}

func TestIoReadReadiness(t *testing.T) {
	l, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	var got reactor.Events
	io := reactor.NewIo(l, p[0], reactor.Read, func(ev reactor.Events) { got |= ev })
	if err := io.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := unix.Write(p[1], []byte("x")); err != nil {
		t.Fatal(err)
	}
	spin(t, l, func() bool { return got&reactor.Read != 0 })
	io.Destroy()
}
