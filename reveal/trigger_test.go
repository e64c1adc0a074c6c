package reveal

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeObserver records registrations and lets the test push fractions.
type fakeObserver struct {
	mu       sync.Mutex
	fns      map[string]func(float64)
	canceled int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{fns: make(map[string]func(float64))}
}

func (o *fakeObserver) Observe(block string, fn func(float64)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fns[block] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, block)
		o.canceled++
	}
}

func (o *fakeObserver) push(block string, fraction float64) bool {
	o.mu.Lock()
	fn, ok := o.fns[block]
	o.mu.Unlock()
	if ok {
		fn(fraction)
	}
	return ok
}

func TestTriggerStartsHidden(t *testing.T) {
	tr := NewTrigger("menu", 0.1, nil)
	if tr.Visible() {
		t.Fatal("expected hidden trigger")
	}
}

func TestTriggerNeverAttachedStaysHidden(t *testing.T) {
	tr := NewTrigger("menu", 0.1, nil)
	for i := 0; i < 3; i++ {
		if tr.Visible() {
			t.Fatal("unattached trigger became visible")
		}
	}
}

func TestTriggerThresholdDefaults(t *testing.T) {
	for _, th := range []float64{0, -1, 1.5, math.NaN()} {
		if got := NewTrigger("b", th, nil).Threshold(); got != DefaultThreshold {
			t.Fatalf("threshold %v: expected default, got %v", th, got)
		}
	}
	if got := NewTrigger("b", 1, nil).Threshold(); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestTriggerRevealsOnceAndTearsDown(t *testing.T) {
	obs := newFakeObserver()
	var reveals int
	tr := NewTrigger("gallery", 0.1, func(string) { reveals++ })
	tr.Attach(obs)

	obs.push("gallery", 0.05)
	if tr.Visible() {
		t.Fatal("below threshold must not reveal")
	}

	obs.push("gallery", 0.1)
	if !tr.Visible() {
		t.Fatal("expected reveal at threshold")
	}
	if obs.canceled != 1 {
		t.Fatalf("expected observation torn down once, got %d", obs.canceled)
	}
	if obs.push("gallery", 0.5) {
		t.Fatal("observation still registered after reveal")
	}

	if tr.Report(0) != true || !tr.Visible() {
		t.Fatal("flag must never revert")
	}
	if reveals != 1 {
		t.Fatalf("expected one reveal callback, got %d", reveals)
	}
}

func TestTriggerIgnoresNaN(t *testing.T) {
	tr := NewTrigger("menu", 0.1, nil)
	if tr.Report(math.NaN()) || tr.Visible() {
		t.Fatal("NaN fraction must not reveal")
	}
	if !tr.Report(0.2) {
		t.Fatal("expected reveal after a real measurement")
	}
}

func TestTriggerAttachTwiceRegistersOnce(t *testing.T) {
	obs := newFakeObserver()
	tr := NewTrigger("access", 0.1, nil)
	tr.Attach(obs)
	tr.Attach(obs)
	obs.push("access", 1)
	if obs.canceled != 1 {
		t.Fatalf("expected one teardown, got %d", obs.canceled)
	}
}

func TestTriggerDetachKeepsFlag(t *testing.T) {
	obs := newFakeObserver()
	tr := NewTrigger("concept", 0.1, nil)
	tr.Attach(obs)
	tr.Detach()

	if obs.canceled != 1 {
		t.Fatalf("expected teardown on detach, got %d", obs.canceled)
	}
	if tr.Report(1) {
		t.Fatal("detached trigger must not reveal")
	}
	if tr.Visible() {
		t.Fatal("expected hidden after detach")
	}
}

func TestTriggerConcurrentReportsRevealOnce(t *testing.T) {
	var reveals atomic.Int32
	tr := NewTrigger("menu", 0.1, func(string) { reveals.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Report(0.9)
		}()
	}
	wg.Wait()
	if reveals.Load() != 1 {
		t.Fatalf("expected exactly one transition, got %d", reveals.Load())
	}
}

func TestBoardReport(t *testing.T) {
	var revealed []string
	b := NewBoard([]string{"concept", "menu", "menu"}, 0.1, func(block string) {
		revealed = append(revealed, block)
	})

	if got := b.Blocks(); len(got) != 2 {
		t.Fatalf("expected duplicate block ignored, got %v", got)
	}
	if b.Watching("menu") != 1 {
		t.Fatalf("expected menu observed, got %d", b.Watching("menu"))
	}

	visible, err := b.Report("menu", 0.02)
	if err != nil || visible {
		t.Fatalf("expected hidden, got %v %v", visible, err)
	}
	visible, err = b.Report("menu", 0.3)
	if err != nil || !visible {
		t.Fatalf("expected visible, got %v %v", visible, err)
	}
	if b.Watching("menu") != 0 {
		t.Fatal("expected observation torn down after reveal")
	}
	visible, _ = b.Report("menu", 0)
	if !visible {
		t.Fatal("flag reverted")
	}

	snap := b.Snapshot()
	if !snap["menu"] || snap["concept"] {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	if len(revealed) != 1 || revealed[0] != "menu" {
		t.Fatalf("unexpected reveal callbacks %v", revealed)
	}
}

func TestBoardUnknownBlock(t *testing.T) {
	b := NewBoard([]string{"menu"}, 0.1, nil)
	_, err := b.Report("kitchen", 1)
	if !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("expected ErrUnknownBlock, got %v", err)
	}
	if b.Visible("kitchen") {
		t.Fatal("unknown block must not be visible")
	}
}

func TestBoardClose(t *testing.T) {
	b := NewBoard([]string{"menu", "gallery"}, 0.1, nil)
	b.Close()
	if b.Watching("menu") != 0 || b.Watching("gallery") != 0 {
		t.Fatal("expected all observations torn down")
	}
	if visible, _ := b.Report("menu", 1); visible {
		t.Fatal("closed board must not reveal")
	}
}
