// Package reveal tracks whether page blocks have been seen.
//
// A Trigger holds a one-way flag per content block: it starts false, flips to
// true the first time the block's visible fraction meets the threshold, and
// then stops observing. It never flips back.
package reveal

import "sync"

// DefaultThreshold is the fraction of a block that must be on screen.
const DefaultThreshold = 0.1

// Observer is the host's intersection facility. Observe registers fn to be
// called with the block's visible fraction whenever it changes and returns a
// function that tears the registration down.
type Observer interface {
	Observe(block string, fn func(fraction float64)) (cancel func())
}

// Trigger is the visibility flag of one block.
type Trigger struct {
	block     string
	threshold float64
	onReveal  func(block string)

	mu      sync.Mutex
	visible bool
	cancel  func()
	done    bool
}

// NewTrigger creates a trigger for block. Thresholds outside (0, 1] fall back
// to DefaultThreshold. onReveal may be nil.
func NewTrigger(block string, threshold float64, onReveal func(block string)) *Trigger {
	if !(threshold > 0 && threshold <= 1) {
		threshold = DefaultThreshold
	}
	return &Trigger{block: block, threshold: threshold, onReveal: onReveal}
}

// Block returns the block ID.
func (t *Trigger) Block() string { return t.block }

// Threshold returns the activation threshold.
func (t *Trigger) Threshold() float64 { return t.threshold }

// Visible reports whether the block has been revealed.
func (t *Trigger) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Attach starts observing the block through o. Attaching an already
// revealed or already attached trigger does nothing.
func (t *Trigger) Attach(o Observer) {
	t.mu.Lock()
	if t.done || t.cancel != nil {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	cancel := o.Observe(t.block, func(f float64) { t.Report(f) })

	t.mu.Lock()
	if t.done {
		// Revealed synchronously during Observe.
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	t.cancel = cancel
	t.mu.Unlock()
}

// Report feeds one intersection measurement. It returns the flag after the
// measurement.
func (t *Trigger) Report(fraction float64) bool {
	t.mu.Lock()
	if t.done {
		visible := t.visible
		t.mu.Unlock()
		return visible
	}
	if !(fraction >= t.threshold) {
		t.mu.Unlock()
		return false
	}
	t.visible = true
	t.done = true
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t.onReveal != nil {
		t.onReveal(t.block)
	}
	return true
}

// Detach stops observing without changing the flag, as when a block unmounts.
func (t *Trigger) Detach() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.done = true
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
