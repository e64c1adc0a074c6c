package reveal

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBlock is returned for reports about blocks the board does not hold.
var ErrUnknownBlock = errors.New("reveal: unknown block")

// Board holds the triggers of one rendered page and acts as their Observer:
// intersection reports arriving from the page are routed to whoever observes
// the block.
type Board struct {
	mu       sync.Mutex
	triggers map[string]*Trigger
	watchers map[string]map[int]func(float64)
	nextID   int
}

// NewBoard creates one attached trigger per block. onReveal is called once per
// block on its false → true transition and may be nil.
func NewBoard(blocks []string, threshold float64, onReveal func(block string)) *Board {
	b := &Board{
		triggers: make(map[string]*Trigger, len(blocks)),
		watchers: make(map[string]map[int]func(float64)),
	}
	for _, block := range blocks {
		if _, dup := b.triggers[block]; dup {
			continue
		}
		b.triggers[block] = NewTrigger(block, threshold, onReveal)
	}
	for _, t := range b.triggers {
		t.Attach(b)
	}
	return b
}

// Observe implements Observer.
func (b *Board) Observe(block string, fn func(fraction float64)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.watchers[block] == nil {
		b.watchers[block] = make(map[int]func(float64))
	}
	b.watchers[block][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.watchers[block], id)
			if len(b.watchers[block]) == 0 {
				delete(b.watchers, block)
			}
		})
	}
}

// Report delivers a visible fraction for block and returns the block's flag.
func (b *Board) Report(block string, fraction float64) (bool, error) {
	b.mu.Lock()
	t, ok := b.triggers[block]
	if !ok {
		b.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownBlock, block)
	}
	fns := make([]func(float64), 0, len(b.watchers[block]))
	for _, fn := range b.watchers[block] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(fraction)
	}
	return t.Visible(), nil
}

// Visible reports the flag of block; unknown blocks are never visible.
func (b *Board) Visible(block string) bool {
	b.mu.Lock()
	t, ok := b.triggers[block]
	b.mu.Unlock()
	return ok && t.Visible()
}

// Snapshot returns every block's flag.
func (b *Board) Snapshot() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(b.triggers))
	for block, t := range b.triggers {
		out[block] = t.Visible()
	}
	return out
}

// Blocks returns the block IDs in sorted order.
func (b *Board) Blocks() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.triggers))
	for block := range b.triggers {
		out = append(out, block)
	}
	sort.Strings(out)
	return out
}

// Watching reports how many observations are still registered for block.
func (b *Board) Watching(block string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers[block])
}

// Close tears down every remaining observation.
func (b *Board) Close() {
	b.mu.Lock()
	triggers := make([]*Trigger, 0, len(b.triggers))
	for _, t := range b.triggers {
		triggers = append(triggers, t)
	}
	b.mu.Unlock()

	for _, t := range triggers {
		t.Detach()
	}
}
