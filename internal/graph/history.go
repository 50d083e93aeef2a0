package graph

import "sync"

// DefaultHistoryLimit is the number of undo steps kept.
const DefaultHistoryLimit = 40

// History is a linear, bounded undo/redo log of snapshots. It is safe for
// concurrent use.
type History struct {
	mu    sync.Mutex
	limit int
	undo  []Snapshot
	redo  []Snapshot
}

// NewHistory creates a history bounded to limit entries per stack. A
// non-positive limit selects DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record pushes s onto the undo stack and clears the redo stack. The oldest
// entry is evicted when the stack is full. A snapshot equal to the most
// recent entry is not pushed again, so every undo step changes the state.
func (h *History) Record(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redo = nil
	if n := len(h.undo); n > 0 && h.undo[n-1].equal(s) {
		return
	}
	h.undo = h.push(h.undo, s.clone())
}

// Undo pops the most recent snapshot and pushes current onto the redo stack.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = h.push(h.redo, current.clone())
	return prev.clone(), true
}

// Redo pops the most recently undone snapshot and pushes current onto the
// undo stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = h.push(h.undo, current.clone())
	return next.clone(), true
}

// Reset drops both stacks.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
}

// UndoLen returns the number of available undo steps.
func (h *History) UndoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

// RedoLen returns the number of available redo steps.
func (h *History) RedoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}

func (h *History) push(stack []Snapshot, s Snapshot) []Snapshot {
	stack = append(stack, s)
	if over := len(stack) - h.limit; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}
