package coordinator

import (
	"sync"
	"time"
)

// SuppressionWindow marks a short period during which track changes on the
// observed session are this coordinator's own doing and must not be
// mistaken for an external skip. Armed only at the moment a trigger is
// dispatched; consulted by the observer before every advance signal.
type SuppressionWindow struct {
	mu    sync.Mutex
	until time.Time
}

// NewSuppressionWindow creates an expired (inactive) window.
func NewSuppressionWindow() *SuppressionWindow {
	return &SuppressionWindow{}
}

// Arm opens the window for d. Re-arming before expiry resets the timer; it
// never stacks.
func (w *SuppressionWindow) Arm(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.until = time.Now().Add(d)
}

// Active reports whether the window is still open.
func (w *SuppressionWindow) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Now().Before(w.until)
}

// Cancel expires the window immediately.
func (w *SuppressionWindow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.until = time.Time{}
}
