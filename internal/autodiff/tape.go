package autodiff

import (
	"sync"

	"github.com/born-ml/convkit/internal/autodiff/ops"
)

// GradientTape records operations during the forward pass.
// It is safe for concurrent use: forwards sharing one backend may record in parallel.
//
// Usage:
//
//	tape := backend.Tape()
//	tape.StartRecording()
//	// ... run forwards ...
//	for _, op := range tape.Operations() { ... }
type GradientTape struct {
	mu         sync.Mutex
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool
}

// NewGradientTape creates a new gradient tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.mu.Lock()
	t.recording = true
	t.mu.Unlock()
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.mu.Lock()
	t.recording = false
	t.mu.Unlock()
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.mu.Lock()
	t.operations = t.operations[:0]
	t.mu.Unlock()
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.operations)
}

// Operations returns a snapshot of the recorded operations in execution order.
func (t *GradientTape) Operations() []ops.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ops.Operation(nil), t.operations...)
}
