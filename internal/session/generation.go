// ABOUTME: Generation tokens for stale-callback discipline
// ABOUTME: Every async callback compares its token before mutating shared state
package session

// Generation identifies one session attempt. Tokens are minted from a
// monotonic counter and never reused; a callback holding a superseded
// token must produce zero observable state mutation.
//
// This comparison is the sole cancellation mechanism: in-flight I/O
// (a pending microphone acquisition, a slow dial) cannot be aborted,
// only have its result ignored.
type Generation uint64

// beginGenerationLocked mints the next token. Caller holds e.mu.
func (e *Engine) beginGenerationLocked() Generation {
	e.genCounter++
	e.gen = Generation(e.genCounter)
	return e.gen
}

// stale reports whether gen has been superseded
func (e *Engine) stale(gen Generation) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen != e.gen
}
