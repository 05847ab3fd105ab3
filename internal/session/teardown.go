// ABOUTME: Ordered idempotent resource teardown
// ABOUTME: Releases session resources in a fixed order on every exit path
package session

import (
	"log"
	"sync"
)

// Step releases one resource. Steps run in list order so no callback
// can fire against a half-torn-down resource: the remote channel closes
// before the microphone stops, the microphone before the playback path,
// the playback path before the metering loop.
type Step struct {
	Name  string
	Close func() error
}

// Teardown runs an ordered step list exactly once, no matter how many
// triggers invoke it (error path, explicit end, disposal). Step errors
// are logged and swallowed; teardown always completes.
type Teardown struct {
	mu   sync.Mutex
	done bool
}

// Run executes the steps in order on the first call and does nothing on
// subsequent calls
func (t *Teardown) Run(steps []Step) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	for _, step := range steps {
		if step.Close == nil {
			continue
		}
		if err := step.Close(); err != nil {
			log.Printf("teardown: %s: %v", step.Name, err)
		}
	}
}

// Done reports whether teardown has already run
func (t *Teardown) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
