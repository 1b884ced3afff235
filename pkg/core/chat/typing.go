package chat

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke "stop-typing" is sent
const DefaultTypingIdle = time.Second

// Debouncer fires start on every Touch and stop once no Touch has happened for idle
type Debouncer struct {
	idle  time.Duration
	start func()
	stop  func()

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	active bool
}

func NewDebouncer(idle time.Duration, start, stop func()) *Debouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &Debouncer{idle: idle, start: start, stop: stop}
}

// Touch records a keystroke and re-arms the idle timer
func (d *Debouncer) Touch() {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() { d.expire(gen) })
	d.mu.Unlock()

	d.start()
}

// Flush fires stop immediately if a keystroke is pending
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.gen++
	fire := d.active
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if fire {
		d.stop()
	}
}

// Active reports whether a stop is still pending
func (d *Debouncer) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.stop()
}
