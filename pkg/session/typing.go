package session

import (
	"sync"
	"time"
)

// DefaultTypingIdle is the pause after the last keystroke before the
// indicator clears.
const DefaultTypingIdle = time.Second

// debouncer coalesces keystrokes into at most one typing=true write
// per idle cycle. The false transition fires on idle timeout, on the
// input emptying, or on send, whichever comes first.
type debouncer struct {
	mu      sync.Mutex
	idle    time.Duration
	active  bool
	timer   *time.Timer
	stopped bool
	emit    func(typing bool)
}

func newDebouncer(idle time.Duration, emit func(bool)) *debouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &debouncer{idle: idle, emit: emit}
}

func (d *debouncer) onTextChanged(text string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if text == "" {
		fire := d.clearLocked()
		d.mu.Unlock()
		if fire {
			d.emit(false)
		}
		return
	}
	first := !d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.onIdle)
	d.mu.Unlock()
	if first {
		d.emit(true)
	}
}

func (d *debouncer) onSend() {
	d.mu.Lock()
	fire := !d.stopped && d.clearLocked()
	d.mu.Unlock()
	if fire {
		d.emit(false)
	}
}

func (d *debouncer) onIdle() {
	d.mu.Lock()
	fire := !d.stopped && d.clearLocked()
	d.mu.Unlock()
	if fire {
		d.emit(false)
	}
}

// clearLocked resets the cycle; reports whether a false transition is
// owed. Caller holds d.mu.
func (d *debouncer) clearLocked() bool {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.active {
		return false
	}
	d.active = false
	return true
}

// stop ends the debouncer without emitting; used on conversation
// close where a trailing write would race the detach.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.active = false
	d.mu.Unlock()
}
