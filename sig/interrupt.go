package sig

import (
	"os"
	"os/signal"
	"sync"
)

// interruptDelivery owns the console-interrupt subscription. os.Interrupt
// covers both native models: SIGINT on Unix, CTRL_C_EVENT (and friends)
// mapped by the runtime on Windows.
type interruptDelivery struct {
	mu sync.Mutex
	cb func()
	ch chan os.Signal
}

func (d *interruptDelivery) subscribe(cb func()) (prev func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev = d.cb
	d.cb = cb

	// the dispatch goroutine is created lazily and re-created after a
	// stop, so subscribing stays valid across Registry.Close
	if cb != nil && d.ch == nil {
		ch := make(chan os.Signal, 10)
		signal.Notify(ch, os.Interrupt)
		d.ch = ch
		go d.run(ch)
	}
	return prev
}

// run dispatches interrupts on its own goroutine, concurrently with
// everything else in the process.
func (d *interruptDelivery) run(ch chan os.Signal) {
	for range ch {
		d.mu.Lock()
		cb := d.cb
		d.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}

func (d *interruptDelivery) stop() {
	d.mu.Lock()
	ch := d.ch
	d.ch = nil
	d.cb = nil
	d.mu.Unlock()

	if ch != nil {
		signal.Stop(ch)
		close(ch)
	}
}
