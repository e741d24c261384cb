package relay

import "sync"

// statusPump hands rendered status texts from the engine's callback to a
// background goroutine without blocking. Only the latest pending text is
// kept; older ones are dropped.
type statusPump struct {
	deliver func(text string)

	mu      sync.Mutex
	pending string
	has     bool
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func startPump(deliver func(text string)) *statusPump {
	p := &statusPump{
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Offer replaces the pending text. It never blocks.
func (p *statusPump) Offer(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending, p.has = text, true
	p.mu.Unlock()
	p.signal()
}

// Close delivers whatever is still pending and waits for the goroutine to exit
func (p *statusPump) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
	<-p.done
}

func (p *statusPump) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *statusPump) run() {
	defer close(p.done)
	for range p.wake {
		for {
			p.mu.Lock()
			text, has, closed := p.pending, p.has, p.closed
			p.pending, p.has = "", false
			p.mu.Unlock()

			if has {
				p.deliver(text)
				continue
			}
			if closed {
				return
			}
			break
		}
	}
}
