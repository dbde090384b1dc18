package ada

import (
	"context"
	"sync"
	"time"
)

const pollMaximumJobDuration = 15 * time.Second

// poller drives the device status check on a single goroutine: one tick,
// one serial pass over the attached modules. There is no parallel execution
// of device commands; the transport is owned by this loop and by whichever
// caller currently holds a reconciliation.
type poller struct {
	device   *Device
	interval time.Duration

	m       sync.Mutex
	reset   chan time.Duration
	stop    chan struct{}
	running bool
	stopped sync.WaitGroup
}

func (p *poller) Start() {
	p.m.Lock()
	defer p.m.Unlock()

	if p.running {
		return
	}

	p.reset = make(chan time.Duration, 1)
	p.stop = make(chan struct{})
	p.running = true

	p.stopped.Add(1)
	go p.loop(p.interval)
}

func (p *poller) Stop() {
	p.m.Lock()
	defer p.m.Unlock()

	if !p.running {
		return
	}

	close(p.stop)
	p.stopped.Wait()
	p.running = false
}

func (p *poller) SetInterval(interval time.Duration) {
	p.m.Lock()
	defer p.m.Unlock()

	p.interval = interval

	if p.running {
		select {
		case p.reset <- interval:
		default:
		}
	}
}

func (p *poller) loop(interval time.Duration) {
	defer p.stopped.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case interval = <-p.reset:
			ticker.Reset(interval)
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pollMaximumJobDuration)
			p.device.pollModules(ctx)
			cancel()
		}
	}
}
