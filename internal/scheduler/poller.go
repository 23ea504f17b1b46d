// Package scheduler runs the mailbox polling loop that drives the whole
// daemon: every tick drains one batch of unseen mail through the processor.
package scheduler

import (
	"context"
	"log"
	"time"
)

// BatchProcessor drains one batch of inbound mail
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) error
}

// Poller triggers batch processing on a fixed interval
type Poller struct {
	processor BatchProcessor
	interval  time.Duration
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewPoller creates a new poller
func NewPoller(processor BatchProcessor, interval time.Duration) *Poller {
	return &Poller{
		processor: processor,
		interval:  interval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start() {
	log.Printf("[Poller] Starting mailbox poller (interval: %s)", p.interval)

	go func() {
		defer close(p.doneChan)

		// Run immediately on start
		p.tick()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.tick()
			case <-p.stopChan:
				log.Println("[Poller] Poller stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight batch to finish
func (p *Poller) Stop() {
	close(p.stopChan)
	<-p.doneChan
}

func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval*4)
	defer cancel()

	if err := p.processor.ProcessBatch(ctx); err != nil {
		log.Printf("[Poller] Batch processing failed: %v", err)
	}
}
