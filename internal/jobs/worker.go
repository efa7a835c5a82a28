package jobs

import (
	"context"
	"log"
	"time"

	"github.com/evidentry/evidentry/internal/telemetry"
)

// Sweeper runs one unit of background work per tick.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Worker drives a Sweeper on a fixed interval until stopped.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewWorker(sweeper Sweeper, interval time.Duration) *Worker {
	return &Worker{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the polling loop. Sweep errors are logged and the loop
// continues; only Stop or context cancellation end it.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker started, interval %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.sweeper.Sweep(ctx); err != nil {
				// Background failures have no HTTP transaction to ride on.
				telemetry.CaptureError(ctx, err)
				log.Printf("sweep failed: %v", err)
			}
		}
	}
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("worker shutdown complete")
}
