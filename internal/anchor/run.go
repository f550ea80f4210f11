package anchor

import (
	"context"
	"time"
)

// Run drives l from the calling goroutine until ctx ends. It polls every
// interval, runs tasks on their own goroutines and feeds their completions
// back here. Commands also execute here, so l is never touched concurrently.
func Run(ctx context.Context, l *Lifecycle, interval time.Duration, commands <-chan func(*Lifecycle)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := make(chan Completion)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			task := l.Poll()
			if task == nil {
				continue
			}
			go func() {
				c := task(ctx)
				select {
				case done <- c:
				case <-ctx.Done():
				}
			}()
		case c := <-done:
			l.Complete(c)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			cmd(l)
		}
	}
}
