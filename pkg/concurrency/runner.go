package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mockbus/pubsub-capture/pkg/logger"
)

// SafeGo runs fn in its own goroutine and recovers any panic, logging it
// instead of crashing the process.
func SafeGo(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic recovered: %v", r)
				stack := string(debug.Stack())
				logger.L().ErrorContext(ctx, "goroutine panic", "error", err, "stack", stack)
			}
		}()
		fn()
	}()
}

// FanOut runs n copies of fn concurrently, one per index in [0,n), and
// waits for all of them to finish. Each copy runs under SafeGo so a panic
// in one index doesn't take down the others or the caller.
func FanOut(ctx context.Context, n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		idx := i
		SafeGo(ctx, func() {
			defer wg.Done()
			fn(idx)
		})
	}
	wg.Wait()
}
