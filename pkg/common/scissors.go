package common

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScissorsErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msgscan_scissor_errors_caught",
			Help: "Total number of unhandled errors caught",
		})
)

type Runnable func(ctx context.Context) error

func panicError(name string, r interface{}) error {
	ScissorsErrors.Inc()
	switch x := r.(type) {
	case error:
		return fmt.Errorf("%s: %w", name, x)
	default:
		return fmt.Errorf("%s: %v", name, x)
	}
}

// RunWithScissors starts runnable in a goroutine. A panic or a non-nil result is sent to errC.
func RunWithScissors(ctx context.Context, errC chan<- error, name string, runnable Runnable) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errC <- panicError(name, r)
			}
		}()
		if err := runnable(ctx); err != nil {
			errC <- err
		}
	}()
}

// WrapWithScissors returns a Runnable that turns a panic of runnable into an error.
func WrapWithScissors(name string, runnable Runnable) Runnable {
	return func(ctx context.Context) (result error) {
		defer func() {
			if r := recover(); r != nil {
				result = panicError(name, r)
			}
		}()
		return runnable(ctx)
	}
}
