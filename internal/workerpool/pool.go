// Package workerpool runs tasks on a fixed number of named workers.
package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work. worker is the name of the slot running it.
type Task func(ctx context.Context, worker string) error

// Pool bounds how many tasks run at once. A Pool holds no goroutines between
// Run calls and may be reused.
type Pool struct {
	prefix string
	size   int
}

// New creates a pool of size workers named prefix1..prefixN.
// A size below 1 is treated as 1.
func New(namePrefix string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{prefix: namePrefix, size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Run executes tasks with at most Size in flight and waits for all of them.
// The first error cancels the context passed to the remaining tasks and is
// returned; tasks not yet started are skipped.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	slots := make(chan int, p.size)
	for i := 1; i <= p.size; i++ {
		slots <- i
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			slot := <-slots
			defer func() { slots <- slot }()

			if err := ctx.Err(); err != nil {
				return err
			}
			return task(ctx, p.workerName(slot))
		})
	}

	return g.Wait()
}

func (p *Pool) workerName(slot int) string {
	return fmt.Sprintf("%s%d", p.prefix, slot)
}
