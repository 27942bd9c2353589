package utils

import "sync"

type CompletedTask[T any] struct {
	Index  int
	Result T
	Error  error
}

// RunInPool applies worker to every input using at most maxWorkers goroutines.
// Completed tasks carry the position of their input and arrive on the returned
// channel in completion order. The channel is closed once every input is done.
func RunInPool[In any, Out any](inputs []In, worker func(In) (Out, error), maxWorkers int) <-chan CompletedTask[Out] {
	completed := make(chan CompletedTask[Out], len(inputs))

	workers := min(len(inputs), max(maxWorkers, 1))

	queue := make(chan int, len(inputs))
	for i := range inputs {
		queue <- i
	}
	close(queue)

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					res, err := worker(inputs[next])
					completed <- CompletedTask[Out]{Index: next, Result: res, Error: err}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()

	return completed
}

// CollectInOrder drains completed into a slice indexed by input position.
func CollectInOrder[T any](completed <-chan CompletedTask[T], n int) []CompletedTask[T] {
	results := make([]CompletedTask[T], n)
	for task := range completed {
		results[task.Index] = task
	}
	return results
}
