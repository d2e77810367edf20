package solve

import (
	"context"
	"sync"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// Job is one resolution of SolveMany.
type Job struct {
	Name         string
	Connectivity Connectivity
	Root         mod.Pkg
	RootVersion  version.Version
	Deps         mod.Dependencies
}

// Result is the outcome of a Job.
type Result struct {
	Job      Job
	Solution map[mod.Pkg]version.Version
	Err      error
}

// SolveMany runs independent resolutions on up to workers goroutines. Each
// resolution builds its own provider. Results keep the order of jobs.
func (r *Resolver) SolveMany(ctx context.Context, jobs []Job, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	work := make(chan int, len(jobs))
	for i := range jobs {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				job := jobs[i]
				sol, err := r.Solve(ctx, job.Connectivity, job.Root, job.RootVersion, job.Deps)
				results[i] = Result{Job: job, Solution: sol, Err: err}
			}
		}()
	}
	wg.Wait()
	return results
}
