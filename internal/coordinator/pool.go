package coordinator

import (
	"context"
	"runtime"
	"sync"
)

// evalJob is one (layer, symbol) cycle queued for parallel evaluation.
type evalJob struct {
	symbol string
	input  CycleInput
}

// evalOutcome pairs a symbol with its cycle result.
type evalOutcome struct {
	symbol string
	result CycleResult
	err    error
}

// EvaluateSymbols runs one cycle per symbol concurrently. Symbols are
// independent coordination units with no shared mutable state, so they may
// run fully in parallel; each still serializes against any live update for
// the same (layer, symbol) through the keyed locks.
func (e *Engine) EvaluateSymbols(ctx context.Context, inputs map[string]CycleInput) (map[string]CycleResult, error) {
	workers := runtime.NumCPU()
	if workers > len(inputs) {
		workers = len(inputs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan evalJob, len(inputs))
	outcomes := make(chan evalOutcome, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result, err := e.Evaluate(ctx, job.input)
				outcomes <- evalOutcome{symbol: job.symbol, result: result, err: err}
			}
		}()
	}

	for symbol, input := range inputs {
		jobs <- evalJob{symbol: symbol, input: input}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make(map[string]CycleResult, len(inputs))
	var firstErr error
	for outcome := range outcomes {
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
			}
			continue
		}
		results[outcome.symbol] = outcome.result
	}
	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
