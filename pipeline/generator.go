package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/m-lab/rollup-generator/rollup"
)

// Step is a completed stage of a generator run.
type Step string

const (
	hourlyStep Step = "hourly"
	dailyStep  Step = "daily"
	verifyStep Step = "verify"
)

// RollupTable is a table that can be rebuilt from the source table.
type RollupTable interface {
	Update(ctx context.Context) error
	Name() string
}

// Verifier checks the rollups after they have been rebuilt.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Generator rebuilds the hourly and the daily rollup tables.
type Generator struct {
	Hourly RollupTable
	Daily  RollupTable

	// Verifier, if not nil, runs after both tables have been rebuilt.
	Verifier Verifier

	// Concurrent makes the hourly and daily statements run in parallel.
	Concurrent bool
}

// NewGenerator returns a sequential Generator for the given tables.
func NewGenerator(hourly, daily RollupTable) *Generator {
	return &Generator{
		Hourly: hourly,
		Daily:  daily,
	}
}

// Run rebuilds both rollups and returns the completed steps. The first error
// aborts the run and is returned unmodified. A table that has already been
// replaced when the error happens is left in place.
func (g *Generator) Run(ctx context.Context) ([]Step, error) {
	var completed []Step
	var err error
	if g.Concurrent {
		completed, err = g.runConcurrent(ctx)
	} else {
		completed, err = g.runSequential(ctx)
	}
	if err != nil {
		return completed, err
	}
	if g.Verifier != nil {
		if err := g.Verifier.Verify(ctx); err != nil {
			log.Printf("Rollup verification failed: %v", err)
			return completed, err
		}
		log.Printf("Rollup totals match the source table")
		completed = append(completed, verifyStep)
	}
	return completed, nil
}

func (g *Generator) runSequential(ctx context.Context) ([]Step, error) {
	completed := []Step{}
	if err := g.Hourly.Update(ctx); err != nil {
		return completed, err
	}
	log.Printf("Hourly data has been written to the table: %s", g.Hourly.Name())
	completed = append(completed, hourlyStep)

	if err := g.Daily.Update(ctx); err != nil {
		return completed, err
	}
	log.Printf("Daily data has been written to the table: %s", g.Daily.Name())
	completed = append(completed, dailyStep)
	return completed, nil
}

func (g *Generator) runConcurrent(ctx context.Context) ([]Step, error) {
	var hourlyErr, dailyErr error
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		hourlyErr = g.Hourly.Update(ctx)
	}()
	go func() {
		defer wg.Done()
		dailyErr = g.Daily.Update(ctx)
	}()
	wg.Wait()

	completed := []Step{}
	if hourlyErr == nil {
		log.Printf("Hourly data has been written to the table: %s", g.Hourly.Name())
		completed = append(completed, hourlyStep)
	}
	if dailyErr == nil {
		log.Printf("Daily data has been written to the table: %s", g.Daily.Name())
		completed = append(completed, dailyStep)
	}
	if hourlyErr != nil {
		return completed, hourlyErr
	}
	return completed, dailyErr
}

// Ensure rollup.Table can be used by the Generator.
var _ RollupTable = &rollup.Table{}
