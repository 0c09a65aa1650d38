package pipeline

import "errors"

var (
	errAlreadyRunning = errors.New("the rollup generator is running already")
)
