package util

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrConfiguration is returned when the worker pool can not be sized.
var ErrConfiguration = errors.New("invalid concurrency configuration")

// ChooseWorkerCount returns number of workers encoding fileCount files at
// once. Sequential mode always gets a single worker. Otherwise the number
// is bounded by both fileCount and hw, the available hardware parallelism,
// and is never less than 1.
func ChooseWorkerCount(parallel bool, fileCount, hw int) int {
	if !parallel {
		return 1
	}

	return max(1, min(fileCount, hw))
}

// WorkerCount is ChooseWorkerCount taking hardware parallelism from hw.
// hw is not called in sequential mode. Failed or non-positive hw result is
// ErrConfiguration.
func WorkerCount(parallel bool, fileCount int, hw func() (int, error)) (int, error) {
	if !parallel {
		return 1, nil
	}

	n, err := hw()
	if err != nil {
		return 0, fmt.Errorf("%w: query hardware concurrency: %w", ErrConfiguration, err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("%w: hardware concurrency %d", ErrConfiguration, n)
	}

	return ChooseWorkerCount(true, fileCount, n), nil
}

// HardwareConcurrency returns number of CPUs usable by the process.
func HardwareConcurrency() (int, error) {
	n := runtime.GOMAXPROCS(0)
	if n <= 0 {
		return 0, fmt.Errorf("GOMAXPROCS reported %d", n)
	}

	return n, nil
}
