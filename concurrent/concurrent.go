// Package concurrent offers helpers to run operations in parallel
// with a bounded number of goroutines and to retry them with
// exponential back off.
package concurrent

import "runtime"

var defaultConcurrency = runtime.NumCPU()
