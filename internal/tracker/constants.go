package tracker

import "time"

const (
	DefaultInterval    = 2 * time.Second
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 500 * time.Millisecond
)
