package events

import "time"

// StoreCallStart is emitted before a Data Store Gateway call.
// CallID pairs it with the matching StoreCallFinish.
type StoreCallStart struct {
	CallID     uint64
	Collection string
	Op         string
}

// StoreCallFinish is emitted after a Data Store Gateway call returns.
type StoreCallFinish struct {
	CallID     uint64
	Collection string
	Op         string
	Err        error
	Duration   time.Duration
}
