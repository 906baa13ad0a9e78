// Package guard holds in-process protections for the public submission
// endpoint and for calls to the AI functions.
package guard

import "time"

// Result is the outcome of a guard check.
type Result struct {
	Allowed bool
	Reason  string
	Guard   string
	// RetryAfter is set when the caller can tell how long to back off.
	RetryAfter time.Duration
}

func allow() Result {
	return Result{Allowed: true}
}
