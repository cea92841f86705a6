package engine

import (
	"context"
	"time"
)

// lockAttemptInterval is the wall-clock allowance per requested attempt.
// The context deadline (attempts × lockAttemptInterval) bounds the whole
// retry loop. lock.Acquire waits about 500ms before its second attempt
// and longer after each one, so while another owner holds the lease the
// deadline ends the retries well before all requested attempts are made.
const lockAttemptInterval = 100 * time.Millisecond

func contextWithAttempts(attempts int) (context.Context, context.CancelFunc) {
	if attempts <= 0 {
		attempts = 1
	}
	return context.WithTimeout(context.Background(), time.Duration(attempts)*lockAttemptInterval)
}
