package show

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errNotYet = errors.New("not yet")

// poll runs check every interval, at most attempts times. check returning an
// error stops the loop with that error; running out of attempts yields
// ErrHandshakeTimeout.
func poll(ctx context.Context, attempts int, interval time.Duration, check func() (bool, error)) error {
	if attempts <= 0 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		done, err := check()
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !done {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if errors.Is(err, errNotYet) {
		return ErrHandshakeTimeout
	}
	return err
}
