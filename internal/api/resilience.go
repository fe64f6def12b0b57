package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for idempotent reads.
type RetryConfig struct {
	MaxRetries      int           // 0 disables retrying
	InitialInterval time.Duration // default 200ms
	MaxInterval     time.Duration // default 2s
}

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // default 5
	OpenTimeout         time.Duration // default 30s
}

// serverFault carries a 5xx reply through the breaker so it counts as a failure
// while the caller still gets the response body.
type serverFault struct {
	reply reply
}

func (serverFault) Error() string { return "backend server error" }

func newBreaker(name string, cfg BreakerConfig, log *logrus.Entry) *gobreaker.CircuitBreaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.ConsecutiveFailures

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's choice, not a backend failure.
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var reqErr requestError
			return errors.As(err, &reqErr)
		},
	})
}

// execute sends the call through the circuit breaker, retrying GETs that got no
// response according to the retry policy.
func (c *Client) execute(ctx context.Context, cl call) (reply, error) {
	if cl.method != http.MethodGet || c.retry.MaxRetries <= 0 {
		return c.guarded(ctx, cl)
	}

	var r reply
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		var err error
		r, err = c.guarded(ctx, cl)
		if err == nil {
			return nil
		}

		var reqErr requestError
		if errors.As(err, &reqErr) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = orDefault(c.retry.InitialInterval, 200*time.Millisecond)
	policy.MaxInterval = orDefault(c.retry.MaxInterval, 2*time.Second)
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithFields(logrus.Fields{"path": cl.path, "wait": wait}).Debug("retrying backend read")
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retry.MaxRetries)), ctx), notify)
	return r, err
}

// guarded runs one round trip inside the breaker. 5xx replies count as breaker
// failures but are handed back as ordinary replies.
func (c *Client) guarded(ctx context.Context, cl call) (reply, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.roundTrip(ctx, cl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if r.status >= 500 {
			return nil, serverFault{reply: r}
		}
		return r, nil
	})

	var fault serverFault
	if errors.As(err, &fault) {
		return fault.reply, nil
	}
	if err != nil {
		return reply{}, err
	}
	return result.(reply), nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
