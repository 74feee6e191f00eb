package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"lineup-chat/internal/apperr"
)

// Options bounds every store call.
type Options struct {
	Timeout  time.Duration
	Attempts uint64
}

// DefaultOptions is used when a zero Options is supplied.
var DefaultOptions = Options{Timeout: 5 * time.Second, Attempts: 3}

type caller struct {
	opts Options
	// newBackOff is swapped in tests to avoid sleeping.
	newBackOff func() backoff.BackOff
}

func newCaller(opts Options) caller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultOptions.Attempts
	}
	return caller{
		opts: opts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// do runs fn with a per-attempt timeout, retrying transient failures with
// exponential backoff. The returned error is always classified.
func (c caller) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.opts.Attempts-1), ctx)

	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err == nil {
		return nil
	}
	return classify(op, err)
}

func classify(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(op + ": not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &apperr.Error{Kind: apperr.KindConflict, Message: op + ": already exists", Err: err}
		case "23503", "22P02", "23514":
			return &apperr.Error{Kind: apperr.KindValidation, Message: op + ": invalid reference", Err: err}
		}
	}

	if isTransient(err) {
		return apperr.StoreUnavailable(op+": store unavailable", err)
	}
	return errors.Wrap(err, op)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case strings.HasPrefix(code, "08"):
			return true
		case code == "40001", code == "40P01", code == "57P01", code == "57P03", code == "53300":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
