package shortcode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("short code not found")
	ErrInvalidCode   = errors.New("invalid short code")
	ErrAlreadyExists = errors.New("short code already bound")
	ErrUnavailable   = errors.New("short code store unavailable")

	// ErrExhausted is returned by Allocate when no free code is left.
	ErrExhausted = fmt.Errorf("%w: code space exhausted", ErrUnavailable)
)

// Code is a small positive integer standing in for a cloud anchor id.
type Code int64

func (c Code) Valid() bool { return c > 0 }

func (c Code) String() string { return strconv.FormatInt(int64(c), 10) }

// Record binds a code to an anchor id. Records are written once.
type Record struct {
	Code      Code
	AnchorID  string
	CreatedAt time.Time
}

// Store associates short codes with anchor ids.
//
// Allocate must hand out a code that is not bound to any record, even when
// several clients allocate at once. Put fails with ErrAlreadyExists when the
// code is taken. Lookup fails with ErrNotFound for unknown codes and
// ErrInvalidCode for codes that are not positive.
//
// Methods block on I/O. Callers that drive a frame loop run them off the loop
// and deliver the result back as a message.
type Store interface {
	Allocate(ctx context.Context) (Code, error)
	Put(ctx context.Context, code Code, anchorID string) error
	Lookup(ctx context.Context, code Code) (string, error)
}

// ParseCode validates user input. Anything that is not a positive base-10
// integer yields ErrInvalidCode.
func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidCode, s)
	}
	c := Code(n)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCode, n)
	}
	return c, nil
}

// Retryable reports whether err is a transient store failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrExhausted)
}
