package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/provider"
	"github.com/jask/cloudanchors/internal/shortcode"
)

var (
	ErrUnsupportedPlane = errors.New("anchors can only be placed on upward-facing horizontal planes")
	ErrClearFirst       = errors.New("please clear the current anchor first")
)

// AnchorProvider creates platform anchors.
type AnchorProvider interface {
	Host(hit provider.HitResult) *provider.Handle
	Resolve(cloudID string) *provider.Handle
}

// AnchorService is the glue between user input, the anchor provider and the
// lifecycle. Host, CheckResolvable and Resolve touch the lifecycle and must
// run on the goroutine that polls it; Lookup does I/O and must not.
type AnchorService struct {
	Store     shortcode.Store
	Provider  AnchorProvider
	Lifecycle *anchor.Lifecycle
}

// Host starts hosting an anchor at a tapped location.
func (s *AnchorService) Host(hit provider.HitResult) (*provider.Handle, error) {
	if hit.Plane != provider.PlaneHorizontalUpward {
		return nil, fmt.Errorf("%w (got %s)", ErrUnsupportedPlane, hit.Plane)
	}
	if st := s.Lifecycle.State(); st != anchor.StateNone {
		return nil, fmt.Errorf("%w: state is %s", anchor.ErrAlreadyInProgress, st)
	}
	h := s.Provider.Host(hit)
	if err := s.Lifecycle.BeginHosting(h); err != nil {
		h.Detach()
		return nil, err
	}
	return h, nil
}

// CheckResolvable reports whether the resolve dialog may open.
func (s *AnchorService) CheckResolvable() error {
	if s.Lifecycle.Handle() != nil {
		return ErrClearFirst
	}
	return nil
}

// Lookup parses a user-entered short code and fetches its anchor id.
func (s *AnchorService) Lookup(ctx context.Context, input string) (string, error) {
	code, err := shortcode.ParseCode(input)
	if err != nil {
		return "", err
	}
	return s.Store.Lookup(ctx, code)
}

// Resolve starts resolving a looked-up anchor id.
func (s *AnchorService) Resolve(cloudID string) (*provider.Handle, error) {
	if err := s.CheckResolvable(); err != nil {
		return nil, err
	}
	h := s.Provider.Resolve(cloudID)
	if err := s.Lifecycle.BeginResolving(h); err != nil {
		h.Detach()
		return nil, err
	}
	return h, nil
}

// Clear drops the current anchor.
func (s *AnchorService) Clear() { s.Lifecycle.Clear() }
