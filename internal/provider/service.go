package provider

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/database/repository"
)

// Config tunes the simulation.
type Config struct {
	// APIKey must be set for any request to succeed.
	APIKey         string
	HostLatency    time.Duration
	ResolveLatency time.Duration
	// FailureRate is the probability in [0,1] that a request fails with
	// ERROR_SERVICE_UNAVAILABLE.
	FailureRate float64
	Logger      *slog.Logger
}

// Service is the simulated cloud anchor endpoint.
type Service struct {
	ctx     context.Context
	anchors *repository.CloudAnchorRepo
	cfg     Config
	logger  *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
	wg     sync.WaitGroup
}

// NewService returns a service whose background work lives as long as ctx.
func NewService(ctx context.Context, anchors *repository.CloudAnchorRepo, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		ctx:     ctx,
		anchors: anchors,
		cfg:     cfg,
		logger:  logger,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Host uploads the anchor at hit. The returned handle is pending.
func (s *Service) Host(hit HitResult) *Handle {
	h := &Handle{status: anchor.StatusPending, pose: hit.Pose}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if status, ok := s.admit(s.cfg.HostLatency); !ok {
			h.finish("", Pose{}, status)
			return
		}
		blob, err := EncodePose(hit.Pose)
		if err != nil {
			s.logger.Error("provider: encode pose", "err", err)
			h.finish("", Pose{}, anchor.ErrorHostingDatasetProcessingFailed)
			return
		}
		id := "ua-" + uuid.NewString()
		if err := s.anchors.Insert(s.ctx, repository.CloudAnchor{ID: id, Pose: blob}); err != nil {
			s.logger.Error("provider: persist hosted anchor", "err", err)
			h.finish("", Pose{}, anchor.ErrorInternal)
			return
		}
		s.logger.Info("provider: hosted", "anchor_id", id, "plane", hit.Plane.String())
		h.finish(id, hit.Pose, anchor.StatusSuccess)
	}()
	return h
}

// Resolve fetches a previously hosted anchor. The returned handle is pending.
func (s *Service) Resolve(cloudID string) *Handle {
	h := &Handle{id: cloudID, status: anchor.StatusPending}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if status, ok := s.admit(s.cfg.ResolveLatency); !ok {
			h.finish("", Pose{}, status)
			return
		}
		rec, err := s.anchors.Get(s.ctx, cloudID)
		if err != nil {
			s.logger.Error("provider: load hosted anchor", "anchor_id", cloudID, "err", err)
			h.finish("", Pose{}, anchor.ErrorInternal)
			return
		}
		if rec == nil {
			h.finish("", Pose{}, anchor.ErrorCloudIDNotFound)
			return
		}
		pose, err := DecodePose(rec.Pose)
		if err != nil {
			s.logger.Error("provider: corrupt pose", "anchor_id", cloudID, "err", err)
			h.finish("", Pose{}, anchor.ErrorInternal)
			return
		}
		s.logger.Info("provider: resolved", "anchor_id", cloudID)
		h.finish("", pose, anchor.StatusSuccess)
	}()
	return h
}

// Wait blocks until background work has finished.
func (s *Service) Wait() { s.wg.Wait() }

// admit waits out the latency and applies authorization and failure
// injection. It reports false with the error status to publish.
func (s *Service) admit(latency time.Duration) (anchor.Status, bool) {
	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.ctx.Done():
			return anchor.ErrorServiceUnavailable, false
		}
	}
	if s.cfg.APIKey == "" {
		return anchor.ErrorNotAuthorized, false
	}
	if s.cfg.FailureRate > 0 {
		s.randMu.Lock()
		roll := s.rand.Float64()
		s.randMu.Unlock()
		if roll < s.cfg.FailureRate {
			return anchor.ErrorServiceUnavailable, false
		}
	}
	return anchor.StatusSuccess, true
}
