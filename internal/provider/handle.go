package provider

import (
	"sync"

	"github.com/jask/cloudanchors/internal/anchor"
)

// Handle is a simulated platform anchor. It satisfies anchor.Handle.
type Handle struct {
	mu       sync.Mutex
	id       string
	status   anchor.Status
	pose     Pose
	detached bool
}

var _ anchor.Handle = (*Handle)(nil)

func (h *Handle) Status() anchor.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) CloudID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Pose is the anchored pose. For a resolving handle it is only known after
// success.
func (h *Handle) Pose() Pose {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pose
}

// Detach stops tracking. In-flight service work still runs to completion.
func (h *Handle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
}

func (h *Handle) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

func (h *Handle) finish(id string, pose Pose, status anchor.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id != "" {
		h.id = id
	}
	if status == anchor.StatusSuccess {
		h.pose = pose
	}
	h.status = status
}
