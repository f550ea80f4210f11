package repository

import "time"

// CloudAnchor is a hosted anchor kept by the simulated anchor service.
// Pose holds the CBOR-encoded pose captured at hosting time.
type CloudAnchor struct {
	ID       string
	Pose     []byte
	HostedAt time.Time
}
