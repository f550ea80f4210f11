// Package provider simulates a cloud anchor service.
//
// Host and Resolve return immediately with a pending Handle; the outcome is
// decided on a background goroutine after a configured latency and is
// observed only through Handle.Status, never by blocking. Hosted anchors are
// persisted in the cloud_anchors table with their pose encoded as CBOR, so a
// later session (or another process sharing the database) can resolve them.
package provider
