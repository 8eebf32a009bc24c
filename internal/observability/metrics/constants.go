// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Label value constants used for metric labels.
const (
	// StatusSuccess is the status label for successful operations.
	StatusSuccess = "success"
	// StatusRejected is the status label for operations refused by a unit.
	StatusRejected = "rejected"
	// StatusError is the status label for failed operations.
	StatusError = "error"
	// LabelDevice is the negotiation mode when the unit accepted the device layout.
	LabelDevice = "device"
	// LabelAdapted is the negotiation mode when the router chose another layout.
	LabelAdapted = "adapted"
)

// Histogram bucket configuration constants.
const (
	// BucketStart10us is the starting bucket for audio callback histograms.
	BucketStart10us = 0.00001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
