// Package metrics provides the Prometheus collectors used by lesionscan.
package metrics

import "time"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation label values shared by the datastore and upload collectors.
const (
	OpCreateUser = "create_user"
	OpVerifyUser = "verify_user"
	OpRecord     = "record"
	OpListFor    = "list_for"
	OpCount      = "count"
	OpSave       = "save"
	OpRemove     = "remove"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms starts a 1ms based histogram.
	BucketStart1ms = 0.001
	// BucketStart100us starts a 0.1ms based histogram.
	BucketStart100us = 0.0001
	// BucketStart100B starts a byte-size histogram at 100 bytes.
	BucketStart100B = 100.0
	// BucketStart1KB starts a byte-size histogram at 1KB.
	BucketStart1KB = 1024.0

	BucketFactor2  = 2
	BucketFactor4  = 4
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount8  = 8
	BucketCount12 = 12
)

// ShutdownTimeout bounds the graceful stop of a standalone metrics listener.
const ShutdownTimeout = 5 * time.Second
