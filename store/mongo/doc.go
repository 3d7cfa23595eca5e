// Package mongo is a MongoDB queue backend.
//
// Each job is one document {_id, status, timestamp, payload}. Claim is a
// single FindOneAndUpdate that moves a READY document to ACTIVE; MongoDB
// applies it atomically per document, so concurrent consumers never receive
// the same job.
package mongo
