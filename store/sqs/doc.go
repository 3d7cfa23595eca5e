// Package sqs is an Amazon SQS queue backend.
//
// Claim receives one message and leaves it invisible for the queue's
// visibility timeout. Remove deletes it by receipt handle; Requeue makes it
// visible again immediately. Message ids are the SQS MessageId.
//
// Payloads that are not valid UTF-8 (msgpack) are sent base64 encoded and
// flagged with a message attribute so they decode transparently.
package sqs
