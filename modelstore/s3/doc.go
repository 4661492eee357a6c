// Package s3 implements modelstore.Store on AWS S3.
//
// It also provides a DynamoDB-backed Registry that tracks the latest
// committed snapshot per model, giving concurrent writers the atomic
// compare-and-swap semantics that S3 lacks.
package s3
