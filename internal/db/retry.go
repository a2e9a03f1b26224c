package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/logger"
)

// Operation is a single attempt of a write that may collide on _id.
type Operation func() error

// IsRetryable decides whether a failed attempt should be repeated.
type IsRetryable func(err error) bool

// DefaultMaxRetries bounds retries after the first attempt.
const DefaultMaxRetries = 3

// Try runs op, retrying duplicate-key failures up to DefaultMaxRetries times.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries retries while retryable
// reports true. Other errors are returned immediately.
func WithRetries(op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		logger.Log.Debug("write_retry", zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries Mongo error code 11000.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// Identifiable documents can (re)generate their own _id.
type Identifiable interface {
	GenID()
}

// InsertWithNewID inserts doc, generating a fresh _id for every attempt so a
// random-ID collision is resolved by retrying.
func InsertWithNewID(ctx context.Context, coll *mongo.Collection, doc Identifiable) error {
	return Try(func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
}
