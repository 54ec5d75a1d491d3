package database

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
)

const (
	maxStorageRetries   = 1
	maxDuplicateRetries = 2
)

// Store owns the connection pool and runs transactional units of work
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewStore creates a new store
func NewStore(db *gorm.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB returns the pool for non-transactional reads and best-effort writes
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithinTx runs fn in a transaction. Storage faults are retried once and
// unique violations up to twice more, each time re-running fn from scratch.
// fn must not keep state between attempts.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	storageRetries, duplicateRetries := 0, 0
	for {
		err := s.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(err, apperrors.KindStorage, "transaction aborted")
		}

		classified := apperrors.FromDB(err, "transaction failed")
		switch apperrors.KindOf(classified) {
		case apperrors.KindDuplicate:
			if duplicateRetries < maxDuplicateRetries {
				duplicateRetries++
				s.logger.WithError(err).WithField("attempt", duplicateRetries).Debug("Retrying transaction after unique violation")
				continue
			}
		case apperrors.KindStorage:
			if storageRetries < maxStorageRetries {
				storageRetries++
				s.logger.WithError(err).Warn("Retrying transaction after storage fault")
				continue
			}
		}
		return classified
	}
}
