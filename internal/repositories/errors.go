package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means the test row changed between read and write.
	ErrVersionConflict = errors.New("test version conflict")
)

// IsNotFoundError reports whether err is a missing-row error from any layer
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
