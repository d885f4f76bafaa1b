package repositories

import (
	"github.com/go-faster/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrIntegrity is returned when a write violates a storage constraint,
	// such as a duplicate category name.
	ErrIntegrity = errors.New("integrity constraint violated")
)

// translate maps GORM errors onto the package sentinels. The DB handle must be
// opened with gorm.Config{TranslateError: true} for duplicate keys to be detected.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.Wrap(ErrIntegrity, err.Error())
	default:
		return err
	}
}
