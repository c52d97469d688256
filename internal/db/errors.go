package db

import (
	"errors"
	"fmt"
	"strings"

	sqlitedriver "github.com/mattn/go-sqlite3"

	"github.com/codr1/Shuttlers/internal/models"
)

// MapConstraintError converts storage constraint violations into domain error
// kinds so a race lost at commit surfaces the same way as a failed pre-check.
// Other errors are returned unchanged.
func MapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlitedriver.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlitedriver.ErrConstraintUnique, sqlitedriver.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %s", models.ErrDuplicate, sqliteErr.Error())
	case sqlitedriver.ErrConstraintTrigger:
		if strings.Contains(sqliteErr.Error(), "booking slot conflict") {
			return fmt.Errorf("%w: %s", models.ErrConflict, sqliteErr.Error())
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlitedriver.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlitedriver.ErrConstraintUnique
}
