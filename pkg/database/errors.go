package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514": // check_violation
		return mapCheckConstraint(pqErr)

	case "23505": // unique_violation
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503": // foreign_key_violation
		return errors.BadRequest("referenced record does not exist")

	case "22P02": // invalid_text_representation, e.g. "1" for a uuid column
		return errors.BadRequest("malformed identifier")

	case "23502": // not_null_violation
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_nonnegative"):
		return errors.Validation(map[string]string{"quantity": "must be greater than or equal to 0"})
	case strings.Contains(constraint, "reorder_level_nonnegative"):
		return errors.Validation(map[string]string{"reorder_level": "must be greater than or equal to 0"})
	case strings.Contains(constraint, "unit_weight_positive"):
		return errors.Validation(map[string]string{"unit_weight": "must be greater than 0"})
	case strings.Contains(constraint, "user_type_valid"):
		return errors.Validation(map[string]string{"user_type": "must be one of: super_admin, company_admin"})
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "compartment"):
		return "this compartment is already occupied by another medicine"
	case strings.Contains(constraint, "hardware_id"):
		return "a botiquin with this hardware id is already registered"
	case strings.Contains(constraint, "username"):
		return "this username is already taken"
	case strings.Contains(constraint, "email"):
		return "a user with this email already exists"
	default:
		return "a record with these values already exists"
	}
}

// MapError maps pq errors and passes everything else through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
