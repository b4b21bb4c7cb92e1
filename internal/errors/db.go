package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (field)=(value) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table ..."
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table ..."
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableNouns maps table names to the nouns used in user-facing messages.
var tableNouns = map[string]string{
	"audiences":      "audience",
	"workflow_runs":  "workflow run",
	"prospects":      "prospect",
	"site_analyses":  "site analysis",
	"contacts":       "contact",
	"worker_jobs":    "job",
	"schema_version": "schema version",
}

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict (with the offending field when it can be recovered)
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - context deadline/cancel → Timeout/Canceled
//
// Errors that are not recognized are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "request was canceled", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "this value already exists",
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: foreignKeyMessage(pgErr), Cause: pgErr}
	case pgerrcode.CheckViolation:
		return constraintValidation(pgErr, "this field has an invalid value")
	case pgerrcode.NotNullViolation:
		return constraintValidation(pgErr, "this field is required")
	default:
		return &AppError{Code: ErrCodeInternal, Message: "a database error occurred", Cause: pgErr}
	}
}

func constraintValidation(pgErr *pgconn.PgError, fieldMsg string) *AppError {
	if pgErr.ColumnName != "" {
		return &AppError{Code: ErrCodeValidation, Message: fieldMsg, Field: pgErr.ColumnName, Cause: pgErr}
	}
	return &AppError{Code: ErrCodeValidation, Message: "invalid data", Cause: pgErr}
}

// uniqueField recovers the violating column from, in order of reliability,
// the column metadata, the detail message, or the constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "cannot delete because this item is in use by a " + tableNoun(m[1])
	}
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "the referenced " + tableNoun(m[1]) + " does not exist"
	}
	if pgErr.TableName != "" {
		return "cannot complete operation because this item is in use by a " + tableNoun(pgErr.TableName)
	}
	return inferForeignKeyMessage(pgErr.ConstraintName)
}

// inferFieldFromConstraint infers the field from names like "audiences_name_key".
// Multi-column and expression constraints are ambiguous and yield "".
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	if isFunctionName(parts[1]) {
		return ""
	}
	return parts[1]
}

func tableNoun(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	if noun, ok := tableNouns[tableName]; ok {
		return noun
	}
	return strings.ReplaceAll(tableName, "_", " ")
}

func inferForeignKeyMessage(constraintName string) string {
	constraintName = strings.ToLower(constraintName)
	switch {
	case strings.Contains(constraintName, "audience"):
		return "the audience is missing or still referenced by workflow runs"
	case strings.Contains(constraintName, "run"):
		return "the workflow run is missing or still referenced"
	case strings.Contains(constraintName, "prospect"):
		return "the prospect is missing or still referenced"
	default:
		return "cannot complete operation because this item is in use"
	}
}

func isFunctionName(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "ltrim", "rtrim", "md5", "encode", "decode":
		return true
	default:
		return false
	}
}
