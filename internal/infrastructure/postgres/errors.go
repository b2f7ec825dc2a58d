package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Códigos SQLSTATE relevantes para el ledger.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// mapError traduce errores de PostgreSQL a errores de dominio, conservando el original en el mensaje.
// Lock timeout, deadlock y fallos de serialización son conflictos reintentables.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrConflict, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrDuplicate, pgErr.Detail)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidState, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, pgErr.Detail)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validID evita consultar con IDs que PostgreSQL rechazaría como UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
