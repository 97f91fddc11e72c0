package common

import (
	"errors"

	"github.com/lib/pq"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
)

// Коды ошибок PostgreSQL, которые имеют доменный смысл.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// ErrCheckViolation - строка нарушила CHECK ограничение таблицы.
var ErrCheckViolation = errors.New("check constraint violated")

// MapError переводит ошибки драйвера в общие ошибки репозиториев.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return errors.Join(domainrepo.ErrAlreadyExists, err)
		case pgCheckViolation:
			return errors.Join(ErrCheckViolation, err)
		}
	}
	return err
}
