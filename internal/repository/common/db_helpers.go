package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
)

// GetByField - универсальная функция для получения сущности по любому полю.
// Работает и с *sqlx.DB, и с *sqlx.Tx.
func GetByField[T any](ctx context.Context, q sqlx.QueryerContext, table, field string, value interface{}) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", table, field)

	if err := sqlx.GetContext(ctx, q, &entity, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainrepo.ErrNotFound
		}
		return nil, fmt.Errorf("get by %s from %s: %w", field, table, err)
	}

	return &entity, nil
}

// GetByFieldForUpdate - то же, что GetByField, но с блокировкой строки (SELECT ... FOR UPDATE).
// Имеет смысл только внутри транзакции.
func GetByFieldForUpdate[T any](ctx context.Context, q sqlx.QueryerContext, table, field string, value interface{}) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 FOR UPDATE", table, field)

	if err := sqlx.GetContext(ctx, q, &entity, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainrepo.ErrNotFound
		}
		return nil, fmt.Errorf("lock by %s from %s: %w", field, table, err)
	}

	return &entity, nil
}

// ExpectAffected проверяет, что UPDATE затронул хотя бы одну строку.
func ExpectAffected(res sql.Result, err error) error {
	if err != nil {
		return MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domainrepo.ErrNotFound
	}
	return nil
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			// При панике откатываем транзакцию
			_ = tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	err = fn(tx)
	if err != nil {
		// При ошибке откатываем транзакцию
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	// Коммитим транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
