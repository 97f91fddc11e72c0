package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

// Store реализует UnitOfWork поверх пула PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Repositories возвращает репозитории, работающие напрямую с пулом.
func (s *Store) Repositories() domainrepo.Repositories {
	return newRepositories(s.db)
}

// Do выполняет fn в одной транзакции БД.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domainrepo.Repositories) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, newRepositories(tx))
	})
}

func newRepositories(q sqlx.ExtContext) domainrepo.Repositories {
	return domainrepo.Repositories{
		Transactions: NewTransactionRepository(q),
		Escrows:      NewEscrowRepository(q),
		Settlements:  NewSettlementRepository(q),
		Payments:     NewPaymentRepository(q),
		Credits:      NewCreditRepository(q),
		Wallets:      NewWalletRepository(q),
		Disputes:     NewDisputeRepository(q),
		History:      NewHistoryRepository(q),
	}
}
