package repository

import "context"

// Repositories - набор репозиториев, работающих в одной единице работы.
type Repositories struct {
	Transactions TransactionRepository
	Escrows      EscrowRepository
	Settlements  SettlementRepository
	Payments     PaymentRepository
	Credits      CreditRepository
	Wallets      WalletRepository
	Disputes     DisputeRepository
	History      HistoryRepository
}

// UnitOfWork выполняет набор записей атомарно: либо фиксируются все, либо ни одна.
type UnitOfWork interface {
	// Repositories возвращает репозитории вне транзакции (для чтения).
	Repositories() Repositories
	// Do выполняет fn в одной транзакции хранилища; ошибка fn откатывает все записи.
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
