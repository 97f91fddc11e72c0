package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/events"
	"github.com/ignatzorin/credit-transaction-service/internal/logger"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

// Причины, которые сервис пишет в историю сам.
const (
	ReasonTransactionCompleted = "Transaction completed"
	ReasonTransactionCancelled = "Transaction cancelled"
	ReasonTransactionExpired   = "Transaction expired"
	ReasonPaymentInitiated     = "Payment initiated"
	ReasonPaymentCompleted     = "Payment completed"
	ReasonPaymentFailed        = "Payment failed"
	ReasonCreditsTransferred   = "Credits transferred"
	ReasonCreditTransferFailed = "Credit transfer failed"
)

const (
	defaultPageLimit   = 20
	maxPageLimit       = 100
	maxReasonLength    = 255
	defaultExpiryBatch = 100
)

// TransactionServiceConfig - параметры бизнес-логики сделок.
type TransactionServiceConfig struct {
	FeeRate         decimal.Decimal
	DefaultCurrency string
	// TTL задаёт expires_at новой сделки; 0 отключает истечение.
	TTL         time.Duration
	ExpiryBatch int
}

// TransitionObserver получает уже зафиксированные изменения статусов.
type TransitionObserver interface {
	TransactionTransitioned(from, to valueobject.TransactionStatus)
	DisputeChanged(status valueobject.DisputeStatus)
}

// TransactionService - оркестратор жизненного цикла сделки.
// Все переходы статуса проходят через transition под блокировкой строки сделки.
type TransactionService struct {
	uow       domainrepo.UnitOfWork
	publisher events.Publisher
	cache     *CacheService
	observer  TransitionObserver
	cfg       TransactionServiceConfig
	now       func() time.Time
}

func NewTransactionService(uow domainrepo.UnitOfWork, publisher events.Publisher, cfg TransactionServiceConfig) *TransactionService {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "VND"
	}
	if cfg.ExpiryBatch <= 0 {
		cfg.ExpiryBatch = defaultExpiryBatch
	}
	return &TransactionService{
		uow:       uow,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetCache подключает кэш сводок.
func (s *TransactionService) SetCache(cache *CacheService) {
	s.cache = cache
}

// SetObserver подключает наблюдателя переходов (метрики).
func (s *TransactionService) SetObserver(observer TransitionObserver) {
	s.observer = observer
}

// CreateTransaction создаёт сделку в PENDING вместе со всеми подучётами в одной единице работы.
func (s *TransactionService) CreateTransaction(ctx context.Context, in models.CreateTransactionInput) (*models.Transaction, error) {
	if in.ListingID <= 0 {
		return nil, apperror.Validation("listing_id должен быть положительным")
	}
	if in.BuyerID <= 0 || in.SellerID <= 0 {
		return nil, apperror.Validation("buyer_id и seller_id должны быть положительными")
	}
	if in.BuyerID == in.SellerID {
		return nil, apperror.Validation("покупатель и продавец не могут совпадать")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperror.Validation("код валюты должен состоять из трёх букв")
	}
	if _, err := valueobject.NewPositiveMoney("credit_amount", in.CreditAmount, currency); err != nil {
		return nil, err
	}
	if _, err := valueobject.NewPositiveMoney("price_per_credit", in.PricePerCredit, currency); err != nil {
		return nil, err
	}
	if _, err := valueobject.NewPositiveMoney("total_price", in.TotalPrice, currency); err != nil {
		return nil, err
	}
	split, err := valueobject.SplitFee(in.TotalPrice, s.cfg.FeeRate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.Transaction{
		ListingID:      in.ListingID,
		BuyerID:        in.BuyerID,
		SellerID:       in.SellerID,
		CreditAmount:   in.CreditAmount,
		PricePerCredit: in.PricePerCredit,
		TotalPrice:     in.TotalPrice,
		Currency:       currency,
		Status:         valueobject.TransactionStatusPending,
	}
	if s.cfg.TTL > 0 {
		expiresAt := now.Add(s.cfg.TTL)
		t.ExpiresAt = &expiresAt
	}

	err = s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		if err := repos.Transactions.Create(ctx, t); err != nil {
			return apperror.Database(err, "не удалось создать транзакцию")
		}

		l := newLedgers(repos)
		if _, err := l.escrow.Open(ctx, t, now); err != nil {
			return err
		}
		if _, err := l.settlement.Open(ctx, t, split); err != nil {
			return err
		}
		if _, err := l.wallet.Open(ctx, t); err != nil {
			return err
		}
		if _, err := l.credit.Open(ctx, t); err != nil {
			return err
		}

		log.touch(t.ID)
		log.publish(events.TypeTransactionCreated, transactionPayload(t, "", nil))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.ForTransaction(t.ID).WithFields(logrus.Fields{
		"buyer_id":     t.BuyerID,
		"seller_id":    t.SellerID,
		"total_price":  t.TotalPrice.String(),
		"platform_fee": split.PlatformFee.String(),
	}).Info("транзакция создана")
	return t, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := s.uow.Repositories().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, mapTransactionLookup(err)
	}
	return t, nil
}

// GetTransactionSummary возвращает сделку вместе со статусами подучётов.
func (s *TransactionService) GetTransactionSummary(ctx context.Context, id int64) (*models.TransactionSummary, error) {
	load := func(ctx context.Context) (*models.TransactionSummary, error) {
		summary, err := s.uow.Repositories().Transactions.GetSummary(ctx, id)
		if err != nil {
			return nil, mapTransactionLookup(err)
		}
		return summary, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.GetOrLoad(ctx, id, load)
}

func (s *TransactionService) ListBuyerTransactions(ctx context.Context, buyerID int64, limit, offset int) (*models.Page[models.Transaction], error) {
	repo := s.uow.Repositories().Transactions
	return s.listTransactions(ctx, buyerID, limit, offset, repo.ListByBuyer, repo.CountByBuyer)
}

func (s *TransactionService) ListSellerTransactions(ctx context.Context, sellerID int64, limit, offset int) (*models.Page[models.Transaction], error) {
	repo := s.uow.Repositories().Transactions
	return s.listTransactions(ctx, sellerID, limit, offset, repo.ListBySeller, repo.CountBySeller)
}

func (s *TransactionService) listTransactions(
	ctx context.Context,
	userID int64,
	limit, offset int,
	list func(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error),
	count func(ctx context.Context, userID int64) (int, error),
) (*models.Page[models.Transaction], error) {
	limit, offset = normalizePage(limit, offset)
	items, err := list(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить список транзакций")
	}
	total, err := count(ctx, userID)
	if err != nil {
		return nil, apperror.Database(err, "не удалось посчитать транзакции")
	}
	return &models.Page[models.Transaction]{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetHistory возвращает журнал переходов в порядке применения.
func (s *TransactionService) GetHistory(ctx context.Context, id int64) ([]models.HistoryEntry, error) {
	repos := s.uow.Repositories()
	if _, err := repos.Transactions.GetByID(ctx, id); err != nil {
		return nil, mapTransactionLookup(err)
	}
	history, err := repos.History.ListByTransaction(ctx, id)
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить историю транзакции")
	}
	return history, nil
}

// UpdateTransactionStatus выполняет явный переход по таблице переходов.
// Для COMPLETED и CANCELLED применяются побочные эффекты на escrow, settlement и кошельке.
func (s *TransactionService) UpdateTransactionStatus(ctx context.Context, id int64, status valueobject.TransactionStatus, reason *string, changedBy *int64) (*models.Transaction, error) {
	if !status.IsValid() {
		return nil, apperror.Validation("некорректный статус транзакции: %s", status)
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	var t *models.Transaction
	err = s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}
		return s.transition(ctx, repos, log, t, status, reason, changedBy)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CancelTransaction отменяет сделку. Завершённую сделку отменить нельзя.
func (s *TransactionService) CancelTransaction(ctx context.Context, id int64, reason string, changedBy *int64) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("причина отмены обязательна")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, apperror.Validation("причина отмены длиннее %d символов", maxReasonLength)
	}

	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}
		return s.cancelLocked(ctx, repos, log, t, reason, changedBy)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InitiatePaymentInput - привязка внешнего платежа к сделке.
type InitiatePaymentInput struct {
	TransactionID int64
	PaymentID     int64
	Method        *string
	// Amount, если задан, обязан совпадать с total_price.
	Amount *decimal.Decimal
}

// InitiatePayment привязывает платёж и переводит сделку PENDING → PAYMENT_PENDING.
// Повтор с тем же payment_id ничего не меняет.
func (s *TransactionService) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (*models.Transaction, error) {
	if in.PaymentID <= 0 {
		return nil, apperror.Validation("payment_id должен быть положительным")
	}

	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, in.TransactionID); err != nil {
			return err
		}

		l := newLedgers(repos)
		existing, err := l.payment.Find(ctx, t.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.PaymentID == in.PaymentID {
				return nil
			}
			return apperror.Conflict("к транзакции уже привязан другой платёж")
		}
		if !t.Status.CanTransitionTo(valueobject.TransactionStatusPaymentPending) {
			return apperror.InvalidTransition(t.Status, valueobject.TransactionStatusPaymentPending)
		}

		amount := t.TotalPrice
		if in.Amount != nil {
			amount = *in.Amount
		}
		if _, err := l.payment.Link(ctx, t, in.PaymentID, in.Method, amount); err != nil {
			return err
		}
		return s.transition(ctx, repos, log, t, valueobject.TransactionStatusPaymentPending, strPtr(ReasonPaymentInitiated), nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// HandlePaymentCompleted отмечает платёж проведённым и переводит сделку в PAYMENT_COMPLETED.
// Повторная доставка события ничего не меняет.
func (s *TransactionService) HandlePaymentCompleted(ctx context.Context, id int64) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}

		l := newLedgers(repos)
		p, err := l.payment.Find(ctx, t.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperror.Conflict("платёж по транзакции не инициирован")
		}
		switch p.Status {
		case valueobject.PaymentStatusCompleted, valueobject.PaymentStatusRefunded:
			// событие уже применено
			return nil
		case valueobject.PaymentStatusFailed:
			return apperror.Conflict("платёж уже отмечен как неуспешный")
		}
		if !t.Status.CanTransitionTo(valueobject.TransactionStatusPaymentCompleted) {
			return apperror.InvalidTransition(t.Status, valueobject.TransactionStatusPaymentCompleted)
		}

		now := s.now()
		if err := l.payment.SetStatus(ctx, t.ID, valueobject.PaymentStatusCompleted, &now); err != nil {
			return err
		}
		if err := l.wallet.SetStatus(ctx, t.ID, valueobject.WalletStatusReserved, now); err != nil {
			return err
		}
		return s.transition(ctx, repos, log, t, valueobject.TransactionStatusPaymentCompleted, strPtr(ReasonPaymentCompleted), nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// HandlePaymentFailed отмечает платёж неуспешным и отменяет сделку.
// Отказ после успешного платежа - ConflictError.
func (s *TransactionService) HandlePaymentFailed(ctx context.Context, id int64) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}

		l := newLedgers(repos)
		p, err := l.payment.Find(ctx, t.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperror.Conflict("платёж по транзакции не инициирован")
		}
		switch p.Status {
		case valueobject.PaymentStatusFailed:
			return nil
		case valueobject.PaymentStatusCompleted, valueobject.PaymentStatusRefunded:
			return apperror.Conflict("платёж уже проведён, отказ не применим")
		}

		if err := l.payment.SetStatus(ctx, t.ID, valueobject.PaymentStatusFailed, nil); err != nil {
			return err
		}
		log.touch(t.ID)
		if t.Status == valueobject.TransactionStatusCancelled {
			return nil
		}
		return s.cancelLocked(ctx, repos, log, t, ReasonPaymentFailed, nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// HandleCreditTransferred фиксирует перевод кредитов и переводит сделку в CREDIT_TRANSFERRED.
func (s *TransactionService) HandleCreditTransferred(ctx context.Context, id, creditTransferID int64) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}

		l := newLedgers(repos)
		c, err := l.credit.Get(ctx, t.ID)
		if err != nil {
			return err
		}
		switch c.Status {
		case valueobject.CreditStatusTransferred:
			return nil
		case valueobject.CreditStatusFailed:
			return apperror.Conflict("перевод кредитов уже отмечен как неуспешный")
		}
		if !t.Status.CanTransitionTo(valueobject.TransactionStatusCreditTransferred) {
			return apperror.InvalidTransition(t.Status, valueobject.TransactionStatusCreditTransferred)
		}

		now := s.now()
		if err := l.credit.SetStatus(ctx, t.ID, valueobject.CreditStatusTransferred, creditTransferID, &now); err != nil {
			return err
		}
		return s.transition(ctx, repos, log, t, valueobject.TransactionStatusCreditTransferred, strPtr(ReasonCreditsTransferred), nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// HandleCreditTransferFailed отмечает перевод неуспешным и отменяет сделку.
func (s *TransactionService) HandleCreditTransferFailed(ctx context.Context, id int64) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		if t, err = s.lockTransaction(ctx, repos, id); err != nil {
			return err
		}

		l := newLedgers(repos)
		c, err := l.credit.Get(ctx, t.ID)
		if err != nil {
			return err
		}
		switch c.Status {
		case valueobject.CreditStatusFailed:
			return nil
		case valueobject.CreditStatusTransferred:
			return apperror.Conflict("кредиты уже переведены, отказ не применим")
		}

		if err := l.credit.SetStatus(ctx, t.ID, valueobject.CreditStatusFailed, 0, nil); err != nil {
			return err
		}
		log.touch(t.ID)
		if t.Status == valueobject.TransactionStatusCancelled {
			return nil
		}
		return s.cancelLocked(ctx, repos, log, t, ReasonCreditTransferFailed, nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ExpireTransactions отменяет PENDING сделки с истёкшим expires_at через обычный путь отмены.
// Ошибка по одной сделке не останавливает обработку остальных.
func (s *TransactionService) ExpireTransactions(ctx context.Context) (int, error) {
	expired, err := s.uow.Repositories().Transactions.ListExpired(ctx, s.now(), s.cfg.ExpiryBatch)
	if err != nil {
		return 0, apperror.Database(err, "не удалось получить просроченные транзакции")
	}

	cancelled := 0
	for _, candidate := range expired {
		applied := false
		err := s.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
			t, err := s.lockTransaction(ctx, repos, candidate.ID)
			if err != nil {
				return err
			}
			// статус мог измениться между выборкой и блокировкой
			if !t.IsExpired(s.now()) {
				return nil
			}
			applied = true
			return s.cancelLocked(ctx, repos, log, t, ReasonTransactionExpired, nil)
		})
		if err != nil {
			logger.ForTransaction(candidate.ID).WithError(err).Warn("не удалось отменить просроченную транзакцию")
			continue
		}
		if applied {
			cancelled++
		}
	}
	return cancelled, nil
}

// cancelLocked - общий путь отмены для пользователя, колбэков и истечения срока.
func (s *TransactionService) cancelLocked(ctx context.Context, repos domainrepo.Repositories, log *commitLog, t *models.Transaction, reason string, changedBy *int64) error {
	if t.Status == valueobject.TransactionStatusCompleted {
		return apperror.Conflict("завершённую транзакцию нельзя отменить")
	}
	return s.transition(ctx, repos, log, t, valueobject.TransactionStatusCancelled, &reason, changedBy)
}

func (s *TransactionService) lockTransaction(ctx context.Context, repos domainrepo.Repositories, id int64) (*models.Transaction, error) {
	t, err := repos.Transactions.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, mapTransactionLookup(err)
	}
	return t, nil
}

// transition - единственное место, где меняется статус сделки.
// Проверяет таблицу переходов, применяет эффекты на подучётах и пишет ровно одну запись истории.
func (s *TransactionService) transition(
	ctx context.Context,
	repos domainrepo.Repositories,
	log *commitLog,
	t *models.Transaction,
	to valueobject.TransactionStatus,
	reason *string,
	changedBy *int64,
) error {
	from := t.Status
	if !from.CanTransitionTo(to) {
		return apperror.InvalidTransition(from, to)
	}

	now := s.now()
	if err := s.applyEffects(ctx, newLedgers(repos), t, to, reason, now); err != nil {
		return err
	}
	if err := repos.Transactions.UpdateStatus(ctx, t.ID, to, now); err != nil {
		return apperror.Database(err, "не удалось обновить статус транзакции")
	}
	entry := &models.HistoryEntry{
		TransactionID: t.ID,
		OldStatus:     &from,
		NewStatus:     to,
		ChangedBy:     changedBy,
		Reason:        reason,
		ChangedAt:     now,
	}
	if err := repos.History.Add(ctx, entry); err != nil {
		return apperror.Database(err, "не удалось записать историю транзакции")
	}

	t.Status = to
	t.UpdatedAt = now
	log.transitioned(t, from, reason)
	return nil
}

func (s *TransactionService) applyEffects(ctx context.Context, l ledgers, t *models.Transaction, to valueobject.TransactionStatus, reason *string, now time.Time) error {
	switch to {
	case valueobject.TransactionStatusCompleted:
		p, err := l.payment.Find(ctx, t.ID)
		if err != nil {
			return err
		}
		if p == nil || p.Status != valueobject.PaymentStatusCompleted {
			return apperror.Conflict("нельзя завершить транзакцию без проведённого платежа")
		}
		if _, err := l.escrow.Release(ctx, t.ID, ReasonTransactionCompleted, now); err != nil {
			return err
		}
		if err := l.settlement.Complete(ctx, t.ID, now); err != nil {
			return err
		}
		return l.wallet.SetStatus(ctx, t.ID, valueobject.WalletStatusSettled, now)

	case valueobject.TransactionStatusCancelled:
		// выплата продавцу уже проведена, возврат поверх неё нарушил бы баланс escrow
		settlement, err := l.settlement.Get(ctx, t.ID)
		if err != nil {
			return err
		}
		if settlement.Status == valueobject.SettlementStatusCompleted {
			return apperror.Conflict("выплата по транзакции уже проведена, отмена невозможна")
		}

		releaseReason := ReasonTransactionCancelled
		if reason != nil {
			releaseReason = *reason
		}
		escrow, err := l.escrow.Release(ctx, t.ID, releaseReason, now)
		if err != nil {
			return err
		}

		refund := decimal.Zero
		p, err := l.payment.Find(ctx, t.ID)
		if err != nil {
			return err
		}
		if p != nil && p.Status == valueobject.PaymentStatusCompleted {
			if err := l.payment.SetStatus(ctx, t.ID, valueobject.PaymentStatusRefunded, nil); err != nil {
				return err
			}
			refund = escrow.AmountHeld
		}
		if err := l.settlement.Refund(ctx, t.ID, refund, escrow.AmountHeld); err != nil {
			return err
		}
		return l.wallet.SetStatus(ctx, t.ID, valueobject.WalletStatusRefunded, now)
	}
	return nil
}

// commitLog копит то, что нужно сделать только после успешного коммита.
type commitLog struct {
	touched     []int64
	events      []pendingEvent
	transitions []appliedTransition
	disputes    []valueobject.DisputeStatus
}

type pendingEvent struct {
	eventType string
	payload   any
}

type appliedTransition struct {
	transactionID int64
	from, to      valueobject.TransactionStatus
}

func (l *commitLog) touch(id int64) {
	l.touched = append(l.touched, id)
}

func (l *commitLog) publish(eventType string, payload any) {
	l.events = append(l.events, pendingEvent{eventType: eventType, payload: payload})
}

func (l *commitLog) transitioned(t *models.Transaction, from valueobject.TransactionStatus, reason *string) {
	l.touch(t.ID)
	l.transitions = append(l.transitions, appliedTransition{transactionID: t.ID, from: from, to: t.Status})
	if eventType, ok := transitionEvents[t.Status]; ok {
		l.publish(eventType, transactionPayload(t, from, reason))
	}
}

func (l *commitLog) disputeChanged(d *models.Dispute, t *models.Transaction, eventType string) {
	l.touch(d.TransactionID)
	l.disputes = append(l.disputes, d.Status)
	l.publish(eventType, disputePayload(d, t))
}

// mutate выполняет fn в единице работы и после коммита публикует события,
// инвалидирует кэш и уведомляет наблюдателя.
func (s *TransactionService) mutate(ctx context.Context, fn func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error) error {
	var log *commitLog
	err := s.uow.Do(ctx, func(ctx context.Context, repos domainrepo.Repositories) error {
		log = &commitLog{}
		return fn(ctx, repos, log)
	})
	if err != nil {
		return err
	}
	s.afterCommit(context.WithoutCancel(ctx), log)
	return nil
}

func (s *TransactionService) afterCommit(ctx context.Context, log *commitLog) {
	if s.cache != nil {
		for _, id := range log.touched {
			s.cache.Invalidate(id)
		}
	}

	for _, tr := range log.transitions {
		logger.ForTransaction(tr.transactionID).WithFields(logrus.Fields{
			"from": tr.from,
			"to":   tr.to,
		}).Info("статус транзакции изменён")
		if s.observer != nil {
			s.observer.TransactionTransitioned(tr.from, tr.to)
		}
	}
	if s.observer != nil {
		for _, status := range log.disputes {
			s.observer.DisputeChanged(status)
		}
	}

	if s.publisher == nil {
		return
	}
	for _, e := range log.events {
		// изменения уже зафиксированы, ошибка публикации их не откатывает
		if err := s.publisher.Publish(ctx, e.eventType, e.payload); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"event_type": e.eventType,
				"error":      err.Error(),
			}).Warn("не удалось опубликовать событие")
		}
	}
}

var transitionEvents = map[valueobject.TransactionStatus]string{
	valueobject.TransactionStatusPaymentPending:    events.TypeTransactionPaymentPending,
	valueobject.TransactionStatusPaymentCompleted:  events.TypeTransactionPaymentCompleted,
	valueobject.TransactionStatusCreditTransferred: events.TypeTransactionCreditTransferred,
	valueobject.TransactionStatusCompleted:         events.TypeTransactionCompleted,
	valueobject.TransactionStatusCancelled:         events.TypeTransactionCancelled,
	valueobject.TransactionStatusDisputed:          events.TypeTransactionDisputed,
}

func transactionPayload(t *models.Transaction, from valueobject.TransactionStatus, reason *string) events.TransactionPayload {
	p := events.TransactionPayload{
		TransactionID: t.ID,
		ListingID:     t.ListingID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		OldStatus:     string(from),
		Status:        string(t.Status),
		TotalPrice:    t.TotalPrice,
		Currency:      t.Currency,
	}
	if reason != nil {
		p.Reason = *reason
	}
	return p
}

func mapTransactionLookup(err error) error {
	if errors.Is(err, domainrepo.ErrNotFound) {
		return apperror.ErrTransactionNotFound
	}
	return apperror.Database(err, "не удалось получить транзакцию")
}

func normalizeReason(reason *string) (*string, error) {
	if reason == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxReasonLength {
		return nil, apperror.Validation("причина длиннее %d символов", maxReasonLength)
	}
	return &trimmed, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func strPtr(s string) *string {
	return &s
}

// truncateRunes обрезает s до n символов.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
