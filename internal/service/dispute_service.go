package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/events"
	"github.com/ignatzorin/credit-transaction-service/internal/logger"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

const (
	maxDisputeReasonLength     = 500
	maxDisputeResolutionLength = 500
	maxDisputeDescriptionBytes = 10000
)

// DisputeService ведёт споры по сделкам. Статус сделки меняется только через оркестратор.
type DisputeService struct {
	transactions *TransactionService
}

func NewDisputeService(transactions *TransactionService) *DisputeService {
	return &DisputeService{transactions: transactions}
}

// CreateDispute открывает спор и переводит сделку в DISPUTED.
// Если сделка уже в DISPUTED (предыдущий спор закрыт без решения), статус не меняется.
func (s *DisputeService) CreateDispute(ctx context.Context, in models.CreateDisputeInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.Validation("причина спора обязательна")
	}
	if utf8.RuneCountInString(reason) > maxDisputeReasonLength {
		return nil, apperror.Validation("причина спора длиннее %d символов", maxDisputeReasonLength)
	}
	if in.Description != nil && len(*in.Description) > maxDisputeDescriptionBytes {
		return nil, apperror.Validation("описание спора слишком длинное")
	}

	var d *models.Dispute
	err := s.transactions.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		// блокировка сделки сериализует спор с остальными переходами
		t, err := s.transactions.lockTransaction(ctx, repos, in.TransactionID)
		if err != nil {
			return err
		}

		existing, err := repos.Disputes.GetUnclosedByTransaction(ctx, t.ID)
		if err != nil && !errors.Is(err, domainrepo.ErrNotFound) {
			return apperror.Database(err, "не удалось проверить активные споры")
		}
		if existing != nil {
			return apperror.Conflict("по транзакции уже есть незакрытый спор #%d", existing.ID)
		}
		if !t.IsParticipant(in.RaisedBy) {
			return apperror.Validation("спор может открыть только покупатель или продавец")
		}
		alreadyDisputed := t.Status == valueobject.TransactionStatusDisputed
		if !alreadyDisputed && !t.Status.CanTransitionTo(valueobject.TransactionStatusDisputed) {
			return apperror.InvalidTransition(t.Status, valueobject.TransactionStatusDisputed)
		}

		d = &models.Dispute{
			TransactionID: t.ID,
			RaisedBy:      in.RaisedBy,
			Reason:        reason,
			Description:   in.Description,
			Status:        valueobject.DisputeStatusOpen,
		}
		if err := repos.Disputes.Create(ctx, d); err != nil {
			if errors.Is(err, domainrepo.ErrAlreadyExists) {
				return apperror.Conflict("по транзакции уже есть незакрытый спор")
			}
			return apperror.Database(err, "не удалось создать спор")
		}

		if !alreadyDisputed {
			raisedBy := in.RaisedBy
			if err := s.transactions.transition(ctx, repos, log, t, valueobject.TransactionStatusDisputed, strPtr(truncateRunes("Dispute opened: "+reason, maxReasonLength)), &raisedBy); err != nil {
				return err
			}
		}
		log.disputeChanged(d, t, events.TypeDisputeCreated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logDispute(d).Info("спор открыт")
	return d, nil
}

// StartReview переводит спор OPEN → IN_REVIEW. Повторный вызов ничего не меняет.
func (s *DisputeService) StartReview(ctx context.Context, id int64) (*models.Dispute, error) {
	return s.update(ctx, id, func(d *models.Dispute) (string, error) {
		switch d.Status {
		case valueobject.DisputeStatusInReview:
			return "", nil
		case valueobject.DisputeStatusOpen:
			d.Status = valueobject.DisputeStatusInReview
			return events.TypeDisputeInReview, nil
		}
		return "", apperror.Conflict("спор в статусе %s нельзя взять на рассмотрение", d.Status)
	})
}

// ResolveDispute фиксирует решение. Статус сделки не меняется: выход из DISPUTED - отдельный явный переход.
func (s *DisputeService) ResolveDispute(ctx context.Context, id int64, resolution string, resolvedBy int64) (*models.Dispute, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, apperror.Validation("решение по спору обязательно")
	}
	if utf8.RuneCountInString(resolution) > maxDisputeResolutionLength {
		return nil, apperror.Validation("решение длиннее %d символов", maxDisputeResolutionLength)
	}
	if resolvedBy <= 0 {
		return nil, apperror.Validation("resolved_by должен быть положительным")
	}

	return s.update(ctx, id, func(d *models.Dispute) (string, error) {
		if !d.Status.CanTransitionTo(valueobject.DisputeStatusResolved) {
			return "", apperror.Conflict("спор в статусе %s нельзя разрешить", d.Status)
		}
		now := s.transactions.now()
		d.Status = valueobject.DisputeStatusResolved
		d.Resolution = &resolution
		d.ResolvedBy = &resolvedBy
		d.ResolvedAt = &now
		return events.TypeDisputeResolved, nil
	})
}

// CloseDispute - административное закрытие, решение не требуется.
func (s *DisputeService) CloseDispute(ctx context.Context, id int64) (*models.Dispute, error) {
	return s.update(ctx, id, func(d *models.Dispute) (string, error) {
		if !d.Status.CanTransitionTo(valueobject.DisputeStatusClosed) {
			return "", apperror.Conflict("спор уже закрыт")
		}
		d.Status = valueobject.DisputeStatusClosed
		if d.ResolvedAt == nil {
			now := s.transactions.now()
			d.ResolvedAt = &now
		}
		return events.TypeDisputeClosed, nil
	})
}

// update блокирует спор, применяет apply и сохраняет результат.
// Пустой тип события от apply означает, что менять нечего.
func (s *DisputeService) update(ctx context.Context, id int64, apply func(d *models.Dispute) (string, error)) (*models.Dispute, error) {
	var (
		d       *models.Dispute
		changed bool
	)
	err := s.transactions.mutate(ctx, func(ctx context.Context, repos domainrepo.Repositories, log *commitLog) error {
		var err error
		d, err = repos.Disputes.GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapDisputeLookup(err)
		}

		eventType, err := apply(d)
		if err != nil || eventType == "" {
			return err
		}
		changed = true
		if err := repos.Disputes.Update(ctx, d); err != nil {
			return apperror.Database(err, "не удалось обновить спор")
		}

		t, err := repos.Transactions.GetByID(ctx, d.TransactionID)
		if err != nil {
			return mapTransactionLookup(err)
		}
		log.disputeChanged(d, t, eventType)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logDispute(d).Info("статус спора изменён")
	}
	return d, nil
}

func (s *DisputeService) GetDispute(ctx context.Context, id int64) (*models.Dispute, error) {
	d, err := s.transactions.uow.Repositories().Disputes.GetByID(ctx, id)
	if err != nil {
		return nil, mapDisputeLookup(err)
	}
	return d, nil
}

// GetLatestByTransaction возвращает последний спор сделки.
func (s *DisputeService) GetLatestByTransaction(ctx context.Context, transactionID int64) (*models.Dispute, error) {
	repos := s.transactions.uow.Repositories()
	if _, err := repos.Transactions.GetByID(ctx, transactionID); err != nil {
		return nil, mapTransactionLookup(err)
	}
	d, err := repos.Disputes.GetLatestByTransaction(ctx, transactionID)
	if err != nil {
		return nil, mapDisputeLookup(err)
	}
	return d, nil
}

func (s *DisputeService) ListByUser(ctx context.Context, userID int64, limit, offset int) (*models.Page[models.Dispute], error) {
	return s.list(ctx, domainrepo.DisputeFilter{RaisedBy: &userID, Limit: limit, Offset: offset})
}

func (s *DisputeService) ListByStatus(ctx context.Context, status valueobject.DisputeStatus, limit, offset int) (*models.Page[models.Dispute], error) {
	if !status.IsValid() {
		return nil, apperror.Validation("некорректный статус спора: %s", status)
	}
	return s.list(ctx, domainrepo.DisputeFilter{Status: &status, Limit: limit, Offset: offset})
}

// ListActive возвращает споры в OPEN и IN_REVIEW.
func (s *DisputeService) ListActive(ctx context.Context, limit, offset int) (*models.Page[models.Dispute], error) {
	return s.list(ctx, domainrepo.DisputeFilter{ActiveOnly: true, Limit: limit, Offset: offset})
}

func (s *DisputeService) ListAll(ctx context.Context, limit, offset int) (*models.Page[models.Dispute], error) {
	return s.list(ctx, domainrepo.DisputeFilter{Limit: limit, Offset: offset})
}

func (s *DisputeService) list(ctx context.Context, filter domainrepo.DisputeFilter) (*models.Page[models.Dispute], error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	repo := s.transactions.uow.Repositories().Disputes

	items, err := repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить список споров")
	}
	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, apperror.Database(err, "не удалось посчитать споры")
	}
	return &models.Page[models.Dispute]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func mapDisputeLookup(err error) error {
	if errors.Is(err, domainrepo.ErrNotFound) {
		return apperror.ErrDisputeNotFound
	}
	return apperror.Database(err, "не удалось получить спор")
}

func disputePayload(d *models.Dispute, t *models.Transaction) events.DisputePayload {
	p := events.DisputePayload{
		DisputeID:     d.ID,
		TransactionID: d.TransactionID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		RaisedBy:      d.RaisedBy,
		Status:        string(d.Status),
		Reason:        d.Reason,
	}
	if d.Resolution != nil {
		p.Resolution = *d.Resolution
	}
	return p
}

func logDispute(d *models.Dispute) *logrus.Entry {
	return logger.ForTransaction(d.TransactionID).WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"status":     d.Status,
	})
}
