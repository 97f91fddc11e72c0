package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/events"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

type publishedEvent struct {
	eventType string
	payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type countingObserver struct {
	mu          sync.Mutex
	transitions map[string]int
	disputes    map[valueobject.DisputeStatus]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		transitions: make(map[string]int),
		disputes:    make(map[valueobject.DisputeStatus]int),
	}
}

func (o *countingObserver) TransactionTransitioned(from, to valueobject.TransactionStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions[string(from)+"->"+string(to)]++
}

func (o *countingObserver) DisputeChanged(status valueobject.DisputeStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disputes[status]++
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*TransactionService, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, pub, TransactionServiceConfig{
		FeeRate: decimal.RequireFromString("0.05"),
		TTL:     time.Hour,
	})
	svc.now = func() time.Time { return testNow }
	return svc, store, pub
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createInput(total string) models.CreateTransactionInput {
	return models.CreateTransactionInput{
		ListingID:      10,
		BuyerID:        1,
		SellerID:       2,
		CreditAmount:   dec("1"),
		PricePerCredit: dec(total),
		TotalPrice:     dec(total),
	}
}

func mustCreate(t *testing.T, svc *TransactionService, total string) *models.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), createInput(total))
	require.NoError(t, err)
	return tx
}

// mustPay проводит сделку через привязку платежа и успешную оплату.
func mustPay(t *testing.T, svc *TransactionService, tx *models.Transaction) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 500 + tx.ID})
	require.NoError(t, err)
	_, err = svc.HandlePaymentCompleted(ctx, tx.ID)
	require.NoError(t, err)
}

func TestCreateTransaction_InitializesLedgers(t *testing.T) {
	svc, store, pub := newTestService(t)

	tx := mustCreate(t, svc, "1000")

	assert.Equal(t, valueobject.TransactionStatusPending, tx.Status)
	assert.Equal(t, "VND", tx.Currency)
	require.NotNil(t, tx.ExpiresAt)
	assert.Equal(t, testNow.Add(time.Hour), *tx.ExpiresAt)

	store.read(func(st *memState) {
		escrow := st.escrows[tx.ID]
		assert.True(t, escrow.AmountHeld.Equal(dec("1000")))
		assert.Nil(t, escrow.ReleasedAt)

		settlement := st.settlements[tx.ID]
		assert.True(t, settlement.SellerAmount.Equal(dec("950")), settlement.SellerAmount.String())
		assert.True(t, settlement.PlatformFee.Equal(dec("50")), settlement.PlatformFee.String())
		assert.True(t, settlement.BuyerRefund.IsZero())
		assert.Equal(t, valueobject.SettlementStatusPending, settlement.Status)

		assert.Equal(t, valueobject.WalletStatusPending, st.wallets[tx.ID].Status)
		assert.Equal(t, valueobject.CreditStatusPending, st.credits[tx.ID].Status)
		_, hasPayment := st.payments[tx.ID]
		assert.False(t, hasPayment)
	})

	assert.Empty(t, store.historyOf(tx.ID))
	assert.Equal(t, []string{events.TypeTransactionCreated}, pub.types())
}

func TestCreateTransaction_SettlementHasNoRoundingDrift(t *testing.T) {
	svc, store, _ := newTestService(t)

	for _, total := range []string{"333.33", "0.01", "19.99", "1234567.89"} {
		tx := mustCreate(t, svc, total)
		store.read(func(st *memState) {
			s := st.settlements[tx.ID]
			assert.True(t, s.SellerAmount.Add(s.PlatformFee).Equal(dec(total)), total)
			assert.True(t, st.escrows[tx.ID].AmountHeld.Equal(dec(total)), total)
		})
	}
}

func TestCreateTransaction_ValidationPersistsNothing(t *testing.T) {
	svc, store, pub := newTestService(t)

	cases := map[string]func(in *models.CreateTransactionInput){
		"buyer equals seller": func(in *models.CreateTransactionInput) { in.SellerID = in.BuyerID },
		"zero total":          func(in *models.CreateTransactionInput) { in.TotalPrice = decimal.Zero },
		"negative total":      func(in *models.CreateTransactionInput) { in.TotalPrice = dec("-5") },
		"zero credits":        func(in *models.CreateTransactionInput) { in.CreditAmount = decimal.Zero },
		"bad currency":        func(in *models.CreateTransactionInput) { in.Currency = "EURO" },
		"no listing":          func(in *models.CreateTransactionInput) { in.ListingID = 0 },
		"sub-cent total":      func(in *models.CreateTransactionInput) { in.TotalPrice = dec("10.001") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := createInput("1000")
			mutate(&in)
			_, err := svc.CreateTransaction(context.Background(), in)
			assert.True(t, apperror.IsValidation(err), "ожидалась ошибка валидации, получено %v", err)
		})
	}

	store.read(func(st *memState) {
		assert.Empty(t, st.transactions)
		assert.Empty(t, st.escrows)
		assert.Empty(t, st.settlements)
	})
	assert.Empty(t, pub.types())
}

func TestCreateTransaction_RollsBackOnLedgerFailure(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.failOn("wallets.Create", errors.New("connection reset"))

	_, err := svc.CreateTransaction(context.Background(), createInput("1000"))
	require.Error(t, err)
	assert.True(t, apperror.IsDatabase(err))

	store.read(func(st *memState) {
		assert.Empty(t, st.transactions)
		assert.Empty(t, st.escrows)
		assert.Empty(t, st.settlements)
		assert.Empty(t, st.wallets)
		assert.Empty(t, st.credits)
	})
	assert.Empty(t, pub.types())
}

func TestCreateTransaction_UsesRequestCurrency(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := createInput("100")
	in.Currency = "usd"
	tx, err := svc.CreateTransaction(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "USD", tx.Currency)
}

// allowedTransitions - ожидаемая таблица переходов сделки.
var allowedTransitions = map[valueobject.TransactionStatus][]valueobject.TransactionStatus{
	valueobject.TransactionStatusPending:           {valueobject.TransactionStatusPaymentPending, valueobject.TransactionStatusCancelled, valueobject.TransactionStatusDisputed},
	valueobject.TransactionStatusPaymentPending:    {valueobject.TransactionStatusPaymentCompleted, valueobject.TransactionStatusCancelled, valueobject.TransactionStatusDisputed},
	valueobject.TransactionStatusPaymentCompleted:  {valueobject.TransactionStatusCreditTransferred, valueobject.TransactionStatusCancelled, valueobject.TransactionStatusDisputed},
	valueobject.TransactionStatusCreditTransferred: {valueobject.TransactionStatusCompleted, valueobject.TransactionStatusCancelled, valueobject.TransactionStatusDisputed},
	valueobject.TransactionStatusCompleted:         {valueobject.TransactionStatusDisputed},
	valueobject.TransactionStatusCancelled:         {},
	valueobject.TransactionStatusDisputed:          {valueobject.TransactionStatusCompleted, valueobject.TransactionStatusCancelled},
}

func isAllowed(from, to valueobject.TransactionStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TestUpdateTransactionStatus_FollowsTransitionTable(t *testing.T) {
	statuses := valueobject.AllTransactionStatuses()
	require.Len(t, statuses, len(allowedTransitions))

	for _, from := range statuses {
		for _, to := range statuses {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				svc, store, _ := newTestService(t)
				tx := mustCreate(t, svc, "1000")
				store.setStatus(tx.ID, from)
				if to == valueobject.TransactionStatusCompleted {
					store.setPaid(tx.ID)
				}

				updated, err := svc.UpdateTransactionStatus(context.Background(), tx.ID, to, nil, nil)
				current, getErr := svc.GetTransaction(context.Background(), tx.ID)
				require.NoError(t, getErr)

				if isAllowed(from, to) {
					require.NoError(t, err)
					assert.Equal(t, to, updated.Status)
					assert.Equal(t, to, current.Status)
					history := store.historyOf(tx.ID)
					require.Len(t, history, 1)
					assert.Equal(t, from, *history[0].OldStatus)
					assert.Equal(t, to, history[0].NewStatus)
					return
				}

				assert.True(t, apperror.IsInvalidTransition(err), "ожидалась ошибка перехода, получено %v", err)
				assert.Equal(t, from, current.Status)
				assert.Empty(t, store.historyOf(tx.ID))
			})
		}
	}
}

func TestUpdateTransactionStatus_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateTransactionStatus(ctx, 404, valueobject.TransactionStatusCancelled, nil, nil)
	assert.True(t, apperror.IsNotFound(err))

	tx := mustCreate(t, svc, "100")
	_, err = svc.UpdateTransactionStatus(ctx, tx.ID, valueobject.TransactionStatus("SHIPPED"), nil, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestCancelTransaction_FromPending(t *testing.T) {
	svc, store, pub := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	buyer := tx.BuyerID

	cancelled, err := svc.CancelTransaction(context.Background(), tx.ID, "buyer backed out", &buyer)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, cancelled.Status)

	store.read(func(st *memState) {
		escrow := st.escrows[tx.ID]
		require.NotNil(t, escrow.ReleasedAt)
		assert.Equal(t, "buyer backed out", *escrow.ReleaseReason)

		settlement := st.settlements[tx.ID]
		assert.Equal(t, valueobject.SettlementStatusFailed, settlement.Status)
		assert.True(t, settlement.BuyerRefund.IsZero())
		assert.True(t, settlement.SellerAmount.Add(settlement.PlatformFee).Equal(dec("1000")))

		assert.Equal(t, valueobject.WalletStatusRefunded, st.wallets[tx.ID].Status)
	})

	history := store.historyOf(tx.ID)
	require.Len(t, history, 1)
	assert.Equal(t, valueobject.TransactionStatusPending, *history[0].OldStatus)
	assert.Equal(t, valueobject.TransactionStatusCancelled, history[0].NewStatus)
	assert.Equal(t, "buyer backed out", *history[0].Reason)
	assert.Equal(t, buyer, *history[0].ChangedBy)

	assert.Equal(t, []string{events.TypeTransactionCreated, events.TypeTransactionCancelled}, pub.types())
}

func TestCancelTransaction_AfterPaymentRefundsBuyer(t *testing.T) {
	svc, store, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	mustPay(t, svc, tx)

	_, err := svc.CancelTransaction(context.Background(), tx.ID, "seller ran out of credits", nil)
	require.NoError(t, err)

	store.read(func(st *memState) {
		assert.Equal(t, valueobject.PaymentStatusRefunded, st.payments[tx.ID].Status)
		settlement := st.settlements[tx.ID]
		assert.True(t, settlement.BuyerRefund.Equal(dec("1000")), settlement.BuyerRefund.String())
		assert.Equal(t, valueobject.SettlementStatusFailed, settlement.Status)
		assert.True(t, settlement.SellerAmount.Equal(dec("950")))
		assert.True(t, settlement.PlatformFee.Equal(dec("50")))
	})
}

func TestCancelTransaction_Rejections(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")

	_, err := svc.CancelTransaction(ctx, tx.ID, "   ", nil)
	assert.True(t, apperror.IsValidation(err))

	store.setStatus(tx.ID, valueobject.TransactionStatusCompleted)
	_, err = svc.CancelTransaction(ctx, tx.ID, "too late", nil)
	assert.True(t, apperror.IsConflict(err))

	store.setStatus(tx.ID, valueobject.TransactionStatusCancelled)
	_, err = svc.CancelTransaction(ctx, tx.ID, "again", nil)
	assert.True(t, apperror.IsInvalidTransition(err))

	assert.Empty(t, store.historyOf(tx.ID))
}

func TestTransition_RollsBackOnHistoryFailure(t *testing.T) {
	svc, store, pub := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	store.failOn("history.Add", errors.New("disk full"))

	_, err := svc.CancelTransaction(context.Background(), tx.ID, "buyer backed out", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsDatabase(err))

	current, err := svc.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPending, current.Status)
	store.read(func(st *memState) {
		assert.Nil(t, st.escrows[tx.ID].ReleasedAt)
		assert.Equal(t, valueobject.SettlementStatusPending, st.settlements[tx.ID].Status)
		assert.Equal(t, valueobject.WalletStatusPending, st.wallets[tx.ID].Status)
	})
	assert.Equal(t, []string{events.TypeTransactionCreated}, pub.types())
}

func TestInitiatePayment(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	method := "card"

	wrong := dec("999")
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7, Amount: &wrong})
	assert.True(t, apperror.IsValidation(err))

	updated, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7, Method: &method})
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPaymentPending, updated.Status)

	// повтор с тем же платежом ничего не меняет
	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7})
	require.NoError(t, err)

	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 8})
	assert.True(t, apperror.IsConflict(err))

	store.read(func(st *memState) {
		p := st.payments[tx.ID]
		assert.Equal(t, int64(7), p.PaymentID)
		assert.Equal(t, valueobject.PaymentStatusPending, p.Status)
		assert.True(t, p.Amount.Equal(dec("1000")))
		require.NotNil(t, p.PaymentMethod)
		assert.Equal(t, "card", *p.PaymentMethod)
	})
	assert.Len(t, store.historyOf(tx.ID), 1)
}

func TestInitiatePayment_RequiresPendingTransaction(t *testing.T) {
	svc, store, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	store.setStatus(tx.ID, valueobject.TransactionStatusCancelled)

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7})
	assert.True(t, apperror.IsInvalidTransition(err))
	store.read(func(st *memState) {
		assert.Empty(t, st.payments)
	})
}

func TestHandlePaymentCompleted_IsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7})
	require.NoError(t, err)

	first, err := svc.HandlePaymentCompleted(ctx, tx.ID)
	require.NoError(t, err)
	second, err := svc.HandlePaymentCompleted(ctx, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, valueobject.TransactionStatusPaymentCompleted, first.Status)
	assert.Equal(t, valueobject.TransactionStatusPaymentCompleted, second.Status)

	history := store.historyOf(tx.ID)
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.TransactionStatusPaymentCompleted, history[1].NewStatus)
	assert.Equal(t, ReasonPaymentCompleted, *history[1].Reason)

	store.read(func(st *memState) {
		p := st.payments[tx.ID]
		assert.Equal(t, valueobject.PaymentStatusCompleted, p.Status)
		assert.NotNil(t, p.PaidAt)
		w := st.wallets[tx.ID]
		assert.Equal(t, valueobject.WalletStatusReserved, w.Status)
		assert.NotNil(t, w.ReservedAt)
	})
}

func TestHandlePaymentCompleted_ConcurrentDeliveries(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandlePaymentCompleted(ctx, tx.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	completed := 0
	for _, h := range store.historyOf(tx.ID) {
		if h.NewStatus == valueobject.TransactionStatusPaymentCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestHandlePaymentCompleted_WithoutLinkedPayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")

	_, err := svc.HandlePaymentCompleted(context.Background(), tx.ID)
	assert.True(t, apperror.IsConflict(err))

	_, err = svc.HandlePaymentFailed(context.Background(), tx.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestHandlePaymentFailed_CancelsTransaction(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: tx.ID, PaymentID: 7})
	require.NoError(t, err)

	updated, err := svc.HandlePaymentFailed(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, updated.Status)

	// повторная доставка
	_, err = svc.HandlePaymentFailed(ctx, tx.ID)
	require.NoError(t, err)

	history := store.historyOf(tx.ID)
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.TransactionStatusCancelled, history[1].NewStatus)
	assert.Equal(t, ReasonPaymentFailed, *history[1].Reason)

	store.read(func(st *memState) {
		assert.Equal(t, valueobject.PaymentStatusFailed, st.payments[tx.ID].Status)
		assert.True(t, st.settlements[tx.ID].BuyerRefund.IsZero())
		assert.Equal(t, ReasonPaymentFailed, *st.escrows[tx.ID].ReleaseReason)
	})
}

func TestHandlePaymentFailed_AfterCompletionIsConflict(t *testing.T) {
	svc, store, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	mustPay(t, svc, tx)

	_, err := svc.HandlePaymentFailed(context.Background(), tx.ID)
	assert.True(t, apperror.IsConflict(err))

	current, err := svc.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPaymentCompleted, current.Status)
	store.read(func(st *memState) {
		assert.Equal(t, valueobject.PaymentStatusCompleted, st.payments[tx.ID].Status)
	})
}

func TestFullLifecycle_ToCompleted(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	mustPay(t, svc, tx)

	updated, err := svc.HandleCreditTransferred(ctx, tx.ID, 77)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCreditTransferred, updated.Status)

	_, err = svc.HandleCreditTransferred(ctx, tx.ID, 77)
	require.NoError(t, err)

	completed, err := svc.UpdateTransactionStatus(ctx, tx.ID, valueobject.TransactionStatusCompleted, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCompleted, completed.Status)

	store.read(func(st *memState) {
		c := st.credits[tx.ID]
		assert.Equal(t, valueobject.CreditStatusTransferred, c.Status)
		assert.Equal(t, int64(77), c.CreditTransferID)
		assert.NotNil(t, c.TransferredAt)

		e := st.escrows[tx.ID]
		require.NotNil(t, e.ReleasedAt)
		assert.Equal(t, ReasonTransactionCompleted, *e.ReleaseReason)

		s := st.settlements[tx.ID]
		assert.Equal(t, valueobject.SettlementStatusCompleted, s.Status)
		assert.NotNil(t, s.SettledAt)

		w := st.wallets[tx.ID]
		assert.Equal(t, valueobject.WalletStatusSettled, w.Status)
		assert.NotNil(t, w.SettledAt)
	})

	assert.Len(t, store.historyOf(tx.ID), 4)
	assert.Equal(t, []string{
		events.TypeTransactionCreated,
		events.TypeTransactionPaymentPending,
		events.TypeTransactionPaymentCompleted,
		events.TypeTransactionCreditTransferred,
		events.TypeTransactionCompleted,
	}, pub.types())

	_, err = svc.CancelTransaction(ctx, tx.ID, "changed my mind", nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestHandleCreditTransferFailed_RefundsPaidBuyer(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")
	mustPay(t, svc, tx)

	updated, err := svc.HandleCreditTransferFailed(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, updated.Status)

	_, err = svc.HandleCreditTransferFailed(ctx, tx.ID)
	require.NoError(t, err)

	_, err = svc.HandleCreditTransferred(ctx, tx.ID, 77)
	assert.True(t, apperror.IsConflict(err))

	store.read(func(st *memState) {
		assert.Equal(t, valueobject.CreditStatusFailed, st.credits[tx.ID].Status)
		assert.Equal(t, valueobject.PaymentStatusRefunded, st.payments[tx.ID].Status)
		assert.True(t, st.settlements[tx.ID].BuyerRefund.Equal(dec("1000")))
	})
	assert.Len(t, store.historyOf(tx.ID), 3)
}

func TestHandleCreditTransferred_RequiresPayment(t *testing.T) {
	svc, store, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")

	_, err := svc.HandleCreditTransferred(context.Background(), tx.ID, 77)
	assert.True(t, apperror.IsInvalidTransition(err))
	store.read(func(st *memState) {
		assert.Equal(t, valueobject.CreditStatusPending, st.credits[tx.ID].Status)
	})
}

func TestExpireTransactions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	stale := mustCreate(t, svc, "100")
	paying := mustCreate(t, svc, "200")
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{TransactionID: paying.ID, PaymentID: 9})
	require.NoError(t, err)

	// до истечения срока ничего не отменяется
	cancelled, err := svc.ExpireTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, cancelled)

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	fresh := mustCreate(t, svc, "300")

	cancelled, err = svc.ExpireTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	got, err := svc.GetTransaction(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, got.Status)
	history := store.historyOf(stale.ID)
	require.Len(t, history, 1)
	assert.Equal(t, ReasonTransactionExpired, *history[0].Reason)

	got, err = svc.GetTransaction(ctx, paying.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPaymentPending, got.Status)

	got, err = svc.GetTransaction(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPending, got.Status)
}

func TestListTransactions_Pagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustCreate(t, svc, "100")
	}

	page, err := svc.ListBuyerTransactions(ctx, 1, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Total)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)

	page, err = svc.ListSellerTransactions(ctx, 2, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, defaultPageLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Len(t, page.Items, 3)

	page, err = svc.ListBuyerTransactions(ctx, 2, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)
}

func TestGetHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetHistory(ctx, 42)
	assert.True(t, apperror.IsNotFound(err))

	tx := mustCreate(t, svc, "100")
	mustPay(t, svc, tx)

	history, err := svc.GetHistory(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.TransactionStatusPaymentPending, history[0].NewStatus)
	assert.Equal(t, valueobject.TransactionStatusPaymentCompleted, history[1].NewStatus)
}

func TestGetTransactionSummary_CacheInvalidatedOnMutation(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetCache(NewCacheService(time.Minute))
	ctx := context.Background()
	tx := mustCreate(t, svc, "1000")

	summary, err := svc.GetTransactionSummary(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPending, summary.Status)
	require.NotNil(t, summary.SettlementStatus)
	assert.True(t, summary.PlatformFee.Decimal.Equal(dec("50")))

	_, err = svc.CancelTransaction(ctx, tx.ID, "buyer backed out", nil)
	require.NoError(t, err)

	summary, err = svc.GetTransactionSummary(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, summary.Status)
	assert.Equal(t, valueobject.SettlementStatusFailed, *summary.SettlementStatus)
	assert.NotNil(t, summary.EscrowReleasedAt)

	_, err = svc.GetTransactionSummary(ctx, 999)
	assert.True(t, apperror.IsNotFound(err))
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	svc, store, pub := newTestService(t)
	pub.err = errors.New("redis unavailable")

	tx, err := svc.CreateTransaction(context.Background(), createInput("100"))
	require.NoError(t, err)

	store.read(func(st *memState) {
		_, ok := st.transactions[tx.ID]
		assert.True(t, ok)
	})
}

func TestObserverSeesCommittedTransitionsOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	obs := newCountingObserver()
	svc.SetObserver(obs)
	tx := mustCreate(t, svc, "100")

	store.failOn("history.Add", errors.New("disk full"))
	_, err := svc.CancelTransaction(context.Background(), tx.ID, "x", nil)
	require.Error(t, err)
	assert.Empty(t, obs.transitions)

	store.failOn("history.Add", nil)
	_, err = svc.CancelTransaction(context.Background(), tx.ID, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.transitions["PENDING->CANCELLED"])
}

func TestUpdateTransactionStatus_CompletedRequiresPayment(t *testing.T) {
	svc, store, pub := newTestService(t)
	tx := mustCreate(t, svc, "1000")
	store.setStatus(tx.ID, valueobject.TransactionStatusCreditTransferred)

	_, err := svc.UpdateTransactionStatus(context.Background(), tx.ID, valueobject.TransactionStatusCompleted, nil, nil)
	assert.True(t, apperror.IsConflict(err), "ожидался конфликт, получено %v", err)

	current, err := svc.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCreditTransferred, current.Status)
	store.read(func(st *memState) {
		assert.Nil(t, st.escrows[tx.ID].ReleasedAt)
		assert.Equal(t, valueobject.SettlementStatusPending, st.settlements[tx.ID].Status)
		assert.Equal(t, valueobject.WalletStatusPending, st.wallets[tx.ID].Status)
	})
	assert.Empty(t, store.historyOf(tx.ID))
	assert.Equal(t, []string{events.TypeTransactionCreated}, pub.types())
}

func TestCancelTransaction_ReasonCountsRunes(t *testing.T) {
	svc, _, _ := newTestService(t)
	tx := mustCreate(t, svc, "1000")

	// 255 кириллических символов занимают 510 байт
	reason := strings.Repeat("я", maxReasonLength)
	cancelled, err := svc.CancelTransaction(context.Background(), tx.ID, reason, nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusCancelled, cancelled.Status)

	other := mustCreate(t, svc, "1000")
	_, err = svc.CancelTransaction(context.Background(), other.ID, reason+"я", nil)
	assert.True(t, apperror.IsValidation(err))
}
