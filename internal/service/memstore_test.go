package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

// memStore - UnitOfWork в памяти для тестов сервисов.
// Единицы работы выполняются строго по одной, при ошибке состояние откатывается к снимку.
type memStore struct {
	mu       sync.Mutex
	state    *memState
	failures map[string]error
}

type memState struct {
	seq          int64
	transactions map[int64]models.Transaction
	escrows      map[int64]models.EscrowRecord
	settlements  map[int64]models.SettlementRecord
	payments     map[int64]models.PaymentLink
	credits      map[int64]models.CreditLink
	wallets      map[int64]models.WalletReservation
	disputes     map[int64]models.Dispute
	history      []models.HistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			transactions: make(map[int64]models.Transaction),
			escrows:      make(map[int64]models.EscrowRecord),
			settlements:  make(map[int64]models.SettlementRecord),
			payments:     make(map[int64]models.PaymentLink),
			credits:      make(map[int64]models.CreditLink),
			wallets:      make(map[int64]models.WalletReservation),
			disputes:     make(map[int64]models.Dispute),
		},
		failures: make(map[string]error),
	}
}

func (st *memState) clone() *memState {
	out := &memState{
		seq:          st.seq,
		transactions: make(map[int64]models.Transaction, len(st.transactions)),
		escrows:      make(map[int64]models.EscrowRecord, len(st.escrows)),
		settlements:  make(map[int64]models.SettlementRecord, len(st.settlements)),
		payments:     make(map[int64]models.PaymentLink, len(st.payments)),
		credits:      make(map[int64]models.CreditLink, len(st.credits)),
		wallets:      make(map[int64]models.WalletReservation, len(st.wallets)),
		disputes:     make(map[int64]models.Dispute, len(st.disputes)),
		history:      append([]models.HistoryEntry(nil), st.history...),
	}
	for k, v := range st.transactions {
		out.transactions[k] = v
	}
	for k, v := range st.escrows {
		out.escrows[k] = v
	}
	for k, v := range st.settlements {
		out.settlements[k] = v
	}
	for k, v := range st.payments {
		out.payments[k] = v
	}
	for k, v := range st.credits {
		out.credits[k] = v
	}
	for k, v := range st.wallets {
		out.wallets[k] = v
	}
	for k, v := range st.disputes {
		out.disputes[k] = v
	}
	return out
}

func (st *memState) nextID() int64 {
	st.seq++
	return st.seq
}

// failOn заставляет операцию op (например "wallets.Create") вернуть err.
func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// read выполняет fn над текущим состоянием под блокировкой.
func (s *memStore) read(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// setStatus переводит сделку в нужный статус в обход оркестратора (подготовка фикстур).
func (s *memStore) setStatus(id int64, status valueobject.TransactionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.state.transactions[id]
	t.Status = status
	s.state.transactions[id] = t
}

// setPaid привязывает к сделке проведённый платёж в обход оркестратора.
func (s *memStore) setPaid(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.state.payments[id] = models.PaymentLink{
		ID:            s.state.nextID(),
		TransactionID: id,
		PaymentID:     900 + id,
		Status:        valueobject.PaymentStatusCompleted,
		Amount:        s.state.transactions[id].TotalPrice,
		PaidAt:        &paidAt,
	}
}

func (s *memStore) historyOf(id int64) []models.HistoryEntry {
	var out []models.HistoryEntry
	s.read(func(st *memState) {
		for _, h := range st.history {
			if h.TransactionID == id {
				out = append(out, h)
			}
		}
	})
	return out
}

func (s *memStore) Repositories() domainrepo.Repositories {
	return s.repositories(true)
}

func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context, repos domainrepo.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, s.repositories(false)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memStore) repositories(lock bool) domainrepo.Repositories {
	b := memBase{s: s, lock: lock}
	return domainrepo.Repositories{
		Transactions: memTransactions{b},
		Escrows:      memEscrows{b},
		Settlements:  memSettlements{b},
		Payments:     memPayments{b},
		Credits:      memCredits{b},
		Wallets:      memWallets{b},
		Disputes:     memDisputes{b},
		History:      memHistory{b},
	}
}

type memBase struct {
	s    *memStore
	lock bool
}

func (b memBase) do(op string, fn func(st *memState) error) error {
	if b.lock {
		b.s.mu.Lock()
		defer b.s.mu.Unlock()
	}
	if err := b.s.failures[op]; err != nil {
		return err
	}
	return fn(b.s.state)
}

type memTransactions struct{ memBase }

func (r memTransactions) Create(_ context.Context, t *models.Transaction) error {
	return r.do("transactions.Create", func(st *memState) error {
		t.ID = st.nextID()
		now := time.Now().UTC()
		t.CreatedAt, t.UpdatedAt = now, now
		st.transactions[t.ID] = *t
		return nil
	})
}

func (r memTransactions) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.do("transactions.GetByID", func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r memTransactions) GetByIDForUpdate(ctx context.Context, id int64) (*models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r memTransactions) UpdateStatus(_ context.Context, id int64, status valueobject.TransactionStatus, at time.Time) error {
	return r.do("transactions.UpdateStatus", func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok {
			return domainrepo.ErrNotFound
		}
		t.Status = status
		t.UpdatedAt = at
		st.transactions[id] = t
		return nil
	})
}

func (r memTransactions) ListByBuyer(_ context.Context, buyerID int64, limit, offset int) ([]models.Transaction, error) {
	return r.list(func(t models.Transaction) bool { return t.BuyerID == buyerID }, limit, offset)
}

func (r memTransactions) CountByBuyer(ctx context.Context, buyerID int64) (int, error) {
	items, err := r.list(func(t models.Transaction) bool { return t.BuyerID == buyerID }, 0, 0)
	return len(items), err
}

func (r memTransactions) ListBySeller(_ context.Context, sellerID int64, limit, offset int) ([]models.Transaction, error) {
	return r.list(func(t models.Transaction) bool { return t.SellerID == sellerID }, limit, offset)
}

func (r memTransactions) CountBySeller(ctx context.Context, sellerID int64) (int, error) {
	items, err := r.list(func(t models.Transaction) bool { return t.SellerID == sellerID }, 0, 0)
	return len(items), err
}

func (r memTransactions) list(match func(models.Transaction) bool, limit, offset int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.do("transactions.List", func(st *memState) error {
		for _, t := range st.transactions {
			if match(t) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), err
}

func (r memTransactions) ListExpired(_ context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := r.do("transactions.ListExpired", func(st *memState) error {
		for _, t := range st.transactions {
			if t.IsExpired(now) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return paginate(out, limit, 0), err
}

func (r memTransactions) GetSummary(_ context.Context, id int64) (*models.TransactionSummary, error) {
	var out *models.TransactionSummary
	err := r.do("transactions.GetSummary", func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok {
			return domainrepo.ErrNotFound
		}
		s := &models.TransactionSummary{
			ID:           t.ID,
			ListingID:    t.ListingID,
			BuyerID:      t.BuyerID,
			SellerID:     t.SellerID,
			CreditAmount: t.CreditAmount,
			TotalPrice:   t.TotalPrice,
			Currency:     t.Currency,
			Status:       t.Status,
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
		}
		if p, ok := st.payments[id]; ok {
			s.PaymentStatus = &p.Status
		}
		if c, ok := st.credits[id]; ok {
			s.CreditStatus = &c.Status
		}
		if w, ok := st.wallets[id]; ok {
			s.WalletStatus = &w.Status
		}
		if e, ok := st.escrows[id]; ok {
			s.EscrowAmount = decimal.NewNullDecimal(e.AmountHeld)
			s.EscrowReleasedAt = e.ReleasedAt
		}
		if set, ok := st.settlements[id]; ok {
			s.SettlementStatus = &set.Status
			s.SellerAmount = decimal.NewNullDecimal(set.SellerAmount)
			s.PlatformFee = decimal.NewNullDecimal(set.PlatformFee)
			s.BuyerRefund = decimal.NewNullDecimal(set.BuyerRefund)
		}
		out = s
		return nil
	})
	return out, err
}

type memEscrows struct{ memBase }

func (r memEscrows) Create(_ context.Context, e *models.EscrowRecord) error {
	return r.do("escrows.Create", func(st *memState) error {
		if _, ok := st.escrows[e.TransactionID]; ok {
			return domainrepo.ErrAlreadyExists
		}
		e.ID = st.nextID()
		st.escrows[e.TransactionID] = *e
		return nil
	})
}

func (r memEscrows) GetByTransactionID(_ context.Context, transactionID int64) (*models.EscrowRecord, error) {
	var out *models.EscrowRecord
	err := r.do("escrows.Get", func(st *memState) error {
		e, ok := st.escrows[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r memEscrows) Release(_ context.Context, transactionID int64, reason string, at time.Time) error {
	return r.do("escrows.Release", func(st *memState) error {
		e, ok := st.escrows[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		if e.ReleasedAt == nil {
			e.ReleasedAt = &at
			e.ReleaseReason = &reason
			st.escrows[transactionID] = e
		}
		return nil
	})
}

type memSettlements struct{ memBase }

func (r memSettlements) Create(_ context.Context, s *models.SettlementRecord) error {
	return r.do("settlements.Create", func(st *memState) error {
		if _, ok := st.settlements[s.TransactionID]; ok {
			return domainrepo.ErrAlreadyExists
		}
		s.ID = st.nextID()
		st.settlements[s.TransactionID] = *s
		return nil
	})
}

func (r memSettlements) GetByTransactionID(_ context.Context, transactionID int64) (*models.SettlementRecord, error) {
	var out *models.SettlementRecord
	err := r.do("settlements.Get", func(st *memState) error {
		s, ok := st.settlements[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r memSettlements) Update(_ context.Context, transactionID int64, status valueobject.SettlementStatus, buyerRefund decimal.Decimal, settledAt *time.Time) error {
	return r.do("settlements.Update", func(st *memState) error {
		s, ok := st.settlements[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		s.Status = status
		s.BuyerRefund = buyerRefund
		if settledAt != nil {
			s.SettledAt = settledAt
		}
		st.settlements[transactionID] = s
		return nil
	})
}

type memPayments struct{ memBase }

func (r memPayments) Create(_ context.Context, p *models.PaymentLink) error {
	return r.do("payments.Create", func(st *memState) error {
		if _, ok := st.payments[p.TransactionID]; ok {
			return domainrepo.ErrAlreadyExists
		}
		p.ID = st.nextID()
		st.payments[p.TransactionID] = *p
		return nil
	})
}

func (r memPayments) GetByTransactionID(_ context.Context, transactionID int64) (*models.PaymentLink, error) {
	var out *models.PaymentLink
	err := r.do("payments.Get", func(st *memState) error {
		p, ok := st.payments[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memPayments) UpdateStatus(_ context.Context, transactionID int64, status valueobject.PaymentStatus, paidAt *time.Time) error {
	return r.do("payments.UpdateStatus", func(st *memState) error {
		p, ok := st.payments[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		p.Status = status
		if paidAt != nil {
			p.PaidAt = paidAt
		}
		st.payments[transactionID] = p
		return nil
	})
}

type memCredits struct{ memBase }

func (r memCredits) Create(_ context.Context, c *models.CreditLink) error {
	return r.do("credits.Create", func(st *memState) error {
		if _, ok := st.credits[c.TransactionID]; ok {
			return domainrepo.ErrAlreadyExists
		}
		c.ID = st.nextID()
		st.credits[c.TransactionID] = *c
		return nil
	})
}

func (r memCredits) GetByTransactionID(_ context.Context, transactionID int64) (*models.CreditLink, error) {
	var out *models.CreditLink
	err := r.do("credits.Get", func(st *memState) error {
		c, ok := st.credits[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r memCredits) UpdateStatus(_ context.Context, transactionID int64, status valueobject.CreditStatus, creditTransferID int64, transferredAt *time.Time) error {
	return r.do("credits.UpdateStatus", func(st *memState) error {
		c, ok := st.credits[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		c.Status = status
		if creditTransferID != 0 {
			c.CreditTransferID = creditTransferID
		}
		if transferredAt != nil {
			c.TransferredAt = transferredAt
		}
		st.credits[transactionID] = c
		return nil
	})
}

type memWallets struct{ memBase }

func (r memWallets) Create(_ context.Context, w *models.WalletReservation) error {
	return r.do("wallets.Create", func(st *memState) error {
		if _, ok := st.wallets[w.TransactionID]; ok {
			return domainrepo.ErrAlreadyExists
		}
		w.ID = st.nextID()
		st.wallets[w.TransactionID] = *w
		return nil
	})
}

func (r memWallets) GetByTransactionID(_ context.Context, transactionID int64) (*models.WalletReservation, error) {
	var out *models.WalletReservation
	err := r.do("wallets.Get", func(st *memState) error {
		w, ok := st.wallets[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r memWallets) UpdateStatus(_ context.Context, transactionID int64, status valueobject.WalletStatus, at time.Time) error {
	return r.do("wallets.UpdateStatus", func(st *memState) error {
		w, ok := st.wallets[transactionID]
		if !ok {
			return domainrepo.ErrNotFound
		}
		w.Status = status
		switch status {
		case valueobject.WalletStatusReserved:
			w.ReservedAt = &at
		case valueobject.WalletStatusSettled, valueobject.WalletStatusRefunded:
			w.SettledAt = &at
		}
		st.wallets[transactionID] = w
		return nil
	})
}

type memDisputes struct{ memBase }

func (r memDisputes) Create(_ context.Context, d *models.Dispute) error {
	return r.do("disputes.Create", func(st *memState) error {
		for _, existing := range st.disputes {
			if existing.TransactionID == d.TransactionID && existing.Status != valueobject.DisputeStatusClosed {
				return domainrepo.ErrAlreadyExists
			}
		}
		d.ID = st.nextID()
		now := time.Now().UTC()
		d.CreatedAt, d.UpdatedAt = now, now
		st.disputes[d.ID] = *d
		return nil
	})
}

func (r memDisputes) GetByID(_ context.Context, id int64) (*models.Dispute, error) {
	var out *models.Dispute
	err := r.do("disputes.GetByID", func(st *memState) error {
		d, ok := st.disputes[id]
		if !ok {
			return domainrepo.ErrNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r memDisputes) GetByIDForUpdate(ctx context.Context, id int64) (*models.Dispute, error) {
	return r.GetByID(ctx, id)
}

func (r memDisputes) GetLatestByTransaction(_ context.Context, transactionID int64) (*models.Dispute, error) {
	return r.latest(func(d models.Dispute) bool { return d.TransactionID == transactionID })
}

func (r memDisputes) GetUnclosedByTransaction(_ context.Context, transactionID int64) (*models.Dispute, error) {
	return r.latest(func(d models.Dispute) bool {
		return d.TransactionID == transactionID && d.Status != valueobject.DisputeStatusClosed
	})
}

func (r memDisputes) latest(match func(models.Dispute) bool) (*models.Dispute, error) {
	var out *models.Dispute
	err := r.do("disputes.Latest", func(st *memState) error {
		for _, d := range st.disputes {
			if match(d) && (out == nil || d.ID > out.ID) {
				found := d
				out = &found
			}
		}
		if out == nil {
			return domainrepo.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (r memDisputes) Update(_ context.Context, d *models.Dispute) error {
	return r.do("disputes.Update", func(st *memState) error {
		if _, ok := st.disputes[d.ID]; !ok {
			return domainrepo.ErrNotFound
		}
		d.UpdatedAt = time.Now().UTC()
		st.disputes[d.ID] = *d
		return nil
	})
}

func (r memDisputes) List(_ context.Context, filter domainrepo.DisputeFilter) ([]models.Dispute, error) {
	items, err := r.filter(filter)
	return paginate(items, filter.Limit, filter.Offset), err
}

func (r memDisputes) Count(_ context.Context, filter domainrepo.DisputeFilter) (int, error) {
	items, err := r.filter(filter)
	return len(items), err
}

func (r memDisputes) filter(filter domainrepo.DisputeFilter) ([]models.Dispute, error) {
	var out []models.Dispute
	err := r.do("disputes.List", func(st *memState) error {
		for _, d := range st.disputes {
			if filter.RaisedBy != nil && d.RaisedBy != *filter.RaisedBy {
				continue
			}
			if filter.Status != nil && d.Status != *filter.Status {
				continue
			}
			if filter.ActiveOnly && !d.Status.IsActive() {
				continue
			}
			out = append(out, d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

type memHistory struct{ memBase }

func (r memHistory) Add(_ context.Context, entry *models.HistoryEntry) error {
	return r.do("history.Add", func(st *memState) error {
		entry.ID = st.nextID()
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r memHistory) ListByTransaction(_ context.Context, transactionID int64) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	err := r.do("history.List", func(st *memState) error {
		for _, h := range st.history {
			if h.TransactionID == transactionID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
