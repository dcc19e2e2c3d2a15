package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/rs/zerolog"
)

var errTxClosed = errors.New("transaction already closed")

type entryKey struct {
	customerID int64
	couponID   int64
}

// MemoryRepository keeps coupons and the purchase ledger in process memory.
//
// The mutex guards map access only. Isolation between concurrent read-check-write
// sequences on one coupon is the caller's job; transactions stage their writes
// and apply them atomically on Commit.
type MemoryRepository struct {
	mu        sync.Mutex
	nextID    int64
	coupons   map[int64]*model.Coupon
	entries   map[int64]map[int64]struct{} // couponID -> customerIDs
	companies map[int64]model.Company
	customers map[int64]model.Customer
	logger    zerolog.Logger
}

// NewMemoryRepository creates an empty in-memory coupon repository.
func NewMemoryRepository(logger zerolog.Logger) *MemoryRepository {
	return &MemoryRepository{
		coupons:   make(map[int64]*model.Coupon),
		entries:   make(map[int64]map[int64]struct{}),
		companies: make(map[int64]model.Company),
		customers: make(map[int64]model.Customer),
		logger:    logger.With().Str("repository", "memory").Logger(),
	}
}

// BeginTx starts a staged transaction.
func (r *MemoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		repo:       r,
		staged:     make(map[int64]*model.Coupon),
		deleted:    make(map[int64]bool),
		added:      make(map[entryKey]bool),
		removedFor: make(map[int64]bool),
	}, nil
}

// GetByID retrieves a copy of the coupon.
func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.coupons[id].Clone(), nil
}

// List returns copies of every coupon matching the filter, ordered by ID.
func (r *MemoryRepository) List(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coupons := []model.Coupon{}
	for id, c := range r.coupons {
		if filter.CustomerID != 0 {
			if _, ok := r.entries[id][filter.CustomerID]; !ok {
				continue
			}
		}
		if filter.Matches(c) {
			coupons = append(coupons, *c)
		}
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].ID < coupons[j].ID })
	return coupons, nil
}

// ListExpired returns the IDs of coupons whose end date is before asOf.
func (r *MemoryRepository) ListExpired(ctx context.Context, asOf model.Date) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := []int64{}
	for id, c := range r.coupons {
		if c.ExpiredOn(asOf) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HasEntry reports whether the customer holds the coupon.
func (r *MemoryRepository) HasEntry(ctx context.Context, customerID, couponID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[couponID][customerID]
	return ok, nil
}

// CustomerExists reports whether the customer is known.
func (r *MemoryRepository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.customers[customerID]
	return ok, nil
}

// Create inserts a new coupon and returns it with its assigned ID.
func (r *MemoryRepository) Create(ctx context.Context, coupon *model.Coupon) (*model.Coupon, error) {
	if err := model.CheckStorageLimits(coupon); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.companies[coupon.CompanyID]; !ok {
		return nil, model.ErrCompanyNotFound
	}
	if r.titleTakenLocked(coupon.CompanyID, coupon.Title, 0, nil) {
		return nil, model.ErrTitleTaken
	}

	r.nextID++
	created := coupon.Clone()
	created.ID = r.nextID
	r.coupons[created.ID] = created

	r.logger.Debug().Int64("coupon_id", created.ID).Msg("coupon created successfully")
	return created.Clone(), nil
}

// UpsertCompany inserts or refreshes a company reference.
func (r *MemoryRepository) UpsertCompany(ctx context.Context, company *model.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.companies[company.ID] = *company
	return nil
}

// UpsertCustomer inserts or refreshes a customer reference.
func (r *MemoryRepository) UpsertCustomer(ctx context.Context, customer *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.customers[customer.ID] = *customer
	return nil
}

// titleTakenLocked reports whether another coupon of the company uses title.
// overlay, when set, replaces the committed view of the coupons it contains.
func (r *MemoryRepository) titleTakenLocked(companyID int64, title string, exceptID int64, overlay func(id int64) (*model.Coupon, bool)) bool {
	for id, c := range r.coupons {
		if overlay != nil {
			if staged, ok := overlay(id); ok {
				c = staged
			}
		}
		if c == nil || id == exceptID {
			continue
		}
		if c.CompanyID == companyID && c.Title == title {
			return true
		}
	}
	return false
}

// memTx stages writes against a MemoryRepository.
type memTx struct {
	repo       *MemoryRepository
	staged     map[int64]*model.Coupon
	deleted    map[int64]bool
	added      map[entryKey]bool
	removedFor map[int64]bool
	done       bool
}

// couponLocked returns the transaction's view of a coupon. Caller holds repo.mu.
func (t *memTx) couponLocked(id int64) *model.Coupon {
	if t.deleted[id] {
		return nil
	}
	if c, ok := t.staged[id]; ok {
		return c
	}
	return t.repo.coupons[id]
}

func (t *memTx) hasEntryLocked(customerID, couponID int64) bool {
	if t.added[entryKey{customerID, couponID}] {
		return true
	}
	if t.removedFor[couponID] || t.deleted[couponID] {
		return false
	}
	_, ok := t.repo.entries[couponID][customerID]
	return ok
}

func (t *memTx) GetForUpdate(ctx context.Context, id int64) (*model.Coupon, error) {
	if t.done {
		return nil, errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	return t.couponLocked(id).Clone(), nil
}

func (t *memTx) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	if t.done {
		return false, errTxClosed
	}
	return t.repo.CustomerExists(ctx, customerID)
}

func (t *memTx) HasEntry(ctx context.Context, customerID, couponID int64) (bool, error) {
	if t.done {
		return false, errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	return t.hasEntryLocked(customerID, couponID), nil
}

func (t *memTx) UpdateStock(ctx context.Context, id int64, delta int) (*model.Coupon, error) {
	if t.done {
		return nil, errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	c := t.couponLocked(id)
	if c == nil {
		return nil, model.ErrCouponNotFound
	}
	if c.Amount+delta < 0 {
		t.repo.logger.Error().Int64("coupon_id", id).Int("amount", c.Amount).Int("delta", delta).Msg("stock update would go negative")
		return nil, model.ErrStockViolation
	}

	updated := c.Clone()
	updated.Amount += delta
	t.staged[id] = updated
	return updated.Clone(), nil
}

func (t *memTx) AddEntry(ctx context.Context, customerID, couponID int64) error {
	if t.done {
		return errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if t.couponLocked(couponID) == nil {
		return model.ErrCouponNotFound
	}
	if _, ok := t.repo.customers[customerID]; !ok {
		return model.ErrCustomerNotFound
	}
	if t.hasEntryLocked(customerID, couponID) {
		return model.ErrDuplicateEntry
	}
	t.added[entryKey{customerID, couponID}] = true
	return nil
}

func (t *memTx) RemoveEntriesForCoupon(ctx context.Context, couponID int64) (int, error) {
	if t.done {
		return 0, errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	removed := 0
	if !t.removedFor[couponID] && !t.deleted[couponID] {
		removed = len(t.repo.entries[couponID])
	}
	for k := range t.added {
		if k.couponID == couponID {
			delete(t.added, k)
			removed++
		}
	}
	t.removedFor[couponID] = true
	return removed, nil
}

func (t *memTx) Update(ctx context.Context, coupon *model.Coupon) error {
	if t.done {
		return errTxClosed
	}
	if err := model.CheckStorageLimits(coupon); err != nil {
		return err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if t.couponLocked(coupon.ID) == nil {
		return model.ErrCouponNotFound
	}
	if _, ok := t.repo.companies[coupon.CompanyID]; !ok {
		return model.ErrCompanyNotFound
	}
	if t.repo.titleTakenLocked(coupon.CompanyID, coupon.Title, coupon.ID, t.overlay) {
		return model.ErrTitleTaken
	}
	t.staged[coupon.ID] = coupon.Clone()
	return nil
}

func (t *memTx) Delete(ctx context.Context, id int64) (bool, error) {
	if t.done {
		return false, errTxClosed
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if t.couponLocked(id) == nil {
		return false, nil
	}
	for k := range t.added {
		if k.couponID == id {
			delete(t.added, k)
		}
	}
	delete(t.staged, id)
	t.deleted[id] = true
	return true, nil
}

// Commit re-checks the staged state against the committed maps and then
// applies every write in one critical section.
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.done = true

	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range t.staged {
		if c.Amount < 0 {
			return model.ErrStockViolation
		}
		if r.titleTakenLocked(c.CompanyID, c.Title, id, t.overlay) {
			return model.ErrTitleTaken
		}
	}
	for k := range t.added {
		if _, ok := r.coupons[k.couponID]; !ok {
			return model.ErrCouponNotFound
		}
		if _, ok := r.entries[k.couponID][k.customerID]; ok && !t.removedFor[k.couponID] {
			return model.ErrDuplicateEntry
		}
	}

	for id := range t.removedFor {
		delete(r.entries, id)
	}
	for id := range t.deleted {
		delete(r.coupons, id)
		delete(r.entries, id)
	}
	for id, c := range t.staged {
		if _, ok := r.coupons[id]; ok {
			r.coupons[id] = c
		}
	}
	for k := range t.added {
		set, ok := r.entries[k.couponID]
		if !ok {
			set = make(map[int64]struct{})
			r.entries[k.couponID] = set
		}
		set[k.customerID] = struct{}{}
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) overlay(id int64) (*model.Coupon, bool) {
	if t.deleted[id] {
		return nil, true
	}
	c, ok := t.staged[id]
	return c, ok
}
