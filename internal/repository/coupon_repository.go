package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNumericOutOfRange   = "22003"

	constraintCompanyTitle = "coupons_company_title_key"
	constraintAmount       = "coupons_amount_check"
)

const couponColumns = `c.id, c.company_id, c.category, c.title, c.description,
	c.start_date, c.end_date, c.amount, c.price::text, c.image`

// querier is the subset shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository implements CouponRepository and AccountRepository using PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresRepository creates a new PostgreSQL-backed coupon repository.
func NewPostgresRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx, logger: r.logger}, nil
}

// GetByID retrieves a single coupon by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons c WHERE c.id = $1`

	c, err := scanCoupon(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("coupon_id", id).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("coupon_id", id).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	return c, nil
}

// List returns every coupon matching the filter, ordered by ID.
func (r *PostgresRepository) List(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query coupons")
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan coupon row")
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating coupon rows")
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	return coupons, nil
}

// ListExpired returns the IDs of coupons whose end date is before asOf.
func (r *PostgresRepository) ListExpired(ctx context.Context, asOf model.Date) ([]int64, error) {
	query := `SELECT id FROM coupons WHERE end_date < $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, asOf.Time())
	if err != nil {
		r.logger.Error().Err(err).Stringer("as_of", asOf).Msg("failed to query expired coupons")
		return nil, fmt.Errorf("failed to query expired coupons: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to collect expired coupon ids")
		return nil, fmt.Errorf("failed to collect expired coupons: %w", err)
	}
	return ids, nil
}

// HasEntry reports whether the customer holds the coupon.
func (r *PostgresRepository) HasEntry(ctx context.Context, customerID, couponID int64) (bool, error) {
	return hasEntry(ctx, r.pool, r.logger, customerID, couponID)
}

// CustomerExists reports whether the customer is known.
func (r *PostgresRepository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	return customerExists(ctx, r.pool, r.logger, customerID)
}

// Create inserts a new coupon and returns it with its assigned ID.
func (r *PostgresRepository) Create(ctx context.Context, coupon *model.Coupon) (*model.Coupon, error) {
	query := `
		INSERT INTO coupons (company_id, category, title, description, start_date, end_date, amount, price, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9)
		RETURNING id
	`

	if err := model.CheckStorageLimits(coupon); err != nil {
		return nil, err
	}

	created := coupon.Clone()
	err := r.pool.QueryRow(ctx, query,
		coupon.CompanyID,
		string(coupon.Category),
		coupon.Title,
		coupon.Description,
		coupon.StartDate.Time(),
		coupon.EndDate.Time(),
		coupon.Amount,
		coupon.Price.String(),
		coupon.Image,
	).Scan(&created.ID)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			r.logger.Warn().Err(err).Int64("company_id", coupon.CompanyID).Str("title", coupon.Title).Msg("coupon rejected by constraint")
			return nil, mapped
		}
		r.logger.Error().Err(err).Int64("company_id", coupon.CompanyID).Msg("failed to create coupon")
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	r.logger.Debug().Int64("coupon_id", created.ID).Msg("coupon created successfully")
	return created, nil
}

// UpsertCompany inserts or refreshes a company reference.
func (r *PostgresRepository) UpsertCompany(ctx context.Context, company *model.Company) error {
	query := `
		INSERT INTO companies (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
	`
	if _, err := r.pool.Exec(ctx, query, company.ID, company.Name, company.Email); err != nil {
		r.logger.Error().Err(err).Int64("company_id", company.ID).Msg("failed to upsert company")
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

// UpsertCustomer inserts or refreshes a customer reference.
func (r *PostgresRepository) UpsertCustomer(ctx context.Context, customer *model.Customer) error {
	query := `
		INSERT INTO customers (id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email
	`
	if _, err := r.pool.Exec(ctx, query, customer.ID, customer.FirstName, customer.LastName, customer.Email); err != nil {
		r.logger.Error().Err(err).Int64("customer_id", customer.ID).Msg("failed to upsert customer")
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	tx     pgx.Tx
	logger zerolog.Logger
}

// GetForUpdate reads and row-locks a coupon.
func (t *pgTx) GetForUpdate(ctx context.Context, id int64) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons c WHERE c.id = $1 FOR UPDATE`

	c, err := scanCoupon(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		t.logger.Error().Err(err).Int64("coupon_id", id).Msg("failed to lock coupon")
		return nil, fmt.Errorf("failed to lock coupon: %w", err)
	}
	return c, nil
}

func (t *pgTx) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	return customerExists(ctx, t.tx, t.logger, customerID)
}

func (t *pgTx) HasEntry(ctx context.Context, customerID, couponID int64) (bool, error) {
	return hasEntry(ctx, t.tx, t.logger, customerID, couponID)
}

// UpdateStock applies delta only when the result stays non-negative.
func (t *pgTx) UpdateStock(ctx context.Context, id int64, delta int) (*model.Coupon, error) {
	query := `
		UPDATE coupons c SET amount = c.amount + $2
		WHERE c.id = $1 AND c.amount + $2 >= 0
		RETURNING ` + couponColumns

	c, err := scanCoupon(t.tx.QueryRow(ctx, query, id, delta))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.logger.Error().Err(err).Int64("coupon_id", id).Int("delta", delta).Msg("failed to update stock")
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	// No row updated: either the coupon is gone or the guard rejected the delta.
	existing, err := t.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.ErrCouponNotFound
	}
	t.logger.Error().Int64("coupon_id", id).Int("amount", existing.Amount).Int("delta", delta).Msg("stock update would go negative")
	return nil, model.ErrStockViolation
}

func (t *pgTx) AddEntry(ctx context.Context, customerID, couponID int64) error {
	query := `INSERT INTO customer_coupons (customer_id, coupon_id) VALUES ($1, $2)`

	if _, err := t.tx.Exec(ctx, query, customerID, couponID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return model.ErrDuplicateEntry
			case pgForeignKeyViolation:
				if strings.Contains(pgErr.ConstraintName, "customer_id") {
					return model.ErrCustomerNotFound
				}
				return model.ErrCouponNotFound
			}
		}
		t.logger.Error().Err(err).Int64("customer_id", customerID).Int64("coupon_id", couponID).Msg("failed to add purchase entry")
		return fmt.Errorf("failed to add purchase entry: %w", err)
	}
	return nil
}

func (t *pgTx) RemoveEntriesForCoupon(ctx context.Context, couponID int64) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM customer_coupons WHERE coupon_id = $1`, couponID)
	if err != nil {
		t.logger.Error().Err(err).Int64("coupon_id", couponID).Msg("failed to remove purchase entries")
		return 0, fmt.Errorf("failed to remove purchase entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) Update(ctx context.Context, coupon *model.Coupon) error {
	query := `
		UPDATE coupons SET
			company_id = $2, category = $3, title = $4, description = $5,
			start_date = $6, end_date = $7, amount = $8, price = $9::numeric, image = $10
		WHERE id = $1
	`

	if err := model.CheckStorageLimits(coupon); err != nil {
		return err
	}

	tag, err := t.tx.Exec(ctx, query,
		coupon.ID,
		coupon.CompanyID,
		string(coupon.Category),
		coupon.Title,
		coupon.Description,
		coupon.StartDate.Time(),
		coupon.EndDate.Time(),
		coupon.Amount,
		coupon.Price.String(),
		coupon.Image,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		t.logger.Error().Err(err).Int64("coupon_id", coupon.ID).Msg("failed to update coupon")
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCouponNotFound
	}
	return nil
}

// Delete removes the coupon; ledger rows go with it through ON DELETE CASCADE.
func (t *pgTx) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		t.logger.Error().Err(err).Int64("coupon_id", id).Msg("failed to delete coupon")
		return false, fmt.Errorf("failed to delete coupon: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func hasEntry(ctx context.Context, q querier, logger zerolog.Logger, customerID, couponID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM customer_coupons WHERE customer_id = $1 AND coupon_id = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, customerID, couponID).Scan(&exists); err != nil {
		logger.Error().Err(err).Int64("customer_id", customerID).Int64("coupon_id", couponID).Msg("failed to check purchase entry")
		return false, fmt.Errorf("failed to check purchase entry: %w", err)
	}
	return exists, nil
}

func customerExists(ctx context.Context, q querier, logger zerolog.Logger, customerID int64) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists); err != nil {
		logger.Error().Err(err).Int64("customer_id", customerID).Msg("failed to check customer")
		return false, fmt.Errorf("failed to check customer: %w", err)
	}
	return exists, nil
}

func buildListQuery(f model.CouponFilter) (string, []any) {
	var (
		sb    strings.Builder
		args  []any
		where []string
	)

	sb.WriteString(`SELECT ` + couponColumns + ` FROM coupons c`)
	if f.CustomerID != 0 {
		args = append(args, f.CustomerID)
		sb.WriteString(fmt.Sprintf(` JOIN customer_coupons cc ON cc.coupon_id = c.id AND cc.customer_id = $%d`, len(args)))
	}
	if f.CompanyID != 0 {
		args = append(args, f.CompanyID)
		where = append(where, fmt.Sprintf("c.company_id = $%d", len(args)))
	}
	if f.Category != nil {
		args = append(args, string(*f.Category))
		where = append(where, fmt.Sprintf("c.category = $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, f.MaxPrice.String())
		where = append(where, fmt.Sprintf("c.price < $%d::numeric", len(args)))
	}
	if f.AvailableOn != nil {
		args = append(args, f.AvailableOn.Time())
		where = append(where, fmt.Sprintf("c.amount > 0 AND c.end_date >= $%d", len(args)))
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY c.id")

	return sb.String(), args
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c          model.Coupon
		category   string
		start, end time.Time
		price      string
	)
	if err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&category,
		&c.Title,
		&c.Description,
		&start,
		&end,
		&c.Amount,
		&price,
		&c.Image,
	); err != nil {
		return nil, err
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	c.Category = model.Category(category)
	c.StartDate = model.DateOf(start)
	c.EndDate = model.DateOf(end)
	c.Price = p
	return &c, nil
}

func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintCompanyTitle:
		return model.ErrTitleTaken
	case pgErr.Code == pgForeignKeyViolation:
		return model.ErrCompanyNotFound
	case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintAmount:
		return model.ErrStockViolation
	case pgErr.Code == pgCheckViolation:
		return model.WrapDomainError(model.ErrCodeValidation, "coupon rejected by store", err)
	case pgErr.Code == pgNumericOutOfRange:
		return model.WrapDomainError(model.ErrCodeValidation, "coupon value out of range", err)
	}
	return nil
}
