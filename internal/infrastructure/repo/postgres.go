package repo

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/lib/pq"

	"commerce-backend/internal/domain"
)

type PostgresOrderRepo struct {
	db *sql.DB
}

func NewPostgresOrderRepo(dsn string) (*PostgresOrderRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresOrderRepo{db: db}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresOrderRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		order_number TEXT UNIQUE,
		user_id TEXT,
		customer_email TEXT,
		items JSONB NOT NULL DEFAULT '[]'::jsonb,
		total_price NUMERIC NOT NULL DEFAULT 0,
		shipping_price NUMERIC NOT NULL DEFAULT 0,
		tax_price NUMERIC NOT NULL DEFAULT 0,
		payment_method TEXT,
		payment_result JSONB NOT NULL DEFAULT '{}'::jsonb,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMPTZ,
		status TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	// providerOrderId is unique per provider once assigned.
	_, err = r.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS orders_provider_order_id
		ON orders ((payment_result->>'providerOrderId'))
		WHERE payment_result ? 'providerOrderId'`)
	return err
}

const orderColumns = `order_id,order_number,user_id,customer_email,items,total_price,shipping_price,tax_price,payment_method,payment_result,is_paid,paid_at,status,created_at,updated_at`

func (r *PostgresOrderRepo) Put(o *domain.Order) error {
	items, _ := json.Marshal(o.Items)
	result, _ := json.Marshal(o.PaymentResult)
	if o.PaymentResult == nil {
		result = []byte("{}")
	}
	_, err := r.db.Exec(`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (order_id) DO UPDATE SET order_number=$2,user_id=$3,customer_email=$4,items=$5,
			total_price=$6,shipping_price=$7,tax_price=$8,payment_method=$9,payment_result=$10,
			is_paid=$11,paid_at=$12,status=$13,updated_at=$15`,
		o.OrderID, o.OrderNumber, o.UserID, o.CustomerEmail, string(items),
		o.TotalPrice, o.ShippingPrice, o.TaxPrice, string(o.PaymentMethod), string(result),
		o.IsPaid, o.PaidAt, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *PostgresOrderRepo) Get(id string) (*domain.Order, bool) {
	return r.one(`SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, id)
}

func (r *PostgresOrderRepo) GetByProviderOrderID(providerOrderID string) (*domain.Order, bool) {
	return r.one(`SELECT `+orderColumns+` FROM orders WHERE payment_result->>'providerOrderId'=$1`, providerOrderID)
}

func (r *PostgresOrderRepo) GetByOrderNumber(orderNumber string) (*domain.Order, bool) {
	return r.one(`SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, orderNumber)
}

// ApplyPayment merges payment fields in a single UPDATE so concurrent
// webhook deliveries cannot lose each other's writes. paid_at is set once on
// the false-to-true transition and cleared only when requested.
func (r *PostgresOrderRepo) ApplyPayment(id string, upd domain.PaymentUpdate) (*domain.Order, error) {
	merge, err := json.Marshal(upd.Result)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(`UPDATE orders SET
			payment_result = payment_result || $2::jsonb,
			is_paid = COALESCE($3, is_paid),
			paid_at = CASE
				WHEN $4 THEN NULL
				WHEN $3 IS TRUE AND paid_at IS NULL THEN now()
				ELSE paid_at
			END,
			status = COALESCE(NULLIF($5,''), status),
			updated_at = now()
		WHERE order_id=$1
		RETURNING `+orderColumns,
		id, string(merge), upd.SetPaid, upd.ClearPaidAt, string(upd.Status))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("order not found: " + id)
		}
		return nil, err
	}
	return o, nil
}

func (r *PostgresOrderRepo) one(query string, arg string) (*domain.Order, bool) {
	o, err := scanOrder(r.db.QueryRow(query, arg))
	if err != nil {
		return nil, false
	}
	return o, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var items, result string
	var paidAt sql.NullTime
	err := row.Scan(&o.OrderID, &o.OrderNumber, &o.UserID, &o.CustomerEmail, &items,
		&o.TotalPrice, &o.ShippingPrice, &o.TaxPrice, (*string)(&o.PaymentMethod), &result,
		&o.IsPaid, &paidAt, (*string)(&o.Status), &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(items), &o.Items)
	_ = json.Unmarshal([]byte(result), &o.PaymentResult)
	if o.PaymentResult == nil {
		o.PaymentResult = domain.PaymentResult{}
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		o.PaidAt = &t
	}
	return &o, nil
}
