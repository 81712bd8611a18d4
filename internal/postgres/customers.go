package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
)

const uniqueViolation = "23505"

type CustomerStore struct{ DB *pgxpool.Pool }

const customerColumns = `id, email, name, loyalty_points, active, registered_at`

func (s *CustomerStore) Save(ctx context.Context, c customers.Customer) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", customers.ErrInvalidCustomer)
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO customers (id, email, name, loyalty_points, active, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email, name = EXCLUDED.name, loyalty_points = EXCLUDED.loyalty_points,
			active = EXCLUDED.active, registered_at = EXCLUDED.registered_at`,
		c.ID, c.Email, c.Name, c.LoyaltyPoints, c.Active, c.RegisteredAt)
	return mapCustomerErr(c, err)
}

func (s *CustomerStore) Update(ctx context.Context, c customers.Customer) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE customers SET email = $2, name = $3, loyalty_points = $4, active = $5, registered_at = $6
		WHERE id = $1`,
		c.ID, c.Email, c.Name, c.LoyaltyPoints, c.Active, c.RegisteredAt)
	if err != nil {
		return mapCustomerErr(c, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", customers.ErrCustomerNotFound, c.ID)
	}
	return nil
}

func (s *CustomerStore) FindByID(ctx context.Context, id string) (customers.Customer, error) {
	return s.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (s *CustomerStore) FindByEmail(ctx context.Context, email string) (customers.Customer, error) {
	return s.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
}

func (s *CustomerStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *CustomerStore) one(ctx context.Context, sql, arg string) (customers.Customer, error) {
	var c customers.Customer
	err := s.DB.QueryRow(ctx, sql, arg).Scan(&c.ID, &c.Email, &c.Name, &c.LoyaltyPoints, &c.Active, &c.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return customers.Customer{}, fmt.Errorf("%w: %s", customers.ErrCustomerNotFound, arg)
	}
	return c, err
}

func mapCustomerErr(c customers.Customer, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", customers.ErrEmailTaken, c.Email)
	}
	if err != nil {
		return fmt.Errorf("write customer %s: %w", c.ID, err)
	}
	return nil
}
