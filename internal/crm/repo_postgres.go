package crm

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists customers in Postgres.
//
// Expected schema:
//
//	CREATE TABLE customers (
//	    id         UUID PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    name       TEXT NOT NULL DEFAULT '',
//	    phone      TEXT NOT NULL,
//	    email      TEXT NOT NULL DEFAULT '',
//	    company    TEXT NOT NULL DEFAULT ''
//	);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, c Customer) error {
	const q = `
INSERT INTO customers (id, created_at, name, phone, email, company)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    phone = EXCLUDED.phone,
    email = EXCLUDED.email,
    company = EXCLUDED.company`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.CreatedAt, c.Name, c.Phone, c.Email, c.Company)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Customer, error) {
	const q = `
SELECT id, created_at, name, phone, email, company
FROM customers
WHERE id = $1`
	var c Customer
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.CreatedAt, &c.Name, &c.Phone, &c.Email, &c.Company)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Customer, error) {
	const q = `
SELECT id, created_at, name, phone, email, company
FROM customers
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.Name, &c.Phone, &c.Email, &c.Company); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM customers WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
