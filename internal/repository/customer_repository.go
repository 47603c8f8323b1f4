// Package repository contains the persistence layer for the ingestion
// pipeline. Every repository is a thin struct over the shared database
// handle; none of them keep state of their own.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

// CustomerRepository handles customer rows.
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByEmail looks a customer up by exact address, case-insensitively.
// Returns (nil, nil) when no row exists.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	query := r.db.Rebind(`
		SELECT id, email, name, created_at, updated_at
		FROM customers
		WHERE lower(email) = lower($1)`)
	var c models.Customer
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)).Scan(
		&c.ID, &c.Email, &c.Name, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	return &c, nil
}

// Create inserts a new customer and returns it. A unique violation is
// reported as-is so callers can re-fetch the concurrently created row.
func (r *CustomerRepository) Create(ctx context.Context, email, name string) (*models.Customer, error) {
	now := time.Now()
	c := &models.Customer{
		ID:        uuid.New().String(),
		Email:     strings.TrimSpace(email),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := r.db.Rebind(`
		INSERT INTO customers (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`)
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.Name, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// Resolve maps an address to a customer id, creating the customer on
// first contact. Concurrent first contact from the same address races
// on the unique email index; the loser re-fetches instead of failing.
func (r *CustomerRepository) Resolve(ctx context.Context, email, name string) (*models.Customer, error) {
	existing, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if strings.TrimSpace(name) == "" {
		name = localPart(email)
	}
	created, err := r.Create(ctx, email, name)
	if err == nil {
		return created, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("customer create: %w", err)
	}
	existing, ferr := r.GetByEmail(ctx, email)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, fmt.Errorf("customer create: %w", err)
	}
	return existing, nil
}

func localPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
