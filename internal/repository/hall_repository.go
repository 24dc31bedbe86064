package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// HallRepository reads the hall directory.
type HallRepository struct {
	db *sqlx.DB
}

// NewHallRepository constructs the repository.
func NewHallRepository(db *sqlx.DB) *HallRepository {
	return &HallRepository{db: db}
}

// FindByID returns a hall by ID.
func (r *HallRepository) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	var hall models.Hall
	if err := r.db.GetContext(ctx, &hall, "SELECT id, name, capacity, active FROM halls WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &hall, nil
}

// Lock takes a row lock on the hall until exec's transaction ends. Booking writers
// hold it while they check for overlaps so two of them cannot claim the same slot.
func (r *HallRepository) Lock(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, exec, &locked, "SELECT id FROM halls WHERE id = $1 FOR UPDATE", id); err != nil {
		return fmt.Errorf("lock hall: %w", err)
	}
	return nil
}

// ListActive returns halls that can take bookings.
func (r *HallRepository) ListActive(ctx context.Context) ([]models.Hall, error) {
	var halls []models.Hall
	if err := r.db.SelectContext(ctx, &halls, "SELECT id, name, capacity, active FROM halls WHERE active = TRUE ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list halls: %w", err)
	}
	return halls, nil
}
