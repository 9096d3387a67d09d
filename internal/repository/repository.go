package repository

import (
	"context"
	"database/sql"
	"time"

	"robot_control/internal/models"
)

// EventRepo is the append-only command journal.
type EventRepo interface {
	Append(ctx context.Context, e models.RobotEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.RobotEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
