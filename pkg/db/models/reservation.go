package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Reservation books a table or table group. The deposit amount is frozen once a
// payment attempt exists for it.
type Reservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID              `gorm:"column:user_id;type:uuid"`
	TableID         *uuid.UUID              `gorm:"column:table_id;type:uuid"`
	TableGroupID    *uuid.UUID              `gorm:"column:table_group_id;type:uuid"`
	EventID         *uuid.UUID              `gorm:"column:event_id;type:uuid"`
	ReservationTime time.Time               `gorm:"column:reservation_time;not null"`
	DurationMinutes int                     `gorm:"column:duration_minutes;not null;default:90"`
	NumPeople       int                     `gorm:"column:num_people;not null"`
	DepositVND      int64                   `gorm:"column:deposit_vnd;not null;default:0"`
	DepositWaived   bool                    `gorm:"column:deposit_waived;not null;default:false"`
	Status          enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'pending'"`
	CheckedInAt     *time.Time              `gorm:"column:checked_in_at"`
	CancelledAt     *time.Time              `gorm:"column:cancelled_at"`
	CompletedAt     *time.Time              `gorm:"column:completed_at"`
	NoShowAt        *time.Time              `gorm:"column:no_show_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
