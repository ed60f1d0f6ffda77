package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Notification stores an in-app notification. RecipientUserID is nil for
// role-targeted broadcasts; read state only ever moves unread -> read.
type Notification struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type            enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title           string                 `gorm:"column:title;type:text;not null"`
	Message         string                 `gorm:"column:message;type:text;not null"`
	Payload         json.RawMessage        `gorm:"column:payload;type:jsonb"`
	RecipientUserID *uuid.UUID             `gorm:"column:recipient_user_id;type:uuid"`
	AudienceRole    *string                `gorm:"column:audience_role;type:text"`
	OrderID         *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	ReservationID   *uuid.UUID             `gorm:"column:reservation_id;type:uuid"`
	ReadAt          *time.Time             `gorm:"column:read_at;type:timestamptz"`
	CreatedAt       time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}
