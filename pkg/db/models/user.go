package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/pkg/enums"
)

// User is the minimal account record the core engine needs for token subjects.
// Profile CRUD lives outside this service.
type User struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	Role      enums.MemberRole `gorm:"column:role;type:member_role;not null"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
