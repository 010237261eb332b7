package models

import (
	"time"

	"github.com/google/uuid"
)

type PlatformRole string

const (
	PlatformRoleUser  PlatformRole = "user"
	PlatformRoleAdmin PlatformRole = "admin"
)

type User struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Email     string       `json:"email" db:"email"`
	Username  string       `json:"username" db:"username"`
	Role      PlatformRole `json:"role" db:"role"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
