package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-mostly lookup owned by an external identity system.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
