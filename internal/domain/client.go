package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a rider enrolled in an organization's program.
type Client struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	FirstName      string
	LastName       string
	HomeAddress    string
	CreatedAt      time.Time
}

// FullName joins first and last name with a single space.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ClientGroup is a named set of clients that ride together.
type ClientGroup struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	CreatedAt      time.Time
}
