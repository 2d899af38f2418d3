package model

import (
	"time"

	"github.com/google/uuid"
)

type ProspectStatus string

const (
	ProspectStatusNew       ProspectStatus = "new"
	ProspectStatusContacted ProspectStatus = "contacted"
	ProspectStatusConverted ProspectStatus = "converted"
	ProspectStatusLost      ProspectStatus = "lost"
)

// Prospect is an upstream inbound-inquiry record. The engine only reads
// it; its lifecycle is owned by the intake product.
type Prospect struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Status         string    `db:"status" json:"status"`
	Source         string    `db:"source" json:"source"`
	InquiryType    *string   `db:"inquiry_type" json:"inquiry_type,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
