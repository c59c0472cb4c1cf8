package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/enums"
)

// SampleRequest is the header of a free sample request.
type SampleRequest struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestNumber   string                    `gorm:"column:request_number;not null;uniqueIndex:ux_sample_requests_number"`
	CustomerID      *uuid.UUID                `gorm:"column:customer_id;type:uuid"`
	ContactName     *string                   `gorm:"column:contact_name"`
	ContactEmail    *string                   `gorm:"column:contact_email"`
	ContactPhone    *string                   `gorm:"column:contact_phone"`
	CompanyName     *string                   `gorm:"column:company_name"`
	ShippingAddress string                    `gorm:"column:shipping_address;not null"`
	Status          enums.SampleRequestStatus `gorm:"column:status;type:text;not null;default:'received'"`
	TrackingNumber  *string                   `gorm:"column:tracking_number"`
	Notes           *string                   `gorm:"column:notes"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	Items           []SampleItem              `gorm:"foreignKey:SampleRequestID"`
}

func (SampleRequest) TableName() string { return "sample_requests" }

type SampleItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SampleRequestID uuid.UUID `gorm:"column:sample_request_id;type:uuid;not null"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName     string    `gorm:"column:product_name;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SampleItem) TableName() string { return "sample_items" }
