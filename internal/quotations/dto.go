package quotations

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// Contact identifies a guest requester. It is required when CustomerID is nil.
type Contact struct {
	Name        string
	Email       string
	Phone       string
	CompanyName string
}

// ItemInput is one accepted tier: the specification snapshot and the
// breakdown the customer saw.
type ItemInput struct {
	ProductName   string
	Specification pricing.ProductSpecification
	Breakdown     pricing.CostBreakdown
}

type CreateInput struct {
	CustomerID       *uuid.UUID
	Contact          Contact
	Items            []ItemInput
	CouponCode       string
	RateTableVersion string
	Notes            string
}

// CreateResult is returned for every outcome that is not fatal. When Success
// is false, ErrorMessage is safe to show the customer.
type CreateResult struct {
	Success         bool
	QuotationID     uuid.UUID
	QuotationNumber string
	ItemCount       int

	SubtotalAmount int64
	DiscountAmount int64
	TaxAmount      int64
	TotalAmount    int64

	ErrorCode    pkgerrors.Code
	ErrorMessage string
}

func failed(code pkgerrors.Code, message string) CreateResult {
	return CreateResult{ErrorCode: code, ErrorMessage: message}
}
