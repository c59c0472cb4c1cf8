package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/internal/quotations"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

type testQuotationService struct {
	createFn       func(ctx context.Context, input quotations.CreateInput) (quotations.CreateResult, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*models.Quotation, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, next enums.QuotationStatus) (*models.Quotation, error)
	setPDFFn       func(ctx context.Context, id uuid.UUID, url string) error
}

func (s *testQuotationService) Create(ctx context.Context, input quotations.CreateInput) (quotations.CreateResult, error) {
	return s.createFn(ctx, input)
}

func (s *testQuotationService) Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	return s.getFn(ctx, id)
}

func (s *testQuotationService) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.QuotationStatus) (*models.Quotation, error) {
	return s.updateStatusFn(ctx, id, next)
}

func (s *testQuotationService) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	return s.setPDFFn(ctx, id, url)
}

func sampleQuotation(id uuid.UUID, status enums.QuotationStatus) *models.Quotation {
	return &models.Quotation{
		ID:               id,
		QuotationNumber:  "QT-20240105-CERUKR",
		Status:           status,
		Currency:         "JPY",
		SubtotalAmount:   100000,
		TaxAmount:        10000,
		TotalAmount:      110000,
		RateTableVersion: "builtin-2024-01",
		ValidUntil:       time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC),
		Items: []models.QuotationItem{
			{LineNumber: 1, ProductName: "平袋", Quantity: 1000, TotalPrice: 100000},
		},
	}
}

func TestQuotationCreateSuccess(t *testing.T) {
	id := uuid.New()
	svc := &testQuotationService{createFn: func(_ context.Context, input quotations.CreateInput) (quotations.CreateResult, error) {
		if input.Contact.Name != "山田太郎" || input.RateTableVersion != "builtin-2024-01" {
			t.Fatalf("unexpected input %+v", input)
		}
		if input.CustomerID != nil {
			t.Fatalf("expected guest request")
		}
		if len(input.Items) != 1 || input.Items[0].ProductName != "平袋" {
			t.Fatalf("unexpected items %+v", input.Items)
		}
		return quotations.CreateResult{
			Success:         true,
			QuotationID:     id,
			QuotationNumber: "QT-20240105-CERUKR",
			ItemCount:       1,
			SubtotalAmount:  100000,
			TaxAmount:       10000,
			TotalAmount:     110000,
		}, nil
	}}

	req := jsonRequest(t, http.MethodPost, "/api/v1/quotations", map[string]any{
		"contact":          map[string]string{"name": " 山田太郎 ", "email": "taro@example.com"},
		"rateTableVersion": "builtin-2024-01",
		"items":            []map[string]any{{"productName": "平袋"}},
	})
	resp := httptest.NewRecorder()
	QuotationCreate(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Success         bool      `json:"success"`
		QuotationID     uuid.UUID `json:"quotationId"`
		QuotationNumber string    `json:"quotationNumber"`
		TotalAmount     int64     `json:"totalAmount"`
	}
	decodeEnvelope(t, resp, &body)
	if !body.Success || body.QuotationID != id || body.TotalAmount != 110000 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestQuotationCreateBusinessRejection(t *testing.T) {
	svc := &testQuotationService{createFn: func(context.Context, quotations.CreateInput) (quotations.CreateResult, error) {
		return quotations.CreateResult{ErrorCode: pkgerrors.CodeConflict, ErrorMessage: "このクーポンは有効期限が切れています"}, nil
	}}
	req := jsonRequest(t, http.MethodPost, "/api/v1/quotations", map[string]any{"couponCode": "OLD"})
	resp := httptest.NewRecorder()
	QuotationCreate(svc, discardLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var body struct {
		Success      bool   `json:"success"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	decodeEnvelope(t, resp, &body)
	if body.Success || body.ErrorCode != string(pkgerrors.CodeConflict) || body.ErrorMessage == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestQuotationCreateStorageFailure(t *testing.T) {
	svc := &testQuotationService{createFn: func(context.Context, quotations.CreateInput) (quotations.CreateResult, error) {
		return quotations.CreateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")
	}}
	req := jsonRequest(t, http.MethodPost, "/api/v1/quotations", map[string]any{})
	resp := httptest.NewRecorder()
	QuotationCreate(svc, discardLogger())(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestQuotationGet(t *testing.T) {
	id := uuid.New()
	svc := &testQuotationService{getFn: func(_ context.Context, got uuid.UUID) (*models.Quotation, error) {
		if got != id {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quotation not found")
		}
		return sampleQuotation(id, enums.QuotationStatusDraft), nil
	}}

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/quotations/"+id.String(), nil), "quotationId", id.String())
	resp := httptest.NewRecorder()
	QuotationGet(svc, discardLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var view struct {
		QuotationNumber string `json:"quotationNumber"`
		Items           []struct {
			LineNumber int   `json:"lineNumber"`
			Quantity   int64 `json:"quantity"`
		} `json:"items"`
	}
	decodeEnvelope(t, resp, &view)
	if view.QuotationNumber != "QT-20240105-CERUKR" || len(view.Items) != 1 || view.Items[0].Quantity != 1000 {
		t.Fatalf("unexpected view %+v", view)
	}

	other := uuid.NewString()
	req = withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/quotations/"+other, nil), "quotationId", other)
	resp = httptest.NewRecorder()
	QuotationGet(svc, discardLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestQuotationUpdateStatus(t *testing.T) {
	id := uuid.New()
	svc := &testQuotationService{updateStatusFn: func(_ context.Context, _ uuid.UUID, next enums.QuotationStatus) (*models.Quotation, error) {
		if next != enums.QuotationStatusSent {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
		}
		return sampleQuotation(id, next), nil
	}}

	cases := []struct {
		name   string
		status string
		want   int
	}{
		{"allowed", string(enums.QuotationStatusSent), http.StatusOK},
		{"unknown status", "archived", http.StatusBadRequest},
		{"illegal transition", string(enums.QuotationStatusApproved), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withURLParams(
				jsonRequest(t, http.MethodPatch, "/api/v1/quotations/"+id.String()+"/status", map[string]string{"status": tc.status}),
				"quotationId", id.String(),
			)
			resp := httptest.NewRecorder()
			QuotationUpdateStatus(svc, discardLogger())(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestQuotationSetPDF(t *testing.T) {
	id := uuid.New()
	var stored string
	svc := &testQuotationService{setPDFFn: func(_ context.Context, _ uuid.UUID, url string) error {
		stored = url
		return nil
	}}

	req := withURLParams(
		jsonRequest(t, http.MethodPut, "/api/v1/quotations/"+id.String()+"/pdf", map[string]string{"url": "https://cdn.example.com/q/1.pdf"}),
		"quotationId", id.String(),
	)
	resp := httptest.NewRecorder()
	QuotationSetPDF(svc, discardLogger())(resp, req)
	if resp.Code != http.StatusOK || stored != "https://cdn.example.com/q/1.pdf" {
		t.Fatalf("unexpected result %d %q", resp.Code, stored)
	}

	req = withURLParams(
		jsonRequest(t, http.MethodPut, "/api/v1/quotations/"+id.String()+"/pdf", map[string]string{"url": "not a url"}),
		"quotationId", id.String(),
	)
	resp = httptest.NewRecorder()
	QuotationSetPDF(svc, discardLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
