package inventory

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/db/dbtest"
	"github.com/angelmondragon/packquote-backend/pkg/db/models"
	"github.com/angelmondragon/packquote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/metrics"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
)

func seedRecord(t *testing.T, client *db.Client, sku string, onHand int64) uuid.UUID {
	t.Helper()
	record := models.InventoryRecord{ID: uuid.New(), SKU: sku, WarehouseLocation: "main", QuantityOnHand: onHand}
	require.NoError(t, client.DB().Create(&record).Error)
	return record.ID
}

func onHand(t *testing.T, client *db.Client, id uuid.UUID) int64 {
	t.Helper()
	var record models.InventoryRecord
	require.NoError(t, client.DB().First(&record, "id = ?", id).Error)
	return record.QuantityOnHand
}

type recordedMetrics struct {
	mu              sync.Mutex
	outcomes        []string
	historyFailures int
}

func (r *recordedMetrics) RecordStockAdjustment(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordedMetrics) IncHistoryFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyFailures++
}

func newService(t *testing.T, client *db.Client, m stockMetrics) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	svc, err := NewService(NewRepository(client.DB()), client, emitter, m, logg)
	require.NoError(t, err)
	return svc
}

func TestRepositoryAdjust(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	id := seedRecord(t, client, "SUP-120-150", 100)

	adj, err := repo.Adjust(context.Background(), id, -30)
	require.NoError(t, err)
	assert.Equal(t, int64(100), adj.PreviousQuantity)
	assert.Equal(t, int64(70), adj.NewQuantity)
	assert.Equal(t, "SUP-120-150", adj.SKU)

	adj, err = repo.Adjust(context.Background(), id, -70)
	require.NoError(t, err)
	assert.Equal(t, int64(0), adj.NewQuantity)

	_, err = repo.Adjust(context.Background(), id, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, int64(0), onHand(t, client, id))

	_, err = repo.Adjust(context.Background(), uuid.New(), 5)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestConcurrentAdjustmentsNeverGoNegative(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	id := seedRecord(t, client, "ROLL-590", 10)

	const workers = 25
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Adjust(context.Background(), id, -1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, workers-10, rejected)
	assert.Equal(t, int64(0), onHand(t, client, id))
}

func TestServiceAdjustWritesHistoryAndEvent(t *testing.T) {
	client := dbtest.Open(t)
	m := &recordedMetrics{}
	svc := newService(t, client, m)
	id := seedRecord(t, client, "BOX-200", 5)

	res, err := svc.Adjust(context.Background(), AdjustInput{
		InventoryID:     id,
		Delta:           12,
		Reason:          "入荷",
		Type:            enums.InventoryTxReceipt,
		ReferenceNumber: "PO-7781",
	})
	require.NoError(t, err)
	assert.Equal(t, AdjustResult{PreviousQuantity: 5, NewQuantity: 17}, res)

	history, err := NewRepository(client.DB()).History(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.InventoryTxReceipt, history[0].TransactionType)
	assert.Equal(t, int64(5), history[0].QuantityBefore)
	assert.Equal(t, int64(17), history[0].QuantityAfter)
	require.NotNil(t, history[0].ReferenceNumber)
	assert.Equal(t, "PO-7781", *history[0].ReferenceNumber)

	assert.EqualValues(t, 1, dbtest.Count(t, client, "outbox_events"))
	assert.Equal(t, []string{metrics.OutcomeOK}, m.outcomes)
	assert.Zero(t, m.historyFailures)
}

func TestServiceAdjustKeepsStockWhenHistoryFails(t *testing.T) {
	client := dbtest.Open(t)
	m := &recordedMetrics{}
	svc := newService(t, client, m)
	id := seedRecord(t, client, "BOX-300", 5)
	require.NoError(t, client.DB().Exec("DROP TABLE inventory_transactions").Error)

	res, err := svc.Adjust(context.Background(), AdjustInput{InventoryID: id, Delta: -2, Reason: "出荷"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.NewQuantity)
	assert.Equal(t, int64(3), onHand(t, client, id))
	assert.Equal(t, 1, m.historyFailures)
}

func TestServiceAdjustValidation(t *testing.T) {
	client := dbtest.Open(t)
	m := &recordedMetrics{}
	svc := newService(t, client, m)
	id := seedRecord(t, client, "BOX-400", 5)

	for name, input := range map[string]AdjustInput{
		"zero delta": {InventoryID: id, Delta: 0, Reason: "x"},
		"no reason":  {InventoryID: id, Delta: 1},
		"no id":      {Delta: 1, Reason: "x"},
		"bad type":   {InventoryID: id, Delta: 1, Reason: "x", Type: "teleport"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Adjust(context.Background(), input)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}

	_, err := svc.Adjust(context.Background(), AdjustInput{InventoryID: id, Delta: -6, Reason: "出荷"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, int64(5), onHand(t, client, id))
	assert.EqualValues(t, 0, dbtest.Count(t, client, "inventory_transactions"))
	assert.Len(t, m.outcomes, 5)
	assert.Equal(t, metrics.OutcomeRejected, m.outcomes[4])
}

func TestServiceGetAndHistory(t *testing.T) {
	client := dbtest.Open(t)
	svc := newService(t, client, nil)
	id := seedRecord(t, client, "BOX-500", 8)

	_, err := svc.Adjust(context.Background(), AdjustInput{InventoryID: id, Delta: -3, Reason: "サンプル出荷"})
	require.NoError(t, err)

	record, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), record.QuantityOnHand)

	rows, err := svc.History(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.InventoryTxAdjustment, rows[0].TransactionType)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	_, err = svc.History(context.Background(), uuid.New(), 10)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
