package samples

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/internal/numbering"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
)

type stubNumbers struct {
	numbers []string
	calls   int
}

func (s *stubNumbers) InsertUnique(_ *gorm.DB, _ string, _ int, _ func(), insert func(string) error) (string, error) {
	n := s.numbers[s.calls%len(s.numbers)]
	s.calls++
	return n, insert(n)
}

type brokenTx struct{}

func (brokenTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	return fmt.Errorf("%w: no route to host", db.ErrTxBegin)
}

func newService(t *testing.T, tx txRunner, numbers numberIssuer) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	if tx == nil {
		tx = client
	}
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	svc, err := NewService(tx, NewRepository(client.DB()), numbers, emitter, nil, logg, 5)
	require.NoError(t, err)
	return svc, client
}

func itemsOf(n int) []ItemInput {
	items := make([]ItemInput, n)
	for i := range items {
		items[i] = ItemInput{ProductID: uuid.New(), ProductName: fmt.Sprintf("スタンドパウチ %d", i+1), Quantity: 2}
	}
	return items
}

func guestRequest(n int) CreateInput {
	return CreateInput{
		ContactName:     "佐藤 花子",
		ContactEmail:    "hanako@example.jp",
		ShippingAddress: "東京都千代田区丸の内1-1-1",
		Items:           itemsOf(n),
	}
}

func TestCreateItemCountBounds(t *testing.T) {
	svc, client := newService(t, nil, nil)

	for n := 1; n <= MaxItems; n++ {
		res, err := svc.Create(context.Background(), guestRequest(n))
		require.NoError(t, err)
		require.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, n, res.ItemsCreated)
		assert.Regexp(t, `^SMP-\d{8}-[A-Z2-7]{6}$`, res.RequestNumber)

		stored, err := svc.Get(context.Background(), res.SampleRequestID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, n)
	}
	assert.EqualValues(t, 5, dbtest.Count(t, client, "sample_requests"))
	assert.EqualValues(t, 15, dbtest.Count(t, client, "sample_items"))
	assert.EqualValues(t, 5, dbtest.Count(t, client, "outbox_events"))
}

func TestCreateRejectsOutOfRangeItemCounts(t *testing.T) {
	svc, client := newService(t, nil, nil)

	res, err := svc.Create(context.Background(), guestRequest(6))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "サンプルは最大5点までです", res.ErrorMessage)
	assert.Equal(t, pkgerrors.CodeValidation, res.ErrorCode)

	res, err = svc.Create(context.Background(), guestRequest(0))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "サンプルを1点以上選択してください", res.ErrorMessage)

	assert.EqualValues(t, 0, dbtest.Count(t, client, "sample_requests"))
	assert.EqualValues(t, 0, dbtest.Count(t, client, "sample_items"))
}

func TestValidate(t *testing.T) {
	customer := uuid.New()
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		want   string
	}{
		{"ok", func(*CreateInput) {}, ""},
		{"customer without contact", func(in *CreateInput) { in.CustomerID = &customer; in.ContactName = "" }, ""},
		{"guest without email", func(in *CreateInput) { in.ContactEmail = "  " }, msgContact},
		{"no address", func(in *CreateInput) { in.ShippingAddress = "" }, msgAddress},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = 0 }, msgItemQuantity},
		{"eleven", func(in *CreateInput) { in.Items[1].Quantity = 11 }, msgItemQuantity},
		{"ten is fine", func(in *CreateInput) { in.Items[1].Quantity = 10 }, ""},
		{"no product", func(in *CreateInput) { in.Items[0].ProductID = uuid.Nil }, msgProductID},
		{"no name", func(in *CreateInput) { in.Items[0].ProductName = "" }, msgProductName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := guestRequest(2)
			tc.mutate(&input)
			assert.Equal(t, tc.want, Validate(input))
		})
	}
}

func TestCreateRollsBackWhenItemInsertFails(t *testing.T) {
	svc, client := newService(t, nil, nil)
	// Items fail after the header is already written.
	require.NoError(t, client.DB().Exec("DROP TABLE sample_items").Error)

	res, err := svc.Create(context.Background(), guestRequest(2))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, msgWriteFailure, res.ErrorMessage)
	assert.EqualValues(t, 0, dbtest.Count(t, client, "sample_requests"))
	assert.EqualValues(t, 0, dbtest.Count(t, client, "outbox_events"))
}

func TestCreateRetriesNumberCollision(t *testing.T) {
	// The second request draws the first request's suffix, then a fresh one.
	entropy := append(make([]byte, 8), 0xff, 0xff, 0xff, 0xff)
	clock := func() time.Time { return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC) }
	svc, client := newService(t, nil, numbering.NewGeneratorWithSource(clock, bytes.NewReader(entropy)))

	first, err := svc.Create(context.Background(), guestRequest(1))
	require.NoError(t, err)
	require.True(t, first.Success, first.ErrorMessage)
	assert.Equal(t, "SMP-20240105-AAAAAA", first.RequestNumber)

	second, err := svc.Create(context.Background(), guestRequest(1))
	require.NoError(t, err)
	require.True(t, second.Success, second.ErrorMessage)
	assert.Equal(t, "SMP-20240105-777777", second.RequestNumber)
	assert.EqualValues(t, 2, dbtest.Count(t, client, "sample_requests"))
	assert.EqualValues(t, 2, dbtest.Count(t, client, "sample_items"))
}

func TestCreateDuplicateNumberWithoutRetryFails(t *testing.T) {
	numbers := &stubNumbers{numbers: []string{"SMP-20240105-AAAAAA"}}
	svc, client := newService(t, nil, numbers)

	first, err := svc.Create(context.Background(), guestRequest(1))
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.Create(context.Background(), guestRequest(1))
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.EqualValues(t, 1, dbtest.Count(t, client, "sample_requests"))
	assert.EqualValues(t, 1, dbtest.Count(t, client, "sample_items"))
}

func TestCreateUnreachableStorageIsFatal(t *testing.T) {
	svc, _ := newService(t, brokenTx{}, nil)
	_, err := svc.Create(context.Background(), guestRequest(1))
	assert.ErrorIs(t, err, db.ErrTxBegin)
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
