package gtm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceforge/internal/changeset"
	"priceforge/internal/validity"
	"priceforge/pkg/catalog"
)

func testItem() Item {
	return Item{
		ProductID:   uuid.New(),
		ProductName: "Premium Subscription",
		Changes: []changeset.ChangeRecord{{
			Currency: "USD",
			New:      decimal.RequireFromString("11.00"),
			Window:   validity.Window{Start: time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)},
		}},
		Context: ChangeContext{
			Channel: catalog.ChannelOnline,
			Cycle:   catalog.CycleAnnual,
			Action:  "update",
		},
	}
}

func TestSelectionValidateExactlyOne(t *testing.T) {
	id := uuid.New()

	assert.Error(t, Selection{}.Validate())
	assert.Error(t, Selection{ExistingID: &id, New: &NewMotion{Name: "x"}}.Validate())
	assert.Error(t, Selection{New: &NewMotion{}}.Validate(), "new motion needs a name")
	assert.NoError(t, Selection{ExistingID: &id}.Validate())
	assert.NoError(t, Selection{New: &NewMotion{Name: "Q2 repricing"}}.Validate())
}

func TestBinderCreatesMotion(t *testing.T) {
	repo := NewMemoryRepository()
	b := NewBinder(repo, nil)
	activation := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	motion, err := b.Commit(context.Background(), testItem(), Selection{
		New: &NewMotion{Name: "Q2 repricing", Description: "annual refresh", ActivationDate: activation},
	})
	require.NoError(t, err)
	require.NotNil(t, motion)
	assert.Equal(t, "Q2 repricing", motion.Name)
	assert.Equal(t, activation, motion.ActivationDate)
	require.Len(t, motion.Items, 1)
	assert.Equal(t, "Premium Subscription", motion.Items[0].ProductName)
}

func TestBinderAppendsToExistingMotion(t *testing.T) {
	repo := NewMemoryRepository()
	b := NewBinder(repo, nil)

	motion, err := b.Commit(context.Background(), testItem(), Selection{
		New: &NewMotion{Name: "Q2 repricing"},
	})
	require.NoError(t, err)

	appended, err := b.Commit(context.Background(), testItem(), Selection{ExistingID: &motion.ID})
	require.NoError(t, err)
	require.NotNil(t, appended, "append returns the updated motion")
	assert.Equal(t, motion.ID, appended.ID)
	assert.Len(t, appended.Items, 2)

	motions, err := repo.Motions(context.Background())
	require.NoError(t, err)
	require.Len(t, motions, 1)
	assert.Len(t, motions[0].Items, 2)
}

func TestBinderRefusesEmptyChangeSet(t *testing.T) {
	b := NewBinder(NewMemoryRepository(), nil)
	item := testItem()
	item.Changes = nil

	_, err := b.Commit(context.Background(), item, Selection{New: &NewMotion{Name: "x"}})
	assert.Error(t, err)
}

func TestBinderAppendToUnknownMotionFails(t *testing.T) {
	b := NewBinder(NewMemoryRepository(), nil)
	missing := uuid.New()

	_, err := b.Commit(context.Background(), testItem(), Selection{ExistingID: &missing})
	assert.Error(t, err)
}

type brokenRepo struct{ MemoryRepository }

func (r *brokenRepo) CreateMotion(context.Context, string, string, time.Time, Item) (*Motion, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestBinderWrapsRepositoryError(t *testing.T) {
	b := NewBinder(&brokenRepo{}, nil)

	_, err := b.Commit(context.Background(), testItem(), Selection{New: &NewMotion{Name: "Q2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Q2")
	assert.Contains(t, err.Error(), "connection reset")
}
