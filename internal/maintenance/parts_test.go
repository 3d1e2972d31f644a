package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNormalizeRequiredParts_Array(t *testing.T) {
	raw := partsArray(
		bson.M{"name": "Oil filter", "part_number": "OF-100", "quantity": 1, "unit": "each", "estimated_cost": 12.5},
		bson.M{"name": "Engine oil", "quantity": 4.5, "unit": "quart", "estimated_cost": 8, "is_critical": true},
		bson.M{"name": "Gasket"},
	)

	items, rejected := NormalizeRequiredParts(raw)
	assert.Empty(t, rejected)
	require.Len(t, items, 3)

	assert.Equal(t, "Oil filter", items[0].Name)
	assert.Equal(t, "OF-100", items[0].PartNumber)
	assert.True(t, decimal.RequireFromString("12.5").Equal(items[0].EstimatedCost))

	assert.Equal(t, 4.5, items[1].Quantity)
	assert.Equal(t, "quart", items[1].Unit)
	assert.True(t, items[1].IsCritical)
	assert.True(t, decimal.NewFromInt(36).Equal(items[1].LineCost()))

	assert.Equal(t, 1.0, items[2].Quantity)
	assert.Equal(t, "each", items[2].Unit)
	assert.True(t, items[2].EstimatedCost.IsZero())
}

func TestNormalizeRequiredParts_JSONString(t *testing.T) {
	raw := stringValue(`[{"name":"Impeller","quantity":1,"estimated_cost":64.99},{"name":"Zinc anode","quantity":2}]`)

	items, rejected := NormalizeRequiredParts(raw)
	assert.Empty(t, rejected)
	require.Len(t, items, 2)
	assert.Equal(t, "Impeller", items[0].Name)
	assert.Equal(t, 2.0, items[1].Quantity)
}

func TestNormalizeRequiredParts_NonArrayYieldsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  bson.RawValue
	}{
		{"absent", bson.RawValue{}},
		{"json object string", stringValue(`{"name":"Oil filter"}`)},
		{"garbage string", stringValue(`not json`)},
		{"document", func() bson.RawValue {
			raw, _ := bson.Marshal(bson.M{"v": bson.M{"name": "Oil filter"}})
			return bson.Raw(raw).Lookup("v")
		}()},
		{"number", func() bson.RawValue {
			raw, _ := bson.Marshal(bson.M{"v": 42})
			return bson.Raw(raw).Lookup("v")
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, rejected := NormalizeRequiredParts(tt.raw)
			assert.NotNil(t, items)
			assert.Empty(t, items)
			assert.Empty(t, rejected)
		})
	}
}

func TestNormalizeRequiredParts_RejectsInvalidEntries(t *testing.T) {
	raw := partsArray(
		bson.M{"name": "Spark plug", "quantity": 6, "estimated_cost": 4.25},
		bson.M{"quantity": 1},
		bson.M{"name": "Belt", "quantity": 0},
		bson.M{"name": "Hose", "estimated_cost": -3},
		bson.M{"name": "Clamp", "quantity": "two"},
	)

	items, rejected := NormalizeRequiredParts(raw)
	require.Len(t, items, 1)
	assert.Equal(t, "Spark plug", items[0].Name)
	assert.Len(t, rejected, 4)
}

func TestNormalizeRequiredParts_RejectsNonDocumentElements(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"v": bson.A{"oil filter", bson.M{"name": "Air filter"}}})
	require.NoError(t, err)

	items, rejected := NormalizeRequiredParts(bson.Raw(raw).Lookup("v"))
	require.Len(t, items, 1)
	assert.Equal(t, "Air filter", items[0].Name)
	assert.Len(t, rejected, 1)
}

func TestService_GenerateServiceItems(t *testing.T) {
	enhanced := new(MockEnhancedScheduleCollection)
	enhanced.On("FindRequiredParts", mock.Anything, "with-parts").
		Return(partsArray(bson.M{"name": "Septic filter", "quantity": 1, "estimated_cost": 30}), nil)
	enhanced.On("FindRequiredParts", mock.Anything, "missing").
		Return(bson.RawValue{}, db.ErrNotFound)
	enhanced.On("FindRequiredParts", mock.Anything, "broken").
		Return(bson.RawValue{}, errors.New("timeout"))
	enhanced.On("FindRequiredParts", mock.Anything, "malformed").
		Return(stringValue(`"just a string"`), nil)

	svc := newTestService(new(MockScheduleCollection), enhanced)
	ctx := context.Background()

	items := svc.GenerateServiceItems(ctx, "with-parts")
	require.Len(t, items, 1)
	assert.Equal(t, "Septic filter", items[0].Name)

	for _, id := range []string{"missing", "broken", "malformed"} {
		items := svc.GenerateServiceItems(ctx, id)
		assert.NotNil(t, items, id)
		assert.Empty(t, items, id)
	}
}

func TestService_GenerateServiceItems_NoEnhancedStore(t *testing.T) {
	svc := NewService(new(MockScheduleCollection), nil, WithLogger(quietLogger()))
	items := svc.GenerateServiceItems(context.Background(), "any")
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
