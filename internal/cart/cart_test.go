package cart

import (
	"testing"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plus = domain.ServiceDefinition{
	ID:    "plus",
	Title: "Plus",
	Price: decimal.NewFromInt(250),
}

var basic = domain.ServiceDefinition{
	ID:    "basic",
	Title: "Basic",
	Price: decimal.NewFromInt(120),
}

func mustItem(t *testing.T, svc domain.ServiceDefinition, addons []string, qty int) domain.CartLineItem {
	t.Helper()
	item, err := domain.NewCartLineItem(svc, domain.PlanOneTime, addons, qty)
	require.NoError(t, err)
	return item
}

func TestCart_Add(t *testing.T) {
	tests := []struct {
		name      string
		items     func(t *testing.T) []domain.CartLineItem
		wantLines int
		wantQty   []int
	}{
		{
			name: "same service and addons merge with summed quantity",
			items: func(t *testing.T) []domain.CartLineItem {
				return []domain.CartLineItem{
					mustItem(t, plus, []string{"rush-delivery"}, 1),
					mustItem(t, plus, []string{"rush-delivery"}, 2),
				}
			},
			wantLines: 1,
			wantQty:   []int{3},
		},
		{
			name: "addon order does not matter",
			items: func(t *testing.T) []domain.CartLineItem {
				return []domain.CartLineItem{
					mustItem(t, plus, []string{"rush-delivery", "color-grade"}, 1),
					mustItem(t, plus, []string{"color-grade", "rush-delivery"}, 1),
				}
			},
			wantLines: 1,
			wantQty:   []int{2},
		},
		{
			name: "different addon sets stay separate",
			items: func(t *testing.T) []domain.CartLineItem {
				return []domain.CartLineItem{
					mustItem(t, plus, nil, 1),
					mustItem(t, plus, []string{"rush-delivery"}, 1),
				}
			},
			wantLines: 2,
			wantQty:   []int{1, 1},
		},
		{
			name: "different services stay separate",
			items: func(t *testing.T) []domain.CartLineItem {
				return []domain.CartLineItem{
					mustItem(t, plus, nil, 1),
					mustItem(t, basic, nil, 4),
				}
			},
			wantLines: 2,
			wantQty:   []int{1, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cart
			for _, item := range tt.items(t) {
				c.Add(item)
			}

			require.Equal(t, tt.wantLines, c.Len())
			for i, q := range tt.wantQty {
				assert.Equal(t, q, c.Lines[i].Quantity)
			}
		})
	}
}

func TestCart_AddReturnsIndex(t *testing.T) {
	var c Cart
	assert.Equal(t, 0, c.Add(mustItem(t, plus, nil, 1)))
	assert.Equal(t, 1, c.Add(mustItem(t, basic, nil, 1)))
	assert.Equal(t, 0, c.Add(mustItem(t, plus, nil, 1)))
}

func TestCart_AddKeepsFirstPlan(t *testing.T) {
	monthly, err := domain.NewCartLineItem(plus, domain.PlanMonthly, nil, 1)
	require.NoError(t, err)
	oneTime, err := domain.NewCartLineItem(plus, domain.PlanOneTime, nil, 2)
	require.NoError(t, err)

	var c Cart
	c.Add(monthly)
	c.Add(oneTime)

	require.Equal(t, 1, c.Len())
	assert.Equal(t, domain.PlanMonthly, c.Lines[0].Plan)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestCart_UpdateQuantity(t *testing.T) {
	t.Run("replaces quantity", func(t *testing.T) {
		var c Cart
		c.Add(mustItem(t, plus, nil, 1))

		require.NoError(t, c.UpdateQuantity(0, 5))
		assert.Equal(t, 5, c.Lines[0].Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		var c Cart
		c.Add(mustItem(t, plus, nil, 1))

		require.NoError(t, c.UpdateQuantity(0, 0))
		assert.True(t, c.Empty())
	})

	t.Run("negative removes the line", func(t *testing.T) {
		var c Cart
		c.Add(mustItem(t, plus, nil, 1))
		c.Add(mustItem(t, basic, nil, 1))

		require.NoError(t, c.UpdateQuantity(0, -3))
		require.Equal(t, 1, c.Len())
		assert.Equal(t, "basic", c.Lines[0].Service.ID)
	})

	t.Run("out of range is not found", func(t *testing.T) {
		var c Cart
		c.Add(mustItem(t, plus, nil, 1))

		err := c.UpdateQuantity(3, 2)
		assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
		assert.Equal(t, 1, c.Lines[0].Quantity)
	})
}

func TestCart_Remove(t *testing.T) {
	var c Cart
	c.Add(mustItem(t, plus, nil, 1))
	c.Add(mustItem(t, basic, nil, 2))

	assert.ErrorIs(t, c.Remove(-1), domain.ErrCartItemNotFound)
	assert.ErrorIs(t, c.Remove(2), domain.ErrCartItemNotFound)

	require.NoError(t, c.Remove(0))
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "basic", c.Lines[0].Service.ID)
}

func TestCart_ClearAndCounts(t *testing.T) {
	var c Cart
	c.Add(mustItem(t, plus, nil, 2))
	c.Add(mustItem(t, basic, []string{"captions"}, 3))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 5, c.ItemCount())

	items := c.Items()
	items[0].Quantity = 99
	assert.Equal(t, 2, c.Lines[0].Quantity, "Items must return a copy")

	c.Clear()
	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.ItemCount())
}
