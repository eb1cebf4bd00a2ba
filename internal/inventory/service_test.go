package inventory

import (
	"context"
	"testing"

	"github.com/angelmondragon/order-refunds/pkg/db/dbtest"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }

func TestIncrementStockIsAdditive(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.Create(t, db, &models.InventoryItem{PurchasableID: 10, Stock: 3})

	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := svc.IncrementStock(ctx, 10, 2); err != nil {
			t.Fatalf("IncrementStock: %v", err)
		}
	}

	var item models.InventoryItem
	if err := db.First(&item, "purchasable_id = ?", 10).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if item.Stock != 11 {
		t.Fatalf("expected stock 11, got %d", item.Stock)
	}
}

func TestIncrementStockFailsForUnknownOrUnlimited(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.Create(t, db, &models.InventoryItem{PurchasableID: 20, HasUnlimitedStock: true})
	svc, _ := NewService(NewRepository(db))

	for _, id := range []int64{20, 99} {
		err := svc.IncrementStock(context.Background(), id, 1)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeRestockFailed {
			t.Fatalf("purchasable %d: expected restock failure, got %v", id, err)
		}
	}

	if err := svc.IncrementStock(context.Background(), 99, 0); err != nil {
		t.Fatalf("zero quantity should be a no-op, got %v", err)
	}
}

func TestCanRestock(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.Create(t, db,
		&models.InventoryItem{PurchasableID: 1, Stock: 5},
		&models.InventoryItem{PurchasableID: 2, HasUnlimitedStock: true},
	)
	svc, _ := NewService(NewRepository(db))
	ctx := context.Background()

	cases := []struct {
		name string
		id   *int64
		want bool
	}{
		{name: "tracked", id: int64Ptr(1), want: true},
		{name: "unlimited", id: int64Ptr(2), want: false},
		{name: "untracked", id: int64Ptr(3), want: false},
		{name: "no purchasable", id: nil, want: false},
	}
	for _, tc := range cases {
		got, err := svc.CanRestock(ctx, tc.id)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}
