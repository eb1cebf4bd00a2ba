package refunds

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/order-refunds/internal/orders"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
	"github.com/angelmondragon/order-refunds/pkg/logger"
)

// BackfillResult summarizes a backfill run.
type BackfillResult struct {
	Scanned int
	Created int
	Failed  int
}

// Backfiller gives refund transactions recorded before refunds existed a
// refund record and reference. Records are written as-is, without
// validation, restocking or gateway calls.
type Backfiller struct {
	repo       Repository
	orders     orders.Service
	references referenceGenerator
	logg       *logger.Logger
}

// NewBackfiller builds a backfiller.
func NewBackfiller(repo Repository, ordersSvc orders.Service, references referenceGenerator, logg *logger.Logger) (*Backfiller, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if references == nil {
		return nil, fmt.Errorf("reference generator required")
	}
	return &Backfiller{repo: repo, orders: ordersSvc, references: references, logg: logg}, nil
}

// Run creates records for up to limit transactions (all when limit <= 0),
// oldest first so sequence numbers follow transaction dates. A failing
// transaction is skipped; every failure is returned combined.
func (b *Backfiller) Run(ctx context.Context, limit int) (BackfillResult, error) {
	var result BackfillResult
	txns, err := b.repo.ListRefundTransactionsWithoutRecord(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list refund transactions: %w", err)
	}

	var errs error
	for i := range txns {
		txn := txns[i]
		result.Scanned++

		ref := &Refund{
			UID:                 uuid.New(),
			TransactionID:       txn.ID,
			OrderID:             txn.OrderID,
			ParentTransactionID: txn.ParentIDValue(),
			LineItemsData:       dbtypes.LineItemSelections{},
			RestockedQuantities: dbtypes.Quantities{},
			Note:                txn.Note,
			DateCreated:         txn.CreatedAt,
			Transaction:         &txn,
		}
		if err := b.create(ctx, ref); err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("transaction %d: %w", txn.ID, err))
			if b.logg != nil {
				logCtx := b.logg.WithTransactionID(b.logg.WithOrderID(ctx, txn.OrderID), txn.ID)
				b.logg.Error(logCtx, "refund backfill failed", err)
			}
			continue
		}
		result.Created++
	}
	return result, errs
}

func (b *Backfiller) create(ctx context.Context, ref *Refund) error {
	order, err := b.orders.GetOrder(ctx, ref.OrderID)
	if err != nil {
		return err
	}
	ref.Order = order

	comp, err := ref.Compute()
	if err != nil {
		return err
	}
	reference, err := b.references.Generate(ctx, ref, comp)
	if err != nil {
		return err
	}
	ref.Reference = reference
	return b.repo.Create(ctx, ref.record())
}
