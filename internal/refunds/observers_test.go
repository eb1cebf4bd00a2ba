package refunds

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/metrics"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
)

func TestOutboxObserverQueuesEventsInSaveTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWith(t, 4320, false, NewOutboxObserver(outbox.NewService(outbox.NewRepository(), nil)))

	saved, err := h.svc.Create(ctx, h.createRequest(2, true, 1920, true))
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, h.db.Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 3)

	kinds := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		kinds = append(kinds, row.EventType)
		assert.Equal(t, enums.AggregateRefund, row.AggregateType)
		assert.Equal(t, saved.Refund.UID, row.AggregateID)
	}
	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventRefundSaved,
		enums.EventRefundItemRestocked,
		enums.EventRefundTransactionCreated,
	}, kinds)

	for _, row := range rows {
		if row.EventType != enums.EventRefundSaved {
			continue
		}
		var envelope outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		require.NotNil(t, envelope.Actor)
		assert.Equal(t, "user-1", envelope.Actor.ActorID)

		var data map[string]any
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
		assert.Equal(t, saved.Refund.Reference, data["reference"])
		assert.EqualValues(t, 1920, data["total"])
		assert.Equal(t, true, data["is_new"])
	}
}

func TestOutboxObserverRollsBackWithFailedSave(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWith(t, 4320, false, NewOutboxObserver(outbox.NewService(outbox.NewRepository(), nil)))
	h.gateway.status = enums.TransactionStatusFailed

	_, err := h.svc.Create(ctx, h.createRequest(1, false, 720, true))
	require.Error(t, err)
	assert.Zero(t, h.count(t, &models.OutboxEvent{}))
}

func TestMetricsObserverCountsCommittedRefunds(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h := newHarnessWith(t, 4320, false, NewMetricsObserver(metrics.NewRefundMetrics(reg)))

	_, err := h.svc.Create(ctx, h.createRequest(2, true, 1920, true))
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["refund_saves_total"])
	assert.Equal(t, float64(1920), values["refund_amount_minor_total"])
	assert.Equal(t, float64(2), values["refund_restocked_units_total"])
}
