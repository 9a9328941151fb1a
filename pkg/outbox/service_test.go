package outbox

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mazaj-interiors/payments-backend/pkg/db/models"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_id);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	return NewService(NewRepository(db), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
}

func TestEmitIfNotExists_dedup(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	event := DomainEvent{
		EventType:   enums.OutboxEventOrderConfirmation,
		AggregateID: "ord_1",
		Data: EmailPayload{
			Trigger:   "order_confirmation",
			Recipient: "noura@example.sa",
			Variables: map[string]any{"total": "115.00"},
		},
	}

	for i := 0; i < 3; i++ {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(ctx, tx, event)
		}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one event, got %d", count)
	}

	// Different aggregate: new row.
	event.AggregateID = "ord_2"
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(ctx, tx, event)
	}); err != nil {
		t.Fatalf("emit other aggregate: %v", err)
	}
	if err := db.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two events, got %d", count)
	}
}

func TestEmit_envelopeShape(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := newTestService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:   enums.OutboxEventOrderPaymentFailed,
			AggregateID: "ord_1",
			Version:     1,
			Data: EmailPayload{
				Trigger:   "order_payment_failed",
				Recipient: "noura@example.sa",
			},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.AggregateType != enums.OutboxAggregateOrder {
		t.Fatalf("aggregate type = %q", row.AggregateType)
	}
	if row.PublishedAt != nil {
		t.Fatal("fresh event must be unpublished")
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.EventID == "" || envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope incomplete: %+v", envelope)
	}

	var payload EmailPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Trigger != "order_payment_failed" {
		t.Fatalf("trigger = %q", payload.Trigger)
	}
}

func TestFetchUnpublishedAndMark(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := newTestService(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	for _, id := range []string{"ord_1", "ord_2"} {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:   enums.OutboxEventOrderConfirmation,
				AggregateID: id,
				Data:        EmailPayload{Trigger: "order_confirmation", Recipient: id + "@example.sa"},
			})
		}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	rows, err := repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if err := repo.MarkPublished(rows[0].ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	rows, err = repo.FetchUnpublished(10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 unpublished row, got %d", len(rows))
	}

	if err := repo.MarkFailed(rows[0].ID, io.ErrUnexpectedEOF); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	var failed models.OutboxEvent
	if err := db.Where("id = ?", rows[0].ID).First(&failed).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if failed.AttemptCount != 1 || failed.LastError == nil {
		t.Fatalf("failure not recorded: %+v", failed)
	}
}
