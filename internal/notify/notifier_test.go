package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/queue"

	"gorm.io/datatypes"
)

type fakeEnqueuer struct {
	clicks      []queue.PartnerClickPayload
	conversions []queue.PartnerConversionPayload
	err         error
}

func (f *fakeEnqueuer) EnqueuePartnerClick(payload queue.PartnerClickPayload) error {
	if f.err != nil {
		return f.err
	}
	f.clicks = append(f.clicks, payload)
	return nil
}

func (f *fakeEnqueuer) EnqueuePartnerConversion(payload queue.PartnerConversionPayload) error {
	if f.err != nil {
		return f.err
	}
	f.conversions = append(f.conversions, payload)
	return nil
}

func TestQueueNotifierEnqueuesClickAndConversion(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	notifier := NewQueueNotifier(enqueuer)
	clickedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	convertedAt := clickedAt.Add(48 * time.Hour)
	amount := models.NewMoneyFromInt(500)
	click := &models.Click{
		TrackingID: "trk-notify",
		PartnerID:  7,
		ProductID:  9,
		ClickedAt:  clickedAt,
		UTMSource:  "newsletter",
	}

	notifier.NotifyClick(context.Background(), click)
	notifier.NotifyConversion(context.Background(), click)
	if len(enqueuer.clicks) != 1 || len(enqueuer.conversions) != 0 {
		t.Fatalf("pending click must only enqueue click notification: %+v", enqueuer)
	}
	if got := enqueuer.clicks[0]; got.PartnerID != 7 || got.ProductID != 9 || got.UTMSource != "newsletter" {
		t.Fatalf("unexpected click payload: %+v", got)
	}

	click.Converted = true
	click.ConversionDate = &convertedAt
	click.CommissionAmount = &amount
	click.ConversionType = "loan_disbursed"
	click.ConversionData = datatypes.NewJSONType(models.ConversionMetadata{ApplicationID: "APP-1", Currency: "INR"})
	notifier.NotifyConversion(context.Background(), click)
	if len(enqueuer.conversions) != 1 {
		t.Fatalf("conversion notification not enqueued")
	}
	payload := enqueuer.conversions[0]
	if payload.CommissionAmount != "500.00" || !payload.ConversionDate.Equal(convertedAt) {
		t.Fatalf("unexpected conversion payload: %+v", payload)
	}
	var meta models.ConversionMetadata
	if err := json.Unmarshal(payload.Metadata, &meta); err != nil {
		t.Fatalf("decode metadata failed: %v", err)
	}
	if meta.ApplicationID != "APP-1" {
		t.Fatalf("metadata not forwarded: %+v", meta)
	}
}

func TestQueueNotifierSwallowsEnqueueFailure(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	notifier := NewQueueNotifier(enqueuer)
	notifier.NotifyClick(context.Background(), &models.Click{TrackingID: "trk-fail"})

	var nilNotifier *QueueNotifier
	nilNotifier.NotifyClick(context.Background(), &models.Click{TrackingID: "trk-nil"})
	NopNotifier{}.NotifyConversion(context.Background(), nil)
}
