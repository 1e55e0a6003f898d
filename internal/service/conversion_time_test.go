package service

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/finlink-next/internal/constants"
)

func TestRecordConversionStampsServerTime(t *testing.T) {
	env := setupTrackingServiceTest(t)
	partner := createTrackingTestPartner(t, env, "ServerTime", constants.CommissionTypeFixed, 500)
	product := createTrackingTestProduct(t, env, partner.ID, "https://broker.example.com/open")
	now := time.Now().UTC().Truncate(time.Second)
	env.attribution.nowFn = func() time.Time { return now }

	click := createTrackingTestClick(t, env, "trk-server-time", partner.ID, product.ID, now.Add(-10*time.Second), nil)
	converted, err := env.attribution.RecordConversion(context.Background(), RecordConversionInput{
		TrackingID:     click.TrackingID,
		ConversionType: constants.ConversionTypeLoanDisbursed,
	})
	if err != nil {
		t.Fatalf("record conversion failed: %v", err)
	}
	if converted.ConversionDate == nil || !converted.ConversionDate.Equal(now) {
		t.Fatalf("conversion date want %s got %v", now, converted.ConversionDate)
	}

	report, err := env.fraud.DetectFraud(click.TrackingID)
	if err != nil {
		t.Fatalf("detect fraud failed: %v", err)
	}
	found := false
	for _, reason := range report.Reasons {
		if reason == FraudReasonFastConversion {
			found = true
		}
	}
	if !found {
		t.Fatalf("ten second conversion must be flagged, got %+v", report.Reasons)
	}
}

func TestUpdateFunnelStageTimestampBounds(t *testing.T) {
	env := setupTrackingServiceTest(t)
	partner := createTrackingTestPartner(t, env, "StageTime", constants.CommissionTypeFixed, 1000)
	product := createTrackingTestProduct(t, env, partner.ID, "https://broker.example.com/open")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	env.attribution.nowFn = func() time.Time { return now }
	env.clicks.nowFn = func() time.Time { return now }

	click := createTrackingTestClick(t, env, "trk-stage-time", partner.ID, product.ID, now.Add(-2*time.Hour), nil)

	future := now.Add(time.Hour)
	if _, err := env.clicks.UpdateFunnelStage(ctx, click.TrackingID, FunnelStageInput{Stage: constants.FunnelStageRedirected, Timestamp: &future}); !errors.Is(err, ErrInvalidConversionDate) {
		t.Fatalf("future stage timestamp must fail with ErrInvalidConversionDate, got %v", err)
	}
	beforeClick := click.ClickedAt.Add(-time.Minute)
	if _, err := env.clicks.UpdateFunnelStage(ctx, click.TrackingID, FunnelStageInput{Stage: constants.FunnelStageRedirected, Timestamp: &beforeClick}); !errors.Is(err, ErrInvalidConversionDate) {
		t.Fatalf("stage before click must fail with ErrInvalidConversionDate, got %v", err)
	}

	earlier := now.Add(-time.Hour)
	approved, err := env.clicks.UpdateFunnelStage(ctx, click.TrackingID, FunnelStageInput{Stage: constants.FunnelStageApproved, Timestamp: &earlier})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.ConversionDate == nil || !approved.ConversionDate.Equal(now) {
		t.Fatalf("approved conversion must be stamped with server time, got %v", approved.ConversionDate)
	}
}

func TestAnalyticsTodayFollowsReportTimezone(t *testing.T) {
	env := setupTrackingServiceTest(t)
	partner := createTrackingTestPartner(t, env, "Kolkata", constants.CommissionTypeFixed, 500)
	product := createTrackingTestProduct(t, env, partner.ID, "https://broker.example.com/open")
	ctx := context.Background()

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location failed: %v", err)
	}
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, kolkata)
	env.analytics.nowFn = func() time.Time { return now }

	createTrackingTestClick(t, env, "trk-ist-today", partner.ID, product.ID, time.Date(2026, 10, 15, 2, 0, 0, 0, kolkata), nil)
	createTrackingTestClick(t, env, "trk-ist-yesterday", partner.ID, product.ID, time.Date(2026, 10, 14, 23, 30, 0, 0, kolkata), nil)

	input := AnalyticsQueryInput{Range: "today", Timezone: "Asia/Kolkata"}
	summary, err := env.analytics.GetSummary(ctx, input)
	if err != nil {
		t.Fatalf("get summary failed: %v", err)
	}
	if summary.TotalClicks != 1 {
		t.Fatalf("today in Asia/Kolkata want 1 click got %d", summary.TotalClicks)
	}

	performance, err := env.analytics.GetPerformance(ctx, input)
	if err != nil {
		t.Fatalf("get performance failed: %v", err)
	}
	if len(performance.Daily) != 1 || performance.Daily[0].Date != "2026-10-15" || performance.Daily[0].Clicks != 1 {
		t.Fatalf("unexpected daily trend: %+v", performance.Daily)
	}
}
