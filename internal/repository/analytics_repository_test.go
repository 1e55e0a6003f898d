package repository

import (
	"testing"
	"time"

	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/models"

	"github.com/shopspring/decimal"
)

func TestAnalyticsTotalsAndBreakdown(t *testing.T) {
	clickRepo, db := setupClickRepositoryTest(t)
	repo := NewAnalyticsRepository(db)
	zerodha := createClickTestPartner(t, db, "Zerodha")
	hdfc := createClickTestPartner(t, db, "HDFC")
	demat := createClickTestProduct(t, db, zerodha.ID, "Demat")
	loan := createClickTestProduct(t, db, hdfc.ID, "Loan")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	createClickTestClick(t, db, "a-1", zerodha.ID, demat.ID, base)
	createClickTestClick(t, db, "a-2", zerodha.ID, demat.ID, base.Add(time.Hour))
	createClickTestClick(t, db, "a-3", hdfc.ID, loan.ID, base.AddDate(0, 0, 1))
	createClickTestClick(t, db, "a-out", hdfc.ID, loan.ID, base.AddDate(0, 1, 0))

	for _, id := range []string{"a-1", "a-3"} {
		ok, err := clickRepo.MarkConverted(id, ClickConversionUpdate{
			ConversionDate:   base.AddDate(0, 0, 2),
			CommissionAmount: models.NewMoneyFromInt(500),
			ConversionType:   constants.ConversionTypeLoanDisbursed,
		})
		if err != nil || !ok {
			t.Fatalf("mark converted %s failed: ok=%v err=%v", id, ok, err)
		}
	}

	filter := AnalyticsFilter{StartAt: base.AddDate(0, 0, -1), EndAt: base.AddDate(0, 0, 7)}
	totals, err := repo.GetTotals(filter)
	if err != nil {
		t.Fatalf("get totals failed: %v", err)
	}
	if totals.ClickCount != 3 || totals.ConversionCount != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if !totals.CommissionTotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("commission total want 1000 got %s", totals.CommissionTotal.String())
	}

	breakdown, err := repo.GetPartnerBreakdown(filter)
	if err != nil {
		t.Fatalf("get partner breakdown failed: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("breakdown want 2 rows got %d", len(breakdown))
	}
	if breakdown[0].PartnerName != "Zerodha" || breakdown[0].ClickCount != 2 || breakdown[0].ConversionCount != 1 {
		t.Fatalf("unexpected first partner row: %+v", breakdown[0])
	}

	filter.PartnerID = hdfc.ID
	totals, err = repo.GetTotals(filter)
	if err != nil {
		t.Fatalf("get partner totals failed: %v", err)
	}
	if totals.ClickCount != 1 || totals.ConversionCount != 1 {
		t.Fatalf("unexpected partner totals: %+v", totals)
	}
}

func TestAnalyticsTrendFunnelAndCommissions(t *testing.T) {
	clickRepo, db := setupClickRepositoryTest(t)
	repo := NewAnalyticsRepository(db)
	partner := createClickTestPartner(t, db, "Axis")
	card := createClickTestProduct(t, db, partner.ID, "Card")
	loan := createClickTestProduct(t, db, partner.ID, "Loan")

	base := time.Date(2026, 1, 30, 8, 0, 0, 0, time.UTC)
	createClickTestClick(t, db, "f-1", partner.ID, card.ID, base)
	createClickTestClick(t, db, "f-2", partner.ID, card.ID, base.Add(2*time.Hour))
	createClickTestClick(t, db, "f-3", partner.ID, loan.ID, base.AddDate(0, 0, 1))

	if _, err := clickRepo.MarkFunnelStage("f-1", FunnelStageColumns{Flag: "application_redirected", At: "application_redirected_at"}, base); err != nil {
		t.Fatalf("mark redirected failed: %v", err)
	}
	if _, err := clickRepo.MarkConverted("f-1", ClickConversionUpdate{
		ConversionDate:   base.AddDate(0, 0, 1),
		CommissionAmount: models.NewMoneyFromInt(300),
		MarkApproved:     true,
	}); err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if _, err := clickRepo.MarkConverted("f-3", ClickConversionUpdate{
		ConversionDate:   base.AddDate(0, 0, 4),
		CommissionAmount: models.NewMoneyFromInt(200),
	}); err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if _, err := clickRepo.MarkRejected("f-2", base, models.ConversionMetadata{}); err != nil {
		t.Fatalf("mark rejected failed: %v", err)
	}

	filter := AnalyticsFilter{StartAt: base.AddDate(0, 0, -1), EndAt: base.AddDate(0, 0, 10)}
	trend, err := repo.GetDailyTrend(filter)
	if err != nil {
		t.Fatalf("get daily trend failed: %v", err)
	}
	if len(trend) != 2 || trend[0].Day != "2026-01-30" || trend[0].ClickCount != 2 || trend[0].ConversionCount != 1 {
		t.Fatalf("unexpected trend: %+v", trend)
	}

	funnel, err := repo.GetFunnelCounts(filter)
	if err != nil {
		t.Fatalf("get funnel failed: %v", err)
	}
	if funnel.Clicked != 3 || funnel.Redirected != 1 || funnel.Approved != 1 || funnel.Rejected != 1 || funnel.Converted != 2 {
		t.Fatalf("unexpected funnel: %+v", funnel)
	}

	timings, err := repo.ListConversionTimings(filter)
	if err != nil {
		t.Fatalf("list timings failed: %v", err)
	}
	if len(timings) != 2 {
		t.Fatalf("timings want 2 got %d", len(timings))
	}

	monthly, err := repo.GetMonthlyCommissions(filter)
	if err != nil {
		t.Fatalf("get monthly commissions failed: %v", err)
	}
	if len(monthly) != 2 || monthly[0].Month != "2026-01" || monthly[1].Month != "2026-02" {
		t.Fatalf("unexpected monthly rows: %+v", monthly)
	}
	if !monthly[0].CommissionTotal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("january commission want 300 got %s", monthly[0].CommissionTotal.String())
	}

	products, err := repo.GetTopProducts(filter, 5)
	if err != nil {
		t.Fatalf("get top products failed: %v", err)
	}
	if len(products) != 2 || products[0].ProductName != "Card" || products[0].ClickCount != 2 {
		t.Fatalf("unexpected top products: %+v", products)
	}

	byProduct, err := repo.GetProductCommissions(filter)
	if err != nil {
		t.Fatalf("get product commissions failed: %v", err)
	}
	if len(byProduct) != 2 || !byProduct[0].CommissionTotal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected product commissions: %+v", byProduct)
	}

	agents, err := repo.GetUserAgentCounts(filter)
	if err != nil {
		t.Fatalf("get user agents failed: %v", err)
	}
	if len(agents) != 1 || agents[0].ClickCount != 3 {
		t.Fatalf("unexpected user agents: %+v", agents)
	}
}

func TestAnalyticsBoundsAndBucketsFollowReportZone(t *testing.T) {
	clickRepo, db := setupClickRepositoryTest(t)
	repo := NewAnalyticsRepository(db)
	partner := createClickTestPartner(t, db, "ICICI")
	card := createClickTestProduct(t, db, partner.ID, "Card")

	ist := time.FixedZone("IST", 19800)
	createClickTestClick(t, db, "tz-today", partner.ID, card.ID, time.Date(2026, 10, 15, 2, 0, 0, 0, ist))
	createClickTestClick(t, db, "tz-yesterday", partner.ID, card.ID, time.Date(2026, 10, 14, 23, 0, 0, 0, ist))

	// 转化时间带负偏移，仍需与 UTC 存储的点击时间正确比较
	newYork := time.FixedZone("EDT", -4*3600)
	ok, err := clickRepo.MarkConverted("tz-today", ClickConversionUpdate{
		ConversionDate:   time.Date(2026, 10, 14, 16, 35, 0, 0, newYork),
		CommissionAmount: models.NewMoneyFromInt(100),
	})
	if err != nil || !ok {
		t.Fatalf("conversion five minutes after click should apply: ok=%v err=%v", ok, err)
	}

	dayStart := time.Date(2026, 10, 15, 0, 0, 0, 0, ist)
	today := AnalyticsFilter{StartAt: dayStart, EndAt: dayStart.AddDate(0, 0, 1), UTCOffsetSeconds: 19800}
	totals, err := repo.GetTotals(today)
	if err != nil {
		t.Fatalf("get totals failed: %v", err)
	}
	if totals.ClickCount != 1 || totals.ConversionCount != 1 {
		t.Fatalf("today in IST should hold one converted click, got %+v", totals)
	}

	twoDays := AnalyticsFilter{StartAt: dayStart.AddDate(0, 0, -1), EndAt: dayStart.AddDate(0, 0, 1), UTCOffsetSeconds: 19800}
	trend, err := repo.GetDailyTrend(twoDays)
	if err != nil {
		t.Fatalf("get daily trend failed: %v", err)
	}
	if len(trend) != 2 || trend[0].Day != "2026-10-14" || trend[1].Day != "2026-10-15" {
		t.Fatalf("days should be bucketed in IST, got %+v", trend)
	}
	if trend[0].ClickCount != 1 || trend[1].ClickCount != 1 {
		t.Fatalf("one click per IST day expected, got %+v", trend)
	}

	monthly, err := repo.GetMonthlyCommissions(twoDays)
	if err != nil {
		t.Fatalf("get monthly commissions failed: %v", err)
	}
	if len(monthly) != 1 || monthly[0].Month != "2026-10" {
		t.Fatalf("unexpected monthly rows: %+v", monthly)
	}
}
