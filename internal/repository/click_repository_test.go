package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupClickRepositoryTest(t *testing.T) (*GormClickRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:click_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate tracking models failed: %v", err)
	}
	return NewClickRepository(db), db
}

func createClickTestPartner(t *testing.T, db *gorm.DB, name string) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		Name:                  name,
		Type:                  constants.PartnerTypeBroker,
		IsActive:              true,
		CommissionType:        constants.CommissionTypeFixed,
		CommissionAmount:      models.NewMoneyFromInt(500),
		Currency:              "INR",
		AttributionWindowDays: 30,
	}
	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("create partner failed: %v", err)
	}
	return partner
}

func createClickTestProduct(t *testing.T, db *gorm.DB, partnerID uint, name string) *models.Product {
	t.Helper()
	product := &models.Product{
		PartnerID:      partnerID,
		Name:           name,
		Type:           "demat_account",
		IsActive:       true,
		ApplicationURL: "https://partner.example.com/apply",
	}
	if err := db.Omit("Partner").Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func createClickTestClick(t *testing.T, db *gorm.DB, trackingID string, partnerID, productID uint, clickedAt time.Time) *models.Click {
	t.Helper()
	click := &models.Click{
		TrackingID: trackingID,
		PartnerID:  partnerID,
		ProductID:  productID,
		ClickedAt:  clickedAt,
		IPAddress:  "10.0.0.1",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		Referrer:   "https://blog.example.com/compare",
	}
	if err := db.Create(click).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}
	return click
}

func TestClickCreateRejectsCommissionWithoutConversion(t *testing.T) {
	_, db := setupClickRepositoryTest(t)
	amount := models.NewMoneyFromInt(100)
	click := &models.Click{
		TrackingID:       "bad-click",
		PartnerID:        1,
		ProductID:        1,
		ClickedAt:        time.Now(),
		CommissionAmount: &amount,
	}
	if err := db.Create(click).Error; err == nil {
		t.Fatalf("expected invariant error")
	}
}

func TestMarkConvertedOnlyOnce(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "Zerodha")
	product := createClickTestProduct(t, db, partner.ID, "Demat")
	clickedAt := time.Now().Add(-time.Hour)
	createClickTestClick(t, db, "trk-once", partner.ID, product.ID, clickedAt)

	update := ClickConversionUpdate{
		ConversionDate:   time.Now(),
		CommissionAmount: models.NewMoneyFromInt(500),
		ConversionType:   constants.ConversionTypeLoanDisbursed,
		Metadata:         models.ConversionMetadata{ApplicationID: "APP-1"},
	}
	ok, err := repo.MarkConverted("trk-once", update)
	if err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first conversion to succeed")
	}
	ok, err = repo.MarkConverted("trk-once", update)
	if err != nil {
		t.Fatalf("second mark converted failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second conversion to be rejected")
	}

	stored, err := repo.GetByTrackingID("trk-once")
	if err != nil || stored == nil {
		t.Fatalf("get click failed: %v", err)
	}
	if !stored.Converted || stored.ConversionDate == nil || stored.CommissionAmount == nil {
		t.Fatalf("conversion fields not set: %+v", stored)
	}
	if !stored.CommissionAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("commission want 500 got %s", stored.CommissionAmount.String())
	}
	if stored.Metadata().ApplicationID != "APP-1" {
		t.Fatalf("metadata not stored: %+v", stored.Metadata())
	}
	if err := stored.CheckConversionInvariant(); err != nil {
		t.Fatalf("stored click violates invariant: %v", err)
	}
}

func TestMarkConvertedConcurrentSingleWinner(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "Groww")
	product := createClickTestProduct(t, db, partner.ID, "Demat")
	createClickTestClick(t, db, "trk-race", partner.ID, product.ID, time.Now().Add(-time.Minute))

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkConverted("trk-race", ClickConversionUpdate{
				ConversionDate:   time.Now(),
				CommissionAmount: models.NewMoneyFromInt(500),
				ConversionType:   constants.ConversionTypeLoanDisbursed,
			})
			if err != nil {
				errs <- err
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent mark converted failed: %v", err)
	}
	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMarkConvertedRejectsConversionBeforeClick(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "Upstox")
	product := createClickTestProduct(t, db, partner.ID, "Demat")
	clickedAt := time.Now()
	createClickTestClick(t, db, "trk-early", partner.ID, product.ID, clickedAt)

	ok, err := repo.MarkConverted("trk-early", ClickConversionUpdate{
		ConversionDate:   clickedAt.Add(-time.Hour),
		CommissionAmount: models.NewMoneyFromInt(10),
	})
	if err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if ok {
		t.Fatalf("expected conversion before click to be rejected")
	}
}

func TestConditionalUpdatesValidateWrittenValues(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "Kotak")
	product := createClickTestProduct(t, db, partner.ID, "Card")
	createClickTestClick(t, db, "trk-guard", partner.ID, product.ID, time.Now().Add(-time.Hour))

	cases := []struct {
		name string
		run  func() (bool, error)
	}{
		{name: "conversion without date", run: func() (bool, error) {
			return repo.MarkConverted("trk-guard", ClickConversionUpdate{CommissionAmount: models.NewMoneyFromInt(10)})
		}},
		{name: "negative commission", run: func() (bool, error) {
			return repo.MarkConverted("trk-guard", ClickConversionUpdate{ConversionDate: time.Now(), CommissionAmount: models.NewMoneyFromInt(-1)})
		}},
		{name: "first transaction without date", run: func() (bool, error) {
			return repo.MarkFirstTransaction("trk-guard", time.Time{}, models.NewMoneyFromInt(1), models.ConversionMetadata{})
		}},
		{name: "negative bonus", run: func() (bool, error) {
			return repo.MarkFirstTransaction("trk-guard", time.Now(), models.NewMoneyFromInt(-1), models.ConversionMetadata{})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := tc.run()
			if ok || !errors.Is(err, models.ErrClickInvariant) {
				t.Fatalf("expected ErrClickInvariant, got ok=%v err=%v", ok, err)
			}
		})
	}

	click, err := repo.GetByTrackingID("trk-guard")
	if err != nil || click == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if click.Converted || click.CommissionAmount != nil || click.ConversionDate != nil {
		t.Fatalf("rejected updates must leave the click untouched: %+v", click)
	}
}

func TestMarkRejectedBlocksConversion(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "HDFC")
	product := createClickTestProduct(t, db, partner.ID, "Personal Loan")
	createClickTestClick(t, db, "trk-reject", partner.ID, product.ID, time.Now().Add(-time.Hour))

	ok, err := repo.MarkRejected("trk-reject", time.Now(), models.ConversionMetadata{RejectionReason: "low score"})
	if err != nil || !ok {
		t.Fatalf("mark rejected failed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkConverted("trk-reject", ClickConversionUpdate{
		ConversionDate:   time.Now(),
		CommissionAmount: models.NewMoneyFromInt(10),
	})
	if err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if ok {
		t.Fatalf("rejected click must not convert")
	}
	stored, _ := repo.GetByTrackingID("trk-reject")
	if stored == nil || !stored.ApplicationRejected || stored.RejectionReason != "low score" {
		t.Fatalf("rejection not stored: %+v", stored)
	}
}

func TestMarkFirstTransactionAddsBonusOnce(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "ICICI")
	product := createClickTestProduct(t, db, partner.ID, "Credit Card")
	createClickTestClick(t, db, "trk-first", partner.ID, product.ID, time.Now().Add(-time.Hour))

	bonus := models.NewMoneyFromInt(50)
	ok, err := repo.MarkFirstTransaction("trk-first", time.Now(), bonus, models.ConversionMetadata{})
	if err != nil {
		t.Fatalf("mark first transaction failed: %v", err)
	}
	if ok {
		t.Fatalf("first transaction must require conversion")
	}

	if _, err := repo.MarkConverted("trk-first", ClickConversionUpdate{
		ConversionDate:   time.Now(),
		CommissionAmount: models.NewMoneyFromInt(500),
	}); err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.MarkFirstTransaction("trk-first", time.Now(), bonus, models.ConversionMetadata{}); err != nil {
			t.Fatalf("mark first transaction failed: %v", err)
		}
	}
	stored, _ := repo.GetByTrackingID("trk-first")
	if stored == nil || !stored.FirstTransaction {
		t.Fatalf("first transaction not stored: %+v", stored)
	}
	if !stored.CommissionAmount.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("commission want 550 got %s", stored.CommissionAmount.String())
	}
}

func TestMarkFunnelStageKeepsFirstTimestamp(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "SBI")
	product := createClickTestProduct(t, db, partner.ID, "Home Loan")
	createClickTestClick(t, db, "trk-stage", partner.ID, product.ID, time.Now().Add(-time.Hour))

	stage := FunnelStageColumns{Flag: "documents_submitted", At: "documents_submitted_at"}
	first := time.Now().Add(-10 * time.Minute).UTC().Truncate(time.Second)
	ok, err := repo.MarkFunnelStage("trk-stage", stage, first)
	if err != nil || !ok {
		t.Fatalf("mark stage failed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.MarkFunnelStage("trk-stage", stage, time.Now())
	if err != nil {
		t.Fatalf("mark stage again failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second stage mark to be a no-op")
	}
	stored, _ := repo.GetByTrackingID("trk-stage")
	if stored == nil || stored.DocumentsSubmittedAt == nil || !stored.DocumentsSubmittedAt.Equal(first) {
		t.Fatalf("stage timestamp overwritten: %+v", stored)
	}
}

func TestCountByIPSince(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		createClickTestClick(t, db, fmt.Sprintf("trk-ip-%d", i), 1, 1, now.Add(-time.Duration(i)*time.Hour))
	}
	createClickTestClick(t, db, "trk-ip-old", 1, 1, now.Add(-48*time.Hour))

	total, err := repo.CountByIPSince("10.0.0.1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count by ip failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("count want 3 got %d", total)
	}
}

func TestDeleteClickedBeforeBatches(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		createClickTestClick(t, db, fmt.Sprintf("trk-old-%d", i), 1, 1, now.AddDate(-3, 0, 0))
	}
	createClickTestClick(t, db, "trk-fresh", 1, 1, now)

	cutoff := now.AddDate(-2, 0, 0)
	deleted, err := repo.DeleteClickedBefore(cutoff, 3)
	if err != nil {
		t.Fatalf("delete batch failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("first batch want 3 got %d", deleted)
	}
	deleted, err = repo.DeleteClickedBefore(cutoff, 3)
	if err != nil {
		t.Fatalf("delete batch failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("second batch want 2 got %d", deleted)
	}
	var remaining int64
	db.Model(&models.Click{}).Count(&remaining)
	if remaining != 1 {
		t.Fatalf("remaining want 1 got %d", remaining)
	}
}

func TestClickListFilters(t *testing.T) {
	repo, db := setupClickRepositoryTest(t)
	partner := createClickTestPartner(t, db, "Kotak")
	product := createClickTestProduct(t, db, partner.ID, "Card")
	now := time.Now()
	for i := 0; i < 4; i++ {
		createClickTestClick(t, db, fmt.Sprintf("trk-list-%d", i), partner.ID, product.ID, now.Add(-time.Duration(i)*time.Minute))
	}
	createClickTestClick(t, db, "trk-list-other", partner.ID+100, product.ID, now)
	if _, err := repo.MarkConverted("trk-list-0", ClickConversionUpdate{ConversionDate: now, CommissionAmount: models.NewMoneyFromInt(1)}); err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}

	converted := false
	rows, total, err := repo.List(ClickListFilter{Page: 1, PageSize: 2, PartnerID: partner.ID, Converted: &converted})
	if err != nil {
		t.Fatalf("list clicks failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("total want 3 got %d", total)
	}
	if len(rows) != 2 || rows[0].TrackingID != "trk-list-1" {
		t.Fatalf("unexpected page: %+v", rows)
	}
}
