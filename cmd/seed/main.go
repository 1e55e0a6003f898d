package main

import (
	"errors"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/logger"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/repository"
	"github.com/finlink-next/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedProduct struct {
	Name           string
	Type           string
	ApplicationURL string
}

type seedPartner struct {
	Input    service.PartnerInput
	Products []seedProduct
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	db, err := models.OpenDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false)
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() {
		_ = models.CloseDB(db)
	}()

	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	partnerService := service.NewPartnerService(repository.NewPartnerRepository(db), repository.NewProductRepository(db))
	for _, seed := range demoPartners() {
		partner, err := ensurePartner(db, partnerService, seed.Input)
		if err != nil {
			stdLog.Printf("Failed to seed partner %s: %v", seed.Input.Name, err)
			continue
		}
		for _, product := range seed.Products {
			if err := ensureProduct(db, partnerService, partner.ID, product); err != nil {
				stdLog.Printf("Failed to seed product %s: %v", product.Name, err)
			}
		}
	}
	stdLog.Printf("Seed completed")
}

func demoPartners() []seedPartner {
	return []seedPartner{
		{
			Input: service.PartnerInput{
				Name:                  "Demo Lender",
				Type:                  constants.PartnerTypeLoan,
				CommissionType:        constants.CommissionTypeFixed,
				CommissionAmount:      decimal.NewFromInt(500),
				Currency:              "INR",
				AttributionWindowDays: 30,
			},
			Products: []seedProduct{
				{Name: "Personal Loan", Type: "personal_loan", ApplicationURL: "https://lender.example.com/apply/personal"},
				{Name: "Home Loan", Type: "home_loan", ApplicationURL: "https://lender.example.com/apply/home"},
			},
		},
		{
			Input: service.PartnerInput{
				Name:                  "Demo Card Issuer",
				Type:                  constants.PartnerTypeCreditCard,
				CommissionType:        constants.CommissionTypeFixed,
				CommissionAmount:      decimal.NewFromInt(1200),
				Currency:              "INR",
				ConversionGoals:       []string{constants.ConversionGoalFirstTransaction},
				AttributionWindowDays: 45,
			},
			Products: []seedProduct{
				{Name: "Cashback Card", Type: "credit_card", ApplicationURL: "https://cards.example.com/cashback"},
			},
		},
		{
			Input: service.PartnerInput{
				Name:                  "Demo Broker",
				Type:                  constants.PartnerTypeBroker,
				CommissionType:        constants.CommissionTypePercentage,
				CommissionAmount:      decimal.NewFromInt(2),
				Currency:              "INR",
				AttributionWindowDays: 15,
			},
			Products: []seedProduct{
				{Name: "Demat Account", Type: "demat_account", ApplicationURL: "https://broker.example.com/open-account"},
			},
		},
	}
}

func ensurePartner(db *gorm.DB, partnerService *service.PartnerService, input service.PartnerInput) (*models.Partner, error) {
	var existing models.Partner
	err := db.Where("name = ?", input.Name).First(&existing).Error
	if err == nil {
		logger.Infow("seed_partner_exists", "name", input.Name, "partner_id", existing.ID)
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	partner, err := partnerService.CreatePartner(input)
	if err != nil {
		return nil, err
	}
	logger.Infow("seed_partner_created", "name", input.Name, "partner_id", partner.ID)
	return partner, nil
}

func ensureProduct(db *gorm.DB, partnerService *service.PartnerService, partnerID uint, seed seedProduct) error {
	var existing models.Product
	err := db.Where("partner_id = ? AND name = ?", partnerID, seed.Name).First(&existing).Error
	if err == nil {
		logger.Infow("seed_product_exists", "name", seed.Name, "product_id", existing.ID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	product, err := partnerService.CreateProduct(service.ProductInput{
		PartnerID:      partnerID,
		Name:           seed.Name,
		Type:           seed.Type,
		ApplicationURL: seed.ApplicationURL,
	})
	if err != nil {
		return err
	}
	logger.Infow("seed_product_created", "name", seed.Name, "product_id", product.ID)
	return nil
}
