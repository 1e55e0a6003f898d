package service

import (
	"fmt"
	"strings"

	"github.com/finlink-next/internal/constants"
	"github.com/finlink-next/internal/models"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// firstTransactionBonusRate 首笔交易奖励比例
	firstTransactionBonusRate = decimal.RequireFromString("0.10")

	conversionTypeMultipliers = map[string]decimal.Decimal{
		constants.ConversionTypeApplicationSubmitted: decimal.RequireFromString("0.1"),
		constants.ConversionTypeApplicationApproved:  decimal.RequireFromString("0.5"),
		constants.ConversionTypeLoanDisbursed:        decimal.NewFromInt(1),
		constants.ConversionTypeFirstEMIPaid:         decimal.RequireFromString("1.2"),
	}
)

// ConversionTypeMultiplier 转化类型对应的佣金系数，未知类型为 1.0
func ConversionTypeMultiplier(conversionType string) decimal.Decimal {
	if multiplier, ok := conversionTypeMultipliers[strings.ToLower(strings.TrimSpace(conversionType))]; ok {
		return multiplier
	}
	return decimal.NewFromInt(1)
}

// CalculateCommission 按佣金结构计算佣金
// fixed: amount * multiplier；percentage: value * amount / 100 * multiplier
func CalculateCommission(structure models.CommissionStructure, conversionValue, multiplier decimal.Decimal) (decimal.Decimal, error) {
	if conversionValue.IsNegative() {
		return decimal.Zero, ErrInvalidConversionValue
	}
	if multiplier.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative multiplier", ErrInvalidConversionValue)
	}
	if structure.Amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative commission amount", ErrPartnerInvalid)
	}

	var amount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(structure.Type)) {
	case constants.CommissionTypeFixed:
		amount = structure.Amount.Decimal.Mul(multiplier)
	case constants.CommissionTypePercentage:
		amount = conversionValue.Mul(structure.Amount.Decimal).Div(hundred).Mul(multiplier)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown commission type %q", ErrPartnerInvalid, structure.Type)
	}
	return amount.Round(2), nil
}

// FirstTransactionBonus 首笔交易奖励（首笔交易金额的 10%）
func FirstTransactionBonus(firstTransactionValue decimal.Decimal) (decimal.Decimal, error) {
	if firstTransactionValue.IsNegative() {
		return decimal.Zero, ErrInvalidConversionValue
	}
	return firstTransactionValue.Mul(firstTransactionBonusRate).Round(2), nil
}
