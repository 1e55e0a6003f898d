package models

import (
	"errors"
	"strings"
)

// ErrConversionMetadataInvalid 转化元数据不合法
var ErrConversionMetadataInvalid = errors.New("conversion metadata invalid")

const (
	metadataTextMaxLen  = 128
	metadataNotesMaxLen = 1024
)

// ConversionMetadata 转化元数据，仅允许以下已知字段
type ConversionMetadata struct {
	ConversionValue       *Money `json:"conversion_value,omitempty"`
	ApplicationID         string `json:"application_id,omitempty"`
	LoanAmount            *Money `json:"loan_amount,omitempty"`
	Currency              string `json:"currency,omitempty"`
	ExternalRef           string `json:"external_ref,omitempty"`
	Notes                 string `json:"notes,omitempty"`
	FirstTransactionValue *Money `json:"first_transaction_value,omitempty"`
	FirstTransactionBonus *Money `json:"first_transaction_bonus,omitempty"`
	RejectionReason       string `json:"rejection_reason,omitempty"`
}

// Normalize 清理文本字段
func (m ConversionMetadata) Normalize() ConversionMetadata {
	m.ApplicationID = strings.TrimSpace(m.ApplicationID)
	m.Currency = strings.ToUpper(strings.TrimSpace(m.Currency))
	m.ExternalRef = strings.TrimSpace(m.ExternalRef)
	m.Notes = strings.TrimSpace(m.Notes)
	m.RejectionReason = strings.TrimSpace(m.RejectionReason)
	return m
}

// Validate 校验金额非负与文本长度
func (m ConversionMetadata) Validate() error {
	for _, amount := range []*Money{m.ConversionValue, m.LoanAmount, m.FirstTransactionValue, m.FirstTransactionBonus} {
		if amount != nil && amount.IsNegative() {
			return ErrConversionMetadataInvalid
		}
	}
	for _, text := range []string{m.ApplicationID, m.Currency, m.ExternalRef} {
		if len(text) > metadataTextMaxLen {
			return ErrConversionMetadataInvalid
		}
	}
	if len(m.Notes) > metadataNotesMaxLen || len(m.RejectionReason) > metadataNotesMaxLen {
		return ErrConversionMetadataInvalid
	}
	return nil
}

// Merge 以 other 中的非空字段覆盖当前值
func (m ConversionMetadata) Merge(other ConversionMetadata) ConversionMetadata {
	if other.ConversionValue != nil {
		m.ConversionValue = other.ConversionValue
	}
	if other.ApplicationID != "" {
		m.ApplicationID = other.ApplicationID
	}
	if other.LoanAmount != nil {
		m.LoanAmount = other.LoanAmount
	}
	if other.Currency != "" {
		m.Currency = other.Currency
	}
	if other.ExternalRef != "" {
		m.ExternalRef = other.ExternalRef
	}
	if other.Notes != "" {
		m.Notes = other.Notes
	}
	if other.FirstTransactionValue != nil {
		m.FirstTransactionValue = other.FirstTransactionValue
	}
	if other.FirstTransactionBonus != nil {
		m.FirstTransactionBonus = other.FirstTransactionBonus
	}
	if other.RejectionReason != "" {
		m.RejectionReason = other.RejectionReason
	}
	return m
}
