package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestConversionMetadataNormalizeAndValidate(t *testing.T) {
	meta := ConversionMetadata{
		ApplicationID: "  app-1 ",
		Currency:      " usd",
		Notes:         " approved in branch ",
	}.Normalize()
	if meta.ApplicationID != "app-1" || meta.Currency != "USD" || meta.Notes != "approved in branch" {
		t.Fatalf("unexpected normalized metadata %+v", meta)
	}
	if err := meta.Validate(); err != nil {
		t.Fatalf("valid metadata rejected: %v", err)
	}

	cases := []struct {
		name string
		meta ConversionMetadata
	}{
		{name: "negative loan amount", meta: ConversionMetadata{LoanAmount: MoneyPtr(decimal.NewFromInt(-5))}},
		{name: "negative bonus", meta: ConversionMetadata{FirstTransactionBonus: MoneyPtr(decimal.NewFromInt(-1))}},
		{name: "long external ref", meta: ConversionMetadata{ExternalRef: strings.Repeat("x", metadataTextMaxLen+1)}},
		{name: "long notes", meta: ConversionMetadata{Notes: strings.Repeat("n", metadataNotesMaxLen+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.meta.Validate(); !errors.Is(err, ErrConversionMetadataInvalid) {
				t.Fatalf("expected invalid metadata, got %v", err)
			}
		})
	}
}

func TestConversionMetadataMergeKeepsExistingFields(t *testing.T) {
	base := ConversionMetadata{
		ApplicationID:   "app-1",
		ConversionValue: MoneyPtr(decimal.NewFromInt(1000)),
		Currency:        "USD",
	}
	merged := base.Merge(ConversionMetadata{
		Currency:        "EUR",
		RejectionReason: "income too low",
	})
	if merged.ApplicationID != "app-1" || merged.ConversionValue == nil || merged.ConversionValue.String() != "1000.00" {
		t.Fatalf("existing fields must survive merge: %+v", merged)
	}
	if merged.Currency != "EUR" || merged.RejectionReason != "income too low" {
		t.Fatalf("incoming fields must override: %+v", merged)
	}
	if base.Currency != "USD" {
		t.Fatalf("merge must not mutate receiver")
	}
}
