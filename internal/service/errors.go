package service

import "errors"

var (
	// ErrNotFound 通用未找到
	ErrNotFound = errors.New("not found")

	ErrPartnerNotFoundOrInactive = errors.New("partner not found or inactive")
	ErrProductNotFoundOrInactive = errors.New("product not found or inactive")
	ErrInvalidPartnerID          = errors.New("invalid partner id")
	ErrInvalidProductID          = errors.New("invalid product id")

	// ErrTrackingNotFound 追踪记录不存在或已转化
	ErrTrackingNotFound          = errors.New("tracking id not found")
	ErrAttributionWindowExpired  = errors.New("attribution window expired")
	ErrInvalidConversionValue    = errors.New("invalid conversion value")
	ErrInvalidConversionDate     = errors.New("conversion date before click")
	ErrInvalidStatus             = errors.New("invalid status")
	ErrConversionMetadataInvalid = errors.New("conversion metadata invalid")

	ErrAnalyticsRangeInvalid = errors.New("analytics range invalid")
	ErrPartnerInvalid        = errors.New("partner invalid")
	ErrProductInvalid        = errors.New("product invalid")
	ErrTrackingURLInvalid    = errors.New("tracking url invalid")
)
