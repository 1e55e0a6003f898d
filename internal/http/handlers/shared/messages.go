package shared

// 接口提示消息
const (
	MsgBadRequest          = "bad request"
	MsgInvalidID           = "invalid id"
	MsgUnauthorized        = "unauthorized"
	MsgForbidden           = "forbidden"
	MsgNotFound            = "not found"
	MsgInternal            = "internal error"
	MsgWebhookTokenInvalid = "webhook token invalid"

	MsgPartnerUnavailable = "partner not found or inactive"
	MsgProductUnavailable = "product not found or inactive"
	MsgPartnerInvalid     = "partner invalid"
	MsgProductInvalid     = "product invalid"
	MsgTrackingNotFound   = "tracking id not found"
	MsgWindowExpired      = "attribution window expired"
	MsgConversionInvalid  = "conversion value invalid"
	MsgConversionDate     = "conversion date before click"
	MsgStageInvalid       = "funnel stage invalid"
	MsgMetadataInvalid    = "conversion metadata invalid"
	MsgTrackingURLInvalid = "tracking url invalid"
	MsgRangeInvalid       = "analytics range invalid"

	MsgClickCreateFailed      = "click create failed"
	MsgConversionFailed       = "conversion record failed"
	MsgStageUpdateFailed      = "funnel stage update failed"
	MsgAnalyticsFetchFailed   = "analytics fetch failed"
	MsgClickFetchFailed       = "click fetch failed"
	MsgFraudCheckFailed       = "fraud check failed"
	MsgPartnerSaveFailed      = "partner save failed"
	MsgProductSaveFailed      = "product save failed"
	MsgPartnerFetchFailed     = "partner fetch failed"
	MsgAuthzFetchFailed       = "authz fetch failed"
	MsgAuthzSaveFailed        = "authz save failed"
	MsgRateLimited            = "too many requests, retry in %d seconds"
	MsgRateLimiterUnavailable = "rate limiter unavailable"
)
