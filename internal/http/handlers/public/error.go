package public

import (
	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
)

var clickCreateErrorRules = []shared.MappedError{
	{Target: service.ErrInvalidPartnerID, Code: response.CodeBadRequest, Msg: shared.MsgPartnerUnavailable},
	{Target: service.ErrInvalidProductID, Code: response.CodeBadRequest, Msg: shared.MsgProductUnavailable},
	{Target: service.ErrPartnerNotFoundOrInactive, Code: response.CodeNotFound, Msg: shared.MsgPartnerUnavailable},
	{Target: service.ErrProductNotFoundOrInactive, Code: response.CodeNotFound, Msg: shared.MsgProductUnavailable},
	{Target: service.ErrTrackingURLInvalid, Code: response.CodeBadRequest, Msg: shared.MsgTrackingURLInvalid},
}

var conversionErrorRules = []shared.MappedError{
	{Target: service.ErrTrackingNotFound, Code: response.CodeNotFound, Msg: shared.MsgTrackingNotFound},
	{Target: service.ErrPartnerNotFoundOrInactive, Code: response.CodeNotFound, Msg: shared.MsgPartnerUnavailable},
	{Target: service.ErrAttributionWindowExpired, Code: response.CodeBadRequest, Msg: shared.MsgWindowExpired},
	{Target: service.ErrInvalidConversionValue, Code: response.CodeBadRequest, Msg: shared.MsgConversionInvalid},
	{Target: service.ErrInvalidConversionDate, Code: response.CodeBadRequest, Msg: shared.MsgConversionDate},
	{Target: service.ErrConversionMetadataInvalid, Code: response.CodeBadRequest, Msg: shared.MsgMetadataInvalid},
	{Target: service.ErrPartnerInvalid, Code: response.CodeBadRequest, Msg: shared.MsgPartnerInvalid},
}

var funnelStageErrorRules = []shared.MappedError{
	{Target: service.ErrInvalidStatus, Code: response.CodeBadRequest, Msg: shared.MsgStageInvalid},
}

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func respondClickCreateError(c *gin.Context, err error) {
	shared.RespondMappedError(c, err, clickCreateErrorRules, response.CodeInternal, shared.MsgClickCreateFailed)
}

func respondConversionError(c *gin.Context, err error) {
	shared.RespondMappedError(c, err, conversionErrorRules, response.CodeInternal, shared.MsgConversionFailed)
}

func respondFunnelStageError(c *gin.Context, err error) {
	shared.RespondMappedError(c, err, shared.ConcatMappedErrors(funnelStageErrorRules, conversionErrorRules), response.CodeInternal, shared.MsgStageUpdateFailed)
}
