package admin

import (
	"github.com/finlink-next/internal/authz"
	"github.com/finlink-next/internal/http/handlers/shared"
	"github.com/finlink-next/internal/http/response"
	"github.com/finlink-next/internal/service"

	"github.com/gin-gonic/gin"
)

var analyticsErrorRules = []shared.MappedError{
	{Target: service.ErrAnalyticsRangeInvalid, Code: response.CodeBadRequest, Msg: shared.MsgRangeInvalid},
}

var clickErrorRules = []shared.MappedError{
	{Target: service.ErrTrackingNotFound, Code: response.CodeNotFound, Msg: shared.MsgTrackingNotFound},
	{Target: service.ErrInvalidStatus, Code: response.CodeBadRequest, Msg: shared.MsgBadRequest},
}

var partnerErrorRules = []shared.MappedError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: shared.MsgNotFound},
	{Target: service.ErrPartnerInvalid, Code: response.CodeBadRequest, Msg: shared.MsgPartnerInvalid},
}

var productErrorRules = []shared.MappedError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: shared.MsgNotFound},
	{Target: service.ErrInvalidPartnerID, Code: response.CodeBadRequest, Msg: shared.MsgPartnerUnavailable},
	{Target: service.ErrPartnerNotFoundOrInactive, Code: response.CodeNotFound, Msg: shared.MsgPartnerUnavailable},
	{Target: service.ErrProductInvalid, Code: response.CodeBadRequest, Msg: shared.MsgProductInvalid},
}

var authzErrorRules = []shared.MappedError{
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Msg: shared.MsgBadRequest},
	{Target: authz.ErrActionRequired, Code: response.CodeBadRequest, Msg: shared.MsgBadRequest},
	{Target: authz.ErrReservedRole, Code: response.CodeBadRequest, Msg: shared.MsgBadRequest},
}

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func respondMappedError(c *gin.Context, err error, rules []shared.MappedError, fallbackMsg string) {
	shared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackMsg)
}
