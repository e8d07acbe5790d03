package handlers

import (
	"context"

	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/pkgs/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func initRequestContext(ctx *gin.Context) (context.Context, string) {
	reqCtx := ctx.Request.Context()
	requestID := observability.RequestIDFromContext(reqCtx)
	if requestID != "" {
		ctx.Writer.Header().Set(observability.RequestIDHeader, requestID)
	}
	return reqCtx, requestID
}

// bindJSON 解析失败统一返回 FormError
func bindJSON(ctx *gin.Context, obj any) bool {
	if err := ctx.ShouldBindJSON(obj); err != nil {
		zap.L().Debug("Bind request body failed", zap.String("path", ctx.Request.URL.Path), zap.Error(err))
		response.ErrorResponseWithMsg(ctx, response.FormError, "invalid request body")
		return false
	}
	return true
}
