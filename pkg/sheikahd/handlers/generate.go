package handlers

import (
	"strings"

	"github.com/Fl0rencess720/sheikah/pkg/common/metrics"
	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/pkgs/response"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GenerateReq struct {
	Prompt string `json:"prompt"`
}

type GenerateHandler struct {
	svc *workspace.Service
	gen generator.Generator
}

func InitGenerateApi(group *gin.RouterGroup, svc *workspace.Service, gen generator.Generator) {
	h := &GenerateHandler{svc: svc, gen: gen}
	group.POST("/generate", h.Generate)
}

// Generate 生成项目并逐个写入工作区；中途写入失败时已写入的文件保留
func (h *GenerateHandler) Generate(c *gin.Context) {
	ctx, requestID := initRequestContext(c)

	var req GenerateReq
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "prompt is required")
		return
	}

	zap.L().Info("Generating project", zap.Int("prompt_len", len(req.Prompt)), zap.String("request_id", requestID))
	project, err := h.gen.Generate(ctx, req.Prompt)
	if err != nil {
		metrics.RecordGeneration(false)
		zap.L().Error("Generate project failed", zap.String("request_id", requestID), zap.Error(err))
		response.FromError(c, err)
		return
	}

	if err := h.svc.EnsureRoot(); err != nil {
		metrics.RecordGeneration(false)
		response.FromError(c, err)
		return
	}
	for _, file := range project.Files {
		if err := h.svc.WriteFile(ctx, file.Path, file.Content); err != nil {
			metrics.RecordGeneration(false)
			zap.L().Error("Write generated file failed",
				zap.String("path", file.Path),
				zap.String("request_id", requestID),
				zap.Error(err),
			)
			response.FromError(c, err)
			return
		}
	}

	metrics.RecordGeneration(true)
	response.SuccessResponse(c, project)
}
