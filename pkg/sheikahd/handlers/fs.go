package handlers

import (
	"strings"

	"github.com/Fl0rencess720/sheikah/pkg/common/models"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/pkgs/response"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FSHandler 工作区文件接口，所有路径校验都交给 workspace.Service
type FSHandler struct {
	svc *workspace.Service
}

// InitFSApi 注册 /files 相关路由
func InitFSApi(group *gin.RouterGroup, svc *workspace.Service) {
	h := &FSHandler{svc: svc}
	group.GET("", h.GetFiles)
	group.GET("/content", h.GetFileContent)
	group.POST("/save", h.SaveFile)
	group.POST("/create", h.CreateItem)
	group.POST("/rename", h.RenameItem)
	group.POST("/delete", h.DeleteItem)
	group.GET("/search", h.SearchFiles)
}

// GetFiles 返回工作区目录树，根目录不存在时先创建
func (h *FSHandler) GetFiles(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	if err := h.svc.EnsureRoot(); err != nil {
		response.FromError(c, err)
		return
	}
	tree, err := h.svc.GetTree(ctx, c.Query("path"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessResponse(c, models.GetFilesResp{Root: h.svc.Root(), Tree: tree})
}

func (h *FSHandler) GetFileContent(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	path := c.Query("path")
	if strings.TrimSpace(path) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "path is required")
		return
	}
	content, err := h.svc.ReadFile(ctx, path)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessResponse(c, models.GetFileContentResp{Content: content})
}

func (h *FSHandler) SaveFile(c *gin.Context) {
	ctx, requestID := initRequestContext(c)

	var req models.SaveFileReq
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "path is required")
		return
	}
	if err := h.svc.WriteFile(ctx, req.Path, req.Content); err != nil {
		response.FromError(c, err)
		return
	}
	zap.L().Debug("File saved", zap.String("path", req.Path), zap.Int("bytes", len(req.Content)), zap.String("request_id", requestID))
	response.SuccessResponse(c, models.SuccessResp{Success: true})
}

func (h *FSHandler) CreateItem(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	var req models.CreateItemReq
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "path is required")
		return
	}

	var err error
	switch req.Type {
	case models.FileNodeTypeFile:
		err = h.svc.CreateFile(ctx, req.Path)
	case models.FileNodeTypeFolder:
		err = h.svc.CreateFolder(ctx, req.Path)
	default:
		response.ErrorResponseWithMsg(c, response.FormError, "type must be file or folder")
		return
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessResponse(c, models.SuccessResp{Success: true})
}

func (h *FSHandler) RenameItem(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	var req models.RenameItemReq
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.OldPath) == "" || strings.TrimSpace(req.NewPath) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "oldPath and newPath are required")
		return
	}
	if err := h.svc.RenameItem(ctx, req.OldPath, req.NewPath); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessResponse(c, models.SuccessResp{Success: true})
}

func (h *FSHandler) DeleteItem(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	var req models.DeleteItemReq
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		response.ErrorResponseWithMsg(c, response.FormError, "path is required")
		return
	}
	if err := h.svc.DeleteItem(ctx, req.Path); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessResponse(c, models.SuccessResp{Success: true})
}

// SearchFiles 搜索整个工作区，结果路径相对工作区根目录
func (h *FSHandler) SearchFiles(c *gin.Context) {
	ctx, _ := initRequestContext(c)

	query := c.Query("q")
	if query == "" {
		response.SuccessResponse(c, models.SearchResp{Results: []models.SearchMatch{}})
		return
	}

	matches, err := h.svc.SearchFiles(ctx, query, c.Query("path"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	resolver := h.svc.Resolver()
	for i := range matches {
		matches[i].Path = resolver.Relative(matches[i].Path)
	}
	response.SuccessResponse(c, models.SearchResp{Results: matches})
}
