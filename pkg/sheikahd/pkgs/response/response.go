package response

import (
	"errors"
	"net/http"

	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/Fl0rencess720/sheikah/pkg/terminal"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorCode uint

const (
	ServerError ErrorCode = iota
	FormError
	PathViolation
	NotFound
	NotAFile
	NotADirectory
	FileTooLarge
	GenerationFailure
	SpawnFailure

	NoError
)

var HttpCode = map[ErrorCode]int{
	ServerError:       http.StatusInternalServerError,
	FormError:         http.StatusBadRequest,
	PathViolation:     http.StatusForbidden,
	NotFound:          http.StatusNotFound,
	NotAFile:          http.StatusBadRequest,
	NotADirectory:     http.StatusBadRequest,
	FileTooLarge:      http.StatusBadRequest,
	GenerationFailure: http.StatusBadGateway,
	SpawnFailure:      http.StatusInternalServerError,
}

// Kind 响应体中返回给客户端的错误类别
var Kind = map[ErrorCode]string{
	ServerError:       "IOFailure",
	FormError:         "FormError",
	PathViolation:     "PathViolation",
	NotFound:          "NotFound",
	NotAFile:          "NotAFile",
	NotADirectory:     "NotADirectory",
	FileTooLarge:      "FileTooLarge",
	GenerationFailure: "GenerationFailure",
	SpawnFailure:      "SpawnFailure",
}

var Message = map[ErrorCode]string{
	ServerError:       "Server Error",
	FormError:         "Form Error",
	PathViolation:     "Path is outside the workspace",
	NotFound:          "Not Found",
	NotAFile:          "Path is not a file",
	NotADirectory:     "Path is not a directory",
	FileTooLarge:      "File is too large",
	GenerationFailure: "Failed to generate project",
	SpawnFailure:      "Failed to start terminal",
}

type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// SuccessResponse 成功响应直接输出数据本身
func SuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func ErrorResponse(c *gin.Context, code ErrorCode) {
	c.AbortWithStatusJSON(status(code), body(code, ""))
}

// ErrorResponseWithMsg 在固定文案后附带具体原因
func ErrorResponseWithMsg(c *gin.Context, code ErrorCode, detail string) {
	c.AbortWithStatusJSON(status(code), body(code, detail))
}

// FromError 按错误类别选择状态码，越界与内部错误不向客户端暴露底层细节
func FromError(c *gin.Context, err error) {
	code := Classify(err)
	switch code {
	case ServerError, PathViolation:
		zap.L().Warn("Request failed", zap.String("kind", Kind[code]), zap.String("path", c.Request.URL.Path), zap.Error(err))
		ErrorResponse(c, code)
	default:
		ErrorResponseWithMsg(c, code, err.Error())
	}
}

func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, workspace.ErrPathViolation):
		return PathViolation
	case errors.Is(err, workspace.ErrNotFound):
		return NotFound
	case errors.Is(err, workspace.ErrNotAFile):
		return NotAFile
	case errors.Is(err, workspace.ErrNotADirectory):
		return NotADirectory
	case errors.Is(err, workspace.ErrFileTooLarge):
		return FileTooLarge
	case errors.Is(err, generator.ErrGenerationFailure):
		return GenerationFailure
	case errors.Is(err, terminal.ErrSpawnFailure):
		return SpawnFailure
	default:
		return ServerError
	}
}

func status(code ErrorCode) int {
	httpStatus, ok := HttpCode[code]
	if !ok {
		httpStatus = http.StatusForbidden
	}
	return httpStatus
}

func body(code ErrorCode, detail string) ErrorBody {
	msg, ok := Message[code]
	if !ok {
		msg = "Unknown Error"
	}
	if detail != "" {
		msg = msg + ": " + detail
	}
	kind, ok := Kind[code]
	if !ok {
		kind = "Unknown"
	}
	return ErrorBody{Error: msg, Kind: kind}
}
