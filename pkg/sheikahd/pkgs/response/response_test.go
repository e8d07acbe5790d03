package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func TestResponseSuite(t *testing.T) {
	suite.Run(t, &ResponseSuite{})
}

type ResponseSuite struct {
	suite.Suite
	recorder *httptest.ResponseRecorder
	ctx      *gin.Context
}

func (s *ResponseSuite) SetupSuite() {
	gin.SetMode(gin.ReleaseMode)
	zap.ReplaceGlobals(zap.NewNop())
}

func (s *ResponseSuite) SetupTest() {
	s.recorder = httptest.NewRecorder()
	s.ctx, _ = gin.CreateTestContext(s.recorder)
	s.ctx.Request = httptest.NewRequest(http.MethodGet, "/files/content", nil)
}

func (s *ResponseSuite) decode() ErrorBody {
	var body ErrorBody
	s.Require().NoError(json.Unmarshal(s.recorder.Body.Bytes(), &body))
	return body
}

// 成功响应直接输出数据，不再包一层 data
func (s *ResponseSuite) TestSuccessResponse() {
	data := gin.H{"success": true}

	SuccessResponse(s.ctx, data)

	s.Equal(http.StatusOK, s.recorder.Code)
	expectedJSON, _ := json.Marshal(data)
	s.JSONEq(string(expectedJSON), s.recorder.Body.String())
}

func (s *ResponseSuite) TestErrorResponse_FormError() {
	ErrorResponse(s.ctx, FormError)

	s.Equal(http.StatusBadRequest, s.recorder.Code)
	s.Equal(ErrorBody{Error: "Form Error", Kind: "FormError"}, s.decode())
	s.True(s.ctx.IsAborted())
}

// 测试未定义的错误
func (s *ResponseSuite) TestErrorResponse_Unknown() {
	var unknownCode ErrorCode = 999
	ErrorResponse(s.ctx, unknownCode)

	s.Equal(http.StatusForbidden, s.recorder.Code)
	s.Equal(ErrorBody{Error: "Unknown Error", Kind: "Unknown"}, s.decode())
}

func (s *ResponseSuite) TestFromError_PathViolationHidesDetail() {
	err := fmt.Errorf("%w: /etc/passwd", workspace.ErrPathViolation)

	FromError(s.ctx, err)

	s.Equal(http.StatusForbidden, s.recorder.Code)
	body := s.decode()
	s.Equal("PathViolation", body.Kind)
	s.NotContains(body.Error, "/etc/passwd")
}

func (s *ResponseSuite) TestFromError_NotFound() {
	err := fmt.Errorf("stat /ws/missing.txt: %w", workspace.ErrNotFound)

	FromError(s.ctx, err)

	s.Equal(http.StatusNotFound, s.recorder.Code)
	body := s.decode()
	s.Equal("NotFound", body.Kind)
	s.Contains(body.Error, "missing.txt")
}

func (s *ResponseSuite) TestFromError_ServerErrorHidesDetail() {
	FromError(s.ctx, fmt.Errorf("write /ws/a: %w: disk full", workspace.ErrIOFailure))

	s.Equal(http.StatusInternalServerError, s.recorder.Code)
	s.Equal(ErrorBody{Error: "Server Error", Kind: "IOFailure"}, s.decode())
}

func (s *ResponseSuite) TestClassify() {
	cases := map[error]ErrorCode{
		nil:                            NoError,
		workspace.ErrNotAFile:           NotAFile,
		workspace.ErrNotADirectory:      NotADirectory,
		workspace.ErrFileTooLarge:       FileTooLarge,
		generator.ErrGenerationFailure: GenerationFailure,
		fmt.Errorf("boom"):              ServerError,
	}
	for err, want := range cases {
		s.Equal(want, Classify(err), "error %v", err)
	}
	s.Equal(http.StatusBadGateway, HttpCode[GenerationFailure])
}
