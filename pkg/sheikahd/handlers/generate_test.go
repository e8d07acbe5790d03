package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	project *generator.Project
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*generator.Project, error) {
	f.prompts = append(f.prompts, prompt)
	return f.project, f.err
}

func newGenerateRouter(t *testing.T, gen generator.Generator) (*gin.Engine, string) {
	t.Helper()

	gin.SetMode(gin.ReleaseMode)
	svc := newTestWorkspace(t)
	router := gin.New()
	InitGenerateApi(router.Group(""), svc, gen)
	return router, svc.Root()
}

func TestGenerateHandler_WritesFiles(t *testing.T) {
	gen := &fakeGenerator{project: &generator.Project{
		ProjectName: "demo",
		Description: "demo app",
		Files: []generator.File{
			{Path: "index.html", Content: "<div id=root></div>"},
			{Path: "src/main.jsx", Content: "render()"},
		},
	}}
	router, root := newGenerateRouter(t, gen)

	w := doJSON(t, router, http.MethodPost, "/generate", GenerateReq{Prompt: "a demo"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp generator.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "demo", resp.ProjectName)
	require.Len(t, resp.Files, 2)
	require.Equal(t, []string{"a demo"}, gen.prompts)

	data, err := os.ReadFile(filepath.Join(root, "src", "main.jsx"))
	require.NoError(t, err)
	require.Equal(t, "render()", string(data))
}

func TestGenerateHandler_RequiresPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	router, _ := newGenerateRouter(t, gen)

	w := doJSON(t, router, http.MethodPost, "/generate", GenerateReq{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, gen.prompts)
}

func TestGenerateHandler_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: upstream down", generator.ErrGenerationFailure)}
	router, _ := newGenerateRouter(t, gen)

	w := doJSON(t, router, http.MethodPost, "/generate", GenerateReq{Prompt: "x"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "GenerationFailure", decodeError(t, w).Kind)
}

func TestGenerateHandler_RejectsEscapingPaths(t *testing.T) {
	gen := &fakeGenerator{project: &generator.Project{
		ProjectName: "evil",
		Files: []generator.File{
			{Path: "ok.txt", Content: "fine"},
			{Path: "../../escape.txt", Content: "nope"},
		},
	}}
	router, root := newGenerateRouter(t, gen)

	w := doJSON(t, router, http.MethodPost, "/generate", GenerateReq{Prompt: "x"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// 越界之前写入的文件保留
	_, err := os.Stat(filepath.Join(root, "ok.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(filepath.Dir(root)), "escape.txt"))
	require.True(t, os.IsNotExist(err))
}
