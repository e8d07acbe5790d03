package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Fl0rencess720/sheikah/pkg/common/models"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/handlers"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/pkgs/response"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-gonic/gin"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// workspaceToolBridge 复用 /files 的 HTTP 处理链，保证 MCP 与编辑器走同一套路径校验
type workspaceToolBridge struct {
	router http.Handler
}

type fsTreeToolInput struct {
	Path string `json:"path,omitempty" jsonschema:"Directory to list, relative to the workspace root. Defaults to the root"`
}

type fsTreeEntry struct {
	Path string `json:"path" jsonschema:"Path relative to the workspace root"`
	Type string `json:"type" jsonschema:"Entry type, one of: file, folder"`
}

type fsTreeToolOutput struct {
	Root    string        `json:"root" jsonschema:"Absolute workspace root"`
	Entries []fsTreeEntry `json:"entries" jsonschema:"Entries in tree order, folders before files"`
}

type fsReadToolInput struct {
	Path string `json:"path" jsonschema:"File path to read, relative to the workspace root"`
}

type fsWriteToolInput struct {
	Path    string `json:"path" jsonschema:"File path to write, relative to the workspace root. Parent folders are created"`
	Content string `json:"content" jsonschema:"Full file content"`
}

type fsSearchToolInput struct {
	Query string `json:"query" jsonschema:"Case-sensitive literal text to search for"`
}

type fsCreateToolInput struct {
	Path string `json:"path" jsonschema:"Path of the new item"`
	Type string `json:"type" jsonschema:"Item type, one of: file, folder"`
}

type fsRenameToolInput struct {
	OldPath string `json:"oldPath" jsonschema:"Existing item path"`
	NewPath string `json:"newPath" jsonschema:"Target item path"`
}

type fsDeleteToolInput struct {
	Path string `json:"path" jsonschema:"Item to delete recursively"`
}

func registerWorkspaceTools(server *sdkmcp.Server, svc *workspace.Service) {
	bridge := newWorkspaceToolBridge(svc)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_tree",
		Description: "List files and folders in the workspace",
	}, bridge.tree)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_read",
		Description: "Read a UTF-8 file from the workspace",
	}, bridge.read)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_write",
		Description: "Write a file in the workspace, replacing its content",
	}, bridge.write)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_search",
		Description: "Search text files in the workspace line by line",
	}, bridge.search)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_create",
		Description: "Create an empty file or a folder in the workspace",
	}, bridge.create)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_rename",
		Description: "Rename or move a file or folder inside the workspace",
	}, bridge.rename)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "fs_delete",
		Description: "Delete a file or folder recursively",
	}, bridge.remove)
}

func newWorkspaceToolBridge(svc *workspace.Service) *workspaceToolBridge {
	engine := gin.New()
	handlers.InitFSApi(engine.Group("/files"), svc)
	return &workspaceToolBridge{router: engine}
}

func (b *workspaceToolBridge) tree(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsTreeToolInput) (*sdkmcp.CallToolResult, fsTreeToolOutput, error) {
	target := "/files"
	if path := strings.TrimSpace(in.Path); path != "" {
		target += "?" + url.Values{"path": []string{path}}.Encode()
	}

	rec := b.invoke(ctx, http.MethodGet, target, nil)
	resp, err := decodeBody[models.GetFilesResp](rec)
	if err != nil {
		return nil, fsTreeToolOutput{}, err
	}

	out := fsTreeToolOutput{Root: resp.Root, Entries: []fsTreeEntry{}}
	if resp.Tree != nil {
		flattenTree(resp.Root, resp.Tree.Children, &out.Entries)
	}
	return nil, out, nil
}

func flattenTree(root string, nodes []*models.FileNode, out *[]fsTreeEntry) {
	for _, n := range nodes {
		rel, err := filepath.Rel(root, n.Path)
		if err != nil {
			rel = n.Path
		}
		*out = append(*out, fsTreeEntry{Path: filepath.ToSlash(rel), Type: n.Type})
		if n.IsFolder() {
			flattenTree(root, n.Children, out)
		}
	}
}

func (b *workspaceToolBridge) read(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsReadToolInput) (*sdkmcp.CallToolResult, models.GetFileContentResp, error) {
	target := "/files/content?" + url.Values{"path": []string{in.Path}}.Encode()
	rec := b.invoke(ctx, http.MethodGet, target, nil)
	out, err := decodeBody[models.GetFileContentResp](rec)
	if err != nil {
		return nil, models.GetFileContentResp{}, err
	}
	return nil, out, nil
}

func (b *workspaceToolBridge) write(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsWriteToolInput) (*sdkmcp.CallToolResult, models.SuccessResp, error) {
	return b.post(ctx, "/files/save", models.SaveFileReq{Path: in.Path, Content: in.Content})
}

func (b *workspaceToolBridge) search(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsSearchToolInput) (*sdkmcp.CallToolResult, models.SearchResp, error) {
	if in.Query == "" {
		return nil, models.SearchResp{}, fmt.Errorf("query is required")
	}
	target := "/files/search?" + url.Values{"q": []string{in.Query}}.Encode()
	rec := b.invoke(ctx, http.MethodGet, target, nil)
	out, err := decodeBody[models.SearchResp](rec)
	if err != nil {
		return nil, models.SearchResp{}, err
	}
	return nil, out, nil
}

func (b *workspaceToolBridge) create(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsCreateToolInput) (*sdkmcp.CallToolResult, models.SuccessResp, error) {
	return b.post(ctx, "/files/create", models.CreateItemReq{Path: in.Path, Type: in.Type})
}

func (b *workspaceToolBridge) rename(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsRenameToolInput) (*sdkmcp.CallToolResult, models.SuccessResp, error) {
	return b.post(ctx, "/files/rename", models.RenameItemReq{OldPath: in.OldPath, NewPath: in.NewPath})
}

func (b *workspaceToolBridge) remove(ctx context.Context, _ *sdkmcp.CallToolRequest, in fsDeleteToolInput) (*sdkmcp.CallToolResult, models.SuccessResp, error) {
	return b.post(ctx, "/files/delete", models.DeleteItemReq{Path: in.Path})
}

func (b *workspaceToolBridge) post(ctx context.Context, path string, body any) (*sdkmcp.CallToolResult, models.SuccessResp, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, models.SuccessResp{}, fmt.Errorf("marshal %s req: %w", path, err)
	}
	rec := b.invoke(ctx, http.MethodPost, path, payload)
	out, err := decodeBody[models.SuccessResp](rec)
	if err != nil {
		return nil, models.SuccessResp{}, err
	}
	return nil, out, nil
}

func (b *workspaceToolBridge) invoke(ctx context.Context, method, rawPath string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, rawPath, bytes.NewReader(body)).WithContext(ctx)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](rec *httptest.ResponseRecorder) (T, error) {
	var zero T
	if rec.Code != http.StatusOK {
		return zero, decodeHTTPError(rec)
	}

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		return zero, fmt.Errorf("decode response body: %w", err)
	}
	return out, nil
}

func decodeHTTPError(rec *httptest.ResponseRecorder) error {
	var body response.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err == nil && body.Kind != "" {
		return fmt.Errorf("%s (http=%d): %s", body.Kind, rec.Code, body.Error)
	}
	text := strings.TrimSpace(rec.Body.String())
	if text == "" {
		return fmt.Errorf("workspace http=%d", rec.Code)
	}
	return fmt.Errorf("workspace http=%d body=%s", rec.Code, text)
}
