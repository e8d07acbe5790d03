package mcp

import (
	"net/http"

	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPHandler 以 MCP 工具的形式暴露工作区文件接口
func NewMCPHandler(svc *workspace.Service) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sheikah-mcp",
		Version: "v0.1.0",
	}, nil)
	registerWorkspaceTools(server, svc)

	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
		},
	)
}
