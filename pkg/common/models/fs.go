package models

const (
	FileNodeTypeFile   = "file"
	FileNodeTypeFolder = "folder"
)

// FileNode 工作区目录树中的单个节点，目录节点带有已排序的子节点
type FileNode struct {
	Name     string      `json:"name" jsonschema:"Base name of the node"`
	Path     string      `json:"path" jsonschema:"Absolute path inside the workspace root"`
	Type     string      `json:"type" jsonschema:"Node type, one of: file, folder"`
	Children []*FileNode `json:"children,omitempty" jsonschema:"Child nodes, folders first then files, only for folders"`
}

// IsFolder 判断节点是否为目录
func (n *FileNode) IsFolder() bool {
	return n != nil && n.Type == FileNodeTypeFolder
}

// SearchMatch 一次全文搜索命中的行
type SearchMatch struct {
	Path    string `json:"path" jsonschema:"File path, relative to the workspace root in API responses"`
	Line    int    `json:"line" jsonschema:"1-based line number"`
	Content string `json:"content" jsonschema:"Matched line with surrounding whitespace trimmed"`
}

// GetFilesResp 对应 GET /files
type GetFilesResp struct {
	Root string    `json:"root" jsonschema:"Absolute workspace root"`
	Tree *FileNode `json:"tree" jsonschema:"Snapshot of the workspace tree"`
}

// GetFileContentResp 对应 GET /files/content
type GetFileContentResp struct {
	Content string `json:"content" jsonschema:"UTF-8 file content"`
}

// SaveFileReq 对应 POST /files/save
type SaveFileReq struct {
	Path    string `json:"path" jsonschema:"Destination file path, relative or absolute inside the workspace"`
	Content string `json:"content" jsonschema:"Full file content to write"`
}

// CreateItemReq 对应 POST /files/create
type CreateItemReq struct {
	Path string `json:"path" jsonschema:"Path of the new item, relative or absolute inside the workspace"`
	Type string `json:"type" jsonschema:"Item type, one of: file, folder"`
}

// RenameItemReq 对应 POST /files/rename
type RenameItemReq struct {
	OldPath string `json:"oldPath" jsonschema:"Existing item path"`
	NewPath string `json:"newPath" jsonschema:"Target item path"`
}

// DeleteItemReq 对应 POST /files/delete
type DeleteItemReq struct {
	Path string `json:"path" jsonschema:"Item path to delete recursively"`
}

// SuccessResp 写类接口统一的成功响应
type SuccessResp struct {
	Success bool `json:"success"`
}

// SearchResp 对应 GET /files/search
type SearchResp struct {
	Results []SearchMatch `json:"results" jsonschema:"Matches in traversal order"`
}
