package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/Fl0rencess720/sheikah/pkg/common/models"
	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"github.com/natefinch/atomic"
	"go.opentelemetry.io/otel/attribute"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	defaultSearchWorkers = 8
)

var (
	// 目录树与搜索都跳过的噪声目录：版本控制元数据与依赖缓存
	defaultSkipDirs = []string{".git", ".hg", ".svn", "node_modules", ".next", ".cache", "__pycache__", ".venv"}

	// 参与全文搜索的文本文件扩展名
	defaultTextExtensions = []string{
		".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs",
		".css", ".scss", ".html", ".vue", ".svelte",
		".json", ".md", ".txt",
		".go", ".py", ".sh", ".yaml", ".yml", ".toml",
	}
)

type Options struct {
	// MaxFileBytes 读取与搜索的单文件大小上限，0 表示不限制
	MaxFileBytes   int64
	SearchWorkers  int
	SkipDirs       []string
	TextExtensions []string
}

// Service 工作区文件服务，所有路径都经由 Resolver 校验后才会落到文件系统
type Service struct {
	resolver      *Resolver
	maxFileBytes  int64
	searchWorkers int
	skipDirs      map[string]struct{}
	textExts      map[string]struct{}
}

func NewService(resolver *Resolver, opts Options) *Service {
	skip := opts.SkipDirs
	if len(skip) == 0 {
		skip = defaultSkipDirs
	}
	exts := opts.TextExtensions
	if len(exts) == 0 {
		exts = defaultTextExtensions
	}
	workers := opts.SearchWorkers
	if workers <= 0 {
		workers = defaultSearchWorkers
	}

	s := &Service{
		resolver:      resolver,
		maxFileBytes:  opts.MaxFileBytes,
		searchWorkers: workers,
		skipDirs:      make(map[string]struct{}, len(skip)),
		textExts:      make(map[string]struct{}, len(exts)),
	}
	for _, name := range skip {
		s.skipDirs[name] = struct{}{}
	}
	for _, ext := range exts {
		s.textExts[strings.ToLower(ext)] = struct{}{}
	}
	return s
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) Root() string {
	return s.resolver.Root()
}

// EnsureRoot 确保工作区根目录存在
func (s *Service) EnsureRoot() error {
	if err := os.MkdirAll(s.resolver.Root(), dirPerm); err != nil {
		return wrapIO("create root", s.resolver.Root(), err)
	}
	return nil
}

// GetTree 构建 path 下的目录树快照；扫描期间消失的子项直接忽略
func (s *Service) GetTree(ctx context.Context, path string) (*models.FileNode, error) {
	ctx, span := observability.Tracer("workspace").Start(ctx, "workspace.GetTree")
	defer span.End()

	target, err := s.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(spanPath(target))
	info, err := os.Stat(target)
	if err != nil {
		return nil, wrapIO("stat", target, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", target, ErrNotADirectory)
	}

	root := &models.FileNode{
		Name: filepath.Base(target),
		Path: target,
		Type: models.FileNodeTypeFolder,
	}
	if err := s.fillChildren(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

func (s *Service) fillChildren(ctx context.Context, dir *models.FileNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		// 目录在扫描过程中被删除或不可读，保留为空目录
		dir.Children = []*models.FileNode{}
		return nil
	}

	children := make([]*models.FileNode, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && s.skipped(entry.Name()) {
			continue
		}
		child := &models.FileNode{
			Name: entry.Name(),
			Path: filepath.Join(dir.Path, entry.Name()),
			Type: models.FileNodeTypeFile,
		}
		if entry.IsDir() {
			child.Type = models.FileNodeTypeFolder
			if err := s.fillChildren(ctx, child); err != nil {
				return err
			}
		}
		children = append(children, child)
	}

	sortNodes(children)
	dir.Children = children
	return nil
}

// sortNodes 目录在前、文件在后，同类按名称字典序
func sortNodes(nodes []*models.FileNode) {
	slices.SortStableFunc(nodes, func(a, b *models.FileNode) int {
		if a.IsFolder() != b.IsFolder() {
			if a.IsFolder() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// ReadFile 读取文件内容
func (s *Service) ReadFile(ctx context.Context, path string) (string, error) {
	target, err := s.resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", wrapIO("stat", target, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", target, ErrNotAFile)
	}
	if s.maxFileBytes > 0 && info.Size() > s.maxFileBytes {
		return "", fmt.Errorf("%s (%d bytes): %w", target, info.Size(), ErrFileTooLarge)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", wrapIO("read", target, err)
	}
	return string(data), nil
}

// WriteFile 先写临时文件再 rename 覆盖目标，读者不会看到写了一半的内容
func (s *Service) WriteFile(ctx context.Context, path, content string) error {
	target, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}
	info, statErr := os.Stat(target)
	if statErr == nil && info.IsDir() {
		return fmt.Errorf("%s: %w", target, ErrNotAFile)
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return wrapIO("create parent", target, err)
	}
	if err := atomic.WriteFile(target, strings.NewReader(content)); err != nil {
		return wrapIO("write", target, err)
	}
	// 临时文件默认 0600，新建文件对齐普通文件权限；已存在的文件保留原权限
	if statErr != nil {
		if err := os.Chmod(target, filePerm); err != nil {
			return wrapIO("chmod", target, err)
		}
	}
	return nil
}

// CreateFile 创建空文件；文件已存在时不做任何修改
func (s *Service) CreateFile(ctx context.Context, path string) error {
	target, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}
	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s: %w", target, ErrNotAFile)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return wrapIO("create parent", target, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return wrapIO("create", target, err)
	}
	if err := f.Close(); err != nil {
		return wrapIO("close", target, err)
	}
	return nil
}

// CreateFolder 递归创建目录，已存在时视为成功
func (s *Service) CreateFolder(ctx context.Context, path string) error {
	target, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return fmt.Errorf("%s: %w", target, ErrNotADirectory)
	}
	if err := os.MkdirAll(target, dirPerm); err != nil {
		return wrapIO("mkdir", target, err)
	}
	return nil
}

// RenameItem 单次 os.Rename，编辑器中已打开的缓冲区仍指向同一个 inode
func (s *Service) RenameItem(ctx context.Context, oldPath, newPath string) error {
	src, err := s.resolver.ResolveEntry(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.resolver.ResolveEntry(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(src); err != nil {
		return wrapIO("stat", src, err)
	}
	if src == dst {
		return nil
	}
	if strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return fmt.Errorf("rename %s into itself: %w: %w", src, ErrIOFailure, syscall.EINVAL)
	}

	created := firstMissingDir(filepath.Dir(dst))
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return wrapIO("create parent", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		// 回收为本次 rename 新建的父目录
		if created != "" {
			_ = os.RemoveAll(created)
		}
		return wrapIO("rename", src, err)
	}
	return nil
}

// firstMissingDir 返回 dir 中最靠上的不存在的祖先目录，全部存在时返回空串
func firstMissingDir(dir string) string {
	missing := ""
	for {
		if _, err := os.Lstat(dir); err == nil {
			return missing
		}
		missing = dir
		parent := filepath.Dir(dir)
		if parent == dir {
			return missing
		}
		dir = parent
	}
}

// DeleteItem 递归强制删除，目标不存在时视为成功
func (s *Service) DeleteItem(ctx context.Context, path string) error {
	target, err := s.resolver.ResolveEntry(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return wrapIO("delete", target, err)
	}
	return nil
}

func (s *Service) skipped(name string) bool {
	_, ok := s.skipDirs[name]
	return ok
}

func (s *Service) isText(name string) bool {
	_, ok := s.textExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func spanPath(path string) attribute.KeyValue {
	return attribute.String("workspace.path", path)
}
