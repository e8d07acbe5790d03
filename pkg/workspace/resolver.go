package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver 将客户端传入的路径解析为工作区根目录下的绝对路径
// 所有文件操作在做任何 I/O 之前都必须先经过 Resolver
type Resolver struct {
	root string
}

// NewResolver 以绝对、清洗并展开符号链接后的根目录构造 Resolver
func NewResolver(root string) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root failed: %w", err)
	}
	abs = filepath.Clean(abs)
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Resolver{root: abs}, nil
}

// Root 返回工作区根目录
func (r *Resolver) Root() string {
	return r.root
}

// Resolve 解析路径并校验其（包括符号链接展开后的真实位置）仍在根目录内
// 越界时直接失败，不做截断
func (r *Resolver) Resolve(candidate string) (string, error) {
	target, err := r.lexical(candidate)
	if err != nil {
		return "", err
	}
	if err := r.checkRealPath(target); err != nil {
		return "", err
	}
	return target, nil
}

// ResolveEntry 用于 rename/delete 这类作用于目录项本身的操作：
// 只展开父目录的符号链接，目标本身是链接时操作的是链接而不是它指向的文件
// 根目录本身不能作为目录项被移动或删除
func (r *Resolver) ResolveEntry(candidate string) (string, error) {
	target, err := r.lexical(candidate)
	if err != nil {
		return "", err
	}
	if target == r.root {
		return "", fmt.Errorf("%w: workspace root cannot be modified", ErrPathViolation)
	}
	if err := r.checkRealPath(filepath.Dir(target)); err != nil {
		return "", err
	}
	return target, nil
}

// Relative 返回相对根目录、以 / 分隔的路径
func (r *Resolver) Relative(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// lexical 只做字符串层面的规范化与包含性校验，不触碰文件系统
func (r *Resolver) lexical(candidate string) (string, error) {
	path := strings.TrimSpace(candidate)
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrPathViolation)
	}
	if path == "" {
		return r.root, nil
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(r.root, path)
	}
	if !r.contains(target) {
		return "", fmt.Errorf("%w: %s", ErrPathViolation, candidate)
	}
	return target, nil
}

func (r *Resolver) contains(target string) bool {
	rel, err := filepath.Rel(r.root, target)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkRealPath 找到 target 最深的已存在祖先，展开符号链接后再次校验包含性
func (r *Resolver) checkRealPath(target string) error {
	existing := target
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing || !r.contains(parent) {
			return nil
		}
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// 悬空链接无法确认指向，按越界处理
		return fmt.Errorf("%w: cannot evaluate %s", ErrPathViolation, existing)
	}
	if !r.contains(real) {
		return fmt.Errorf("%w: %s resolves outside workspace", ErrPathViolation, existing)
	}
	return nil
}
