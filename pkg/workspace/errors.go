package workspace

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrPathViolation = errors.New("path escapes workspace root")
	ErrNotFound      = errors.New("path not found")
	ErrNotAFile      = errors.New("path is not a file")
	ErrNotADirectory = errors.New("path is not a directory")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrIOFailure     = errors.New("workspace io failure")
)

// wrapIO 将底层文件系统错误归类为工作区错误，同时保留原始错误链
func wrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIOFailure, err)
}
