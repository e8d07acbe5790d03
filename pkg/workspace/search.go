package workspace

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fl0rencess720/sheikah/pkg/common/metrics"
	"github.com/Fl0rencess720/sheikah/pkg/common/models"
	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SearchFiles 在 root 下的文本文件中做大小写敏感的子串搜索
// 结果按遍历顺序（目录项字典序）、同一文件内按行号排列，Path 为绝对路径
func (s *Service) SearchFiles(ctx context.Context, query, root string) ([]models.SearchMatch, error) {
	start := time.Now()
	defer func() { metrics.RecordSearch(time.Since(start)) }()

	ctx, span := observability.Tracer("workspace").Start(ctx, "workspace.SearchFiles")
	defer span.End()

	target, err := s.resolver.Resolve(root)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(spanPath(target), attribute.Int("workspace.query_len", len(query)))

	if query == "" {
		return []models.SearchMatch{}, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, wrapIO("stat", target, err)
	}

	var files []string
	if info.IsDir() {
		files, err = s.collectFiles(ctx, target)
		if err != nil {
			return nil, err
		}
	} else if s.isText(target) {
		files = []string{target}
	}

	// 每个文件一个结果槽位，并发读取后按原顺序拼接
	slots := make([][]models.SearchMatch, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.searchWorkers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := s.searchFile(file, query)
			if err != nil {
				zap.L().Debug("Skip unreadable file during search", zap.String("path", file), zap.Error(err))
				return nil
			}
			slots[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]models.SearchMatch, 0)
	for _, matches := range slots {
		results = append(results, matches...)
	}
	span.SetAttributes(attribute.Int("workspace.matches", len(results)))
	return results, nil
}

// collectFiles 按 WalkDir 的字典序收集候选文本文件，跳过噪声目录
func (s *Service) collectFiles(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// 遍历中消失或无权限的目录项直接跳过
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && s.skipped(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.isText(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Service) searchFile(path, query string) ([]models.SearchMatch, error) {
	if s.maxFileBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > s.maxFileBytes {
			return nil, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// 按 \n 逐行读取，单行长度不设上限（文件总大小已受 maxFileBytes 约束）
	var matches []models.SearchMatch
	reader := bufio.NewReader(f)
	line := 0
	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			line++
			if strings.Contains(text, query) {
				matches = append(matches, models.SearchMatch{
					Path:    path,
					Line:    line,
					Content: strings.TrimSpace(text),
				})
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}
