package workspace

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchFiles_ReportsLinesInOrder(t *testing.T) {
	svc := newTestService(t, Options{})
	root := svc.Root()
	mustWrite(t, root, "src/app.js", "const a = 1\n  // TODO one\n\tTODO two  \nend\n")

	results, err := svc.SearchFiles(context.Background(), "TODO", "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, filepath.Join(root, "src", "app.js"), results[0].Path)
	require.Equal(t, 2, results[0].Line)
	require.Equal(t, "// TODO one", results[0].Content)
	require.Equal(t, 3, results[1].Line)
	require.Equal(t, "TODO two", results[1].Content)
}

// 超长单行（如压缩后的 bundle）不影响同一文件其他行的命中
func TestSearchFiles_LongLinesDoNotDropFile(t *testing.T) {
	svc := newTestService(t, Options{MaxFileBytes: 10 << 20})
	root := svc.Root()
	mustWrite(t, root, "dist/bundle.js", "TODO first\n"+strings.Repeat("x", 2<<20)+"\nTODO last")

	results, err := svc.SearchFiles(context.Background(), "TODO", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Line)
	require.Equal(t, "TODO first", results[0].Content)
	require.Equal(t, 3, results[1].Line)
	require.Equal(t, "TODO last", results[1].Content)
}

func TestSearchFiles_TraversalOrderAcrossFiles(t *testing.T) {
	svc := newTestService(t, Options{SearchWorkers: 4})
	root := svc.Root()
	mustWrite(t, root, "b.md", "needle b\n")
	mustWrite(t, root, "a/z.ts", "needle az\n")
	mustWrite(t, root, "a/b.ts", "needle ab\n")
	mustWrite(t, root, "c.txt", "x\nneedle c\n")

	results, err := svc.SearchFiles(context.Background(), "needle", "")
	require.NoError(t, err)

	got := make([]string, 0, len(results))
	for _, m := range results {
		got = append(got, svc.Resolver().Relative(m.Path))
	}
	require.Equal(t, []string{"a/b.ts", "a/z.ts", "b.md", "c.txt"}, got)
	require.Equal(t, 2, results[3].Line)
}

func TestSearchFiles_SkipsNoiseAndBinaryExtensions(t *testing.T) {
	svc := newTestService(t, Options{})
	root := svc.Root()
	mustWrite(t, root, "node_modules/lib/index.js", "needle\n")
	mustWrite(t, root, ".git/config", "needle\n")
	mustWrite(t, root, "image.png", "needle\n")
	mustWrite(t, root, "README.MD", "needle\n")

	results, err := svc.SearchFiles(context.Background(), "needle", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, filepath.Join(root, "README.MD"), results[0].Path)
}

func TestSearchFiles_CaseSensitive(t *testing.T) {
	svc := newTestService(t, Options{})
	mustWrite(t, svc.Root(), "notes.txt", "todo\nTODO\n")

	results, err := svc.SearchFiles(context.Background(), "TODO", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].Line)
}

func TestSearchFiles_EmptyQuery(t *testing.T) {
	svc := newTestService(t, Options{})
	mustWrite(t, svc.Root(), "notes.txt", "anything\n")

	results, err := svc.SearchFiles(context.Background(), "", "")
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestSearchFiles_SubdirectoryAndViolation(t *testing.T) {
	svc := newTestService(t, Options{})
	mustWrite(t, svc.Root(), "a/one.txt", "hit\n")
	mustWrite(t, svc.Root(), "b/two.txt", "hit\n")

	results, err := svc.SearchFiles(context.Background(), "hit", "b")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b/two.txt", svc.Resolver().Relative(results[0].Path))

	_, err = svc.SearchFiles(context.Background(), "hit", "../")
	require.ErrorIs(t, err, ErrPathViolation)
}

func TestSearchFiles_SkipsFilesOverLimit(t *testing.T) {
	svc := newTestService(t, Options{MaxFileBytes: 8})
	mustWrite(t, svc.Root(), "small.txt", "hit\n")
	mustWrite(t, svc.Root(), "large.txt", "hit hit hit hit\n")

	results, err := svc.SearchFiles(context.Background(), "hit", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "small.txt", svc.Resolver().Relative(results[0].Path))
}

func TestSearchFiles_CanceledContext(t *testing.T) {
	svc := newTestService(t, Options{})
	mustWrite(t, svc.Root(), "notes.txt", "hit\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.SearchFiles(ctx, "hit", "")
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, results)
}
