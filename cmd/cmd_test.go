// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/config"
	"github.com/xkilldash9x/scriptfill/internal/observability"
	"github.com/xkilldash9x/scriptfill/internal/scripts"
)

const chatPage = `<!DOCTYPE html><html><body>
<input type="search" id="q" placeholder="Search">
<textarea id="msg" placeholder="Type a message"></textarea>
</body></html>`

type harness struct {
	t       *testing.T
	dir     string
	cfgPath string
	store   *scripts.FileStore
	deps    *deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  level: error\n"), 0o600))

	store := scripts.NewFileStore(filepath.Join(dir, "scripts.yaml"), zap.NewNop())
	h := &harness{t: t, dir: dir, cfgPath: cfgPath, store: store}
	h.deps = &deps{openRepo: func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (scripts.Repository, func(), error) {
		return store, func() {}, nil
	}}
	return h
}

func (h *harness) writeFile(name, content string) string {
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the command line and returns stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	root := newRootCmd(h.deps)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("", "version")
	require.NoError(t, err)
	assert.Equal(t, "scriptfill version dev\n", out)

	out, err = h.run("", "--version")
	require.NoError(t, err)
	assert.Equal(t, "scriptfill version dev\n", out)
}

func TestInvalidStoreFlagFailsValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "--store", "carrier-pigeon", "scripts", "list")
	assert.ErrorContains(t, err, "failed to load or validate config")
}

func TestDetect_File(t *testing.T) {
	h := newHarness(t)
	page := h.writeFile("chat.html", chatPage)

	t.Run("table", func(t *testing.T) {
		out, err := h.run("", "detect", page)
		require.NoError(t, err)
		assert.Contains(t, out, page+" (viewport 1366x768)")
		assert.Contains(t, out, "textarea")
		assert.Contains(t, out, "rejected 1:")
	})

	t.Run("json", func(t *testing.T) {
		out, err := h.run("", "detect", "--format", "json", page, page)
		require.NoError(t, err)
		var reports []schemas.DetectionReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 2)
		for _, r := range reports {
			assert.Equal(t, page, r.Source)
			c, ok := r.SelectedCandidate()
			require.True(t, ok)
			assert.Equal(t, "textarea", c.Tag)
			assert.Len(t, r.Rejected, 1)
		}
	})

	t.Run("errors", func(t *testing.T) {
		_, err := h.run("", "detect", filepath.Join(h.dir, "missing.html"))
		assert.ErrorContains(t, err, "failed to open")

		_, err = h.run("", "detect", "--format", "xml", page)
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestFill_File(t *testing.T) {
	h := newHarness(t)
	page := h.writeFile("chat.html", chatPage)
	output := filepath.Join(h.dir, "filled.html")

	out, err := h.run("", "fill", "--file", page, "--text", "Xin chào", "--output", output)
	require.NoError(t, err)

	var res schemas.FillResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, schemas.StatusFilled, res.Status)
	assert.Equal(t, "value", res.Strategy)

	filled, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(filled), `<textarea id="msg" placeholder="Type a message">Xin chào</textarea>`)
}

func TestFill_StoredScript(t *testing.T) {
	h := newHarness(t)
	page := h.writeFile("chat.html", chatPage)
	s, err := h.store.Put(context.Background(), schemas.Script{Title: "Greeting", Content: "Dạ em chào anh/chị"})
	require.NoError(t, err)

	out, err := h.run("", "fill", "--file", page, "--script", s.ID, "--mode", "cursor")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "FILLED"`)

	_, err = h.run("", "fill", "--file", page, "--script", "missing")
	assert.ErrorIs(t, err, scripts.ErrNotFound)
}

func TestFill_NoCandidate(t *testing.T) {
	h := newHarness(t)
	page := h.writeFile("empty.html", `<body><p>Nothing to type into</p></body>`)

	out, err := h.run("", "fill", "--file", page, "--text", "hi")
	assert.EqualError(t, err, "fill no candidate")
	assert.Contains(t, out, `"status": "NO_CANDIDATE"`)
}

func TestFill_FlagValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"fill", "--text", "hi"}, "exactly one of --url or --file"},
		{[]string{"fill", "--file", "a.html", "--url", "https://example.com", "--text", "hi"}, "exactly one of --url or --file"},
		{[]string{"fill", "--file", "a.html"}, "exactly one of --script or --text"},
		{[]string{"fill", "--url", "https://example.com", "--text", "hi", "--output", "x.html"}, "--output is only supported with --file"},
	}
	for _, tt := range tests {
		_, err := h.run("", tt.args...)
		assert.ErrorContains(t, err, tt.want, strings.Join(tt.args, " "))
	}

	page := h.writeFile("chat.html", chatPage)
	_, err := h.run("", "fill", "--file", page, "--text", "hi", "--mode", "sideways")
	assert.Error(t, err)
}

func TestScripts(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "scripts", "add", "--title", "Chào khách", "--content", "Xin chào!\nEm giúp gì được ạ?", "--group", "sales")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Saved script "))
	id := strings.TrimSpace(strings.TrimPrefix(out, "Saved script "))

	out, err = h.run("", "scripts", "add", "--title", "Bye", "--content-file", "-", "--format", "json")
	require.Error(t, err, "empty stdin leaves no content")
	assert.Empty(t, out)

	out, err = h.run("Tạm biệt", "scripts", "add", "--title", "Bye", "--content-file", "-", "--format", "json")
	require.NoError(t, err)
	var bye schemas.Script
	require.NoError(t, json.Unmarshal([]byte(out), &bye))
	assert.Equal(t, "Tạm biệt", bye.Content)

	out, err = h.run("", "scripts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Chào khách")
	assert.Contains(t, out, "Xin chào! Em giúp gì được ạ?", "content is flattened to one line")

	out, err = h.run("", "scripts", "search", "--format", "json", "CHAO", "KHACH")
	require.NoError(t, err)
	var found []schemas.Script
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)

	out, err = h.run("", "scripts", "search", "--format", "json", "nothing matches")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = h.run("- title: Ship\n  content: Hàng sẽ giao trong 2 ngày\n", "scripts", "import", "-")
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 scripts\n", out)

	out, err = h.run("", "scripts", "rm", id, bye.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted script "+bye.ID)

	_, err = h.run("", "scripts", "rm", id)
	assert.ErrorIs(t, err, scripts.ErrNotFound)

	list, err := h.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ship", list[0].Title)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t c"))
	long := strings.Repeat("ă", 50)
	p := preview(long)
	assert.Equal(t, previewLength, len([]rune(p)))
	assert.True(t, strings.HasSuffix(p, "…"))
}
