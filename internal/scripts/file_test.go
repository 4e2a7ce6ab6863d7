// File: internal/scripts/file_test.go
package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scriptfill/api/schemas"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "scripts.yaml")
	fs := NewFileStore(path, zaptest.NewLogger(t))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fs.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return fs, path
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	fs, _ := newTestFileStore(t)
	list, err := fs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = fs.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_CRUD(t *testing.T) {
	ctx := context.Background()
	fs, path := newTestFileStore(t)

	greeting, err := fs.Put(ctx, schemas.Script{Title: "Chào khách", Content: "Xin chào, em có thể giúp gì?", Group: "sales"})
	require.NoError(t, err)
	require.NotEmpty(t, greeting.ID)
	assert.Equal(t, greeting.CreatedAt, greeting.UpdatedAt)

	_, err = fs.Put(ctx, schemas.Script{Title: "Shipping", Content: "Orders ship in 2 days.", Note: "giao hàng", Group: "ops"})
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "file should be created on first write")

	list, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ops", list[0].Group, "scripts are ordered by group")

	got, err := fs.Get(ctx, greeting.ID)
	require.NoError(t, err)
	assert.Equal(t, greeting, got)

	t.Run("update keeps creation time", func(t *testing.T) {
		edited := got
		edited.Content = "Xin chào anh/chị!"
		edited.CreatedAt = time.Time{}
		stored, err := fs.Put(ctx, edited)
		require.NoError(t, err)
		assert.Equal(t, greeting.CreatedAt, stored.CreatedAt)
		assert.True(t, stored.UpdatedAt.After(greeting.UpdatedAt))

		list, err := fs.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("search folds case and diacritics", func(t *testing.T) {
		found, err := fs.Search(ctx, "CHAO")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, greeting.ID, found[0].ID)

		found, err = fs.Search(ctx, "giao hang")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Shipping", found[0].Title)

		all, err := fs.Search(ctx, "  ")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, fs.Delete(ctx, greeting.ID))
		assert.ErrorIs(t, fs.Delete(ctx, greeting.ID), ErrNotFound)
		_, err := fs.Get(ctx, greeting.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileStore_RejectsInvalid(t *testing.T) {
	fs, path := newTestFileStore(t)
	_, err := fs.Put(context.Background(), schemas.Script{Title: "   ", Content: "body"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing should be written")
}

func TestFileStore_Import(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFileStore(t)

	n, err := fs.Import(ctx, []schemas.Script{
		{ID: "a", Title: "One", Content: "1"},
		{ID: "b", Title: "Two", Content: "2"},
		{ID: "a", Title: "One again", Content: "1!"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "One again", list[0].Title)

	_, err = fs.Import(ctx, []schemas.Script{{ID: "c", Title: "Three", Content: "3"}, {ID: "d"}})
	assert.ErrorIs(t, err, ErrInvalid)
	list, err = fs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "a failed import writes nothing")
}

func TestFileStore_CorruptFile(t *testing.T) {
	fs, path := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("scripts: [unterminated"), 0o600))

	_, err := fs.List(context.Background())
	assert.ErrorContains(t, err, "failed to parse script file")
}

func TestPrepareAndSort(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("ICT", 7*3600))
	s, err := Prepare(schemas.Script{Title: " Hi ", Content: "there"}, now)
	require.NoError(t, err)
	assert.Equal(t, "Hi", s.Title)
	assert.Len(t, s.ID, 36)
	assert.Equal(t, time.UTC, s.CreatedAt.Location())

	list := []schemas.Script{
		{ID: "3", Group: "b", Title: "x"},
		{ID: "2", Group: "a", Title: "y"},
		{ID: "1", Group: "a", Title: "y"},
	}
	Sort(list)
	assert.Equal(t, []string{"1", "2", "3"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestDecodeBatch(t *testing.T) {
	doc := []byte("scripts:\n  - title: A\n    content: one\n")
	list, err := DecodeBatch(doc)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Title)

	bare := []byte(`[{"title": "B", "content": "two", "group": "g"}]`)
	list, err = DecodeBatch(bare)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "g", list[0].Group)

	_, err = DecodeBatch([]byte("just a string"))
	assert.Error(t, err)
}
