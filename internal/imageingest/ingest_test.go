package imageingest

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingStore struct{ blobstore.Store }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func newTestIngester(t *testing.T) (*Ingester, *blobstore.LocalStore) {
	t.Helper()
	store, err := blobstore.NewLocalStore(config.Config{Storage: config.StorageConfig{Root: t.TempDir(), PublicURL: "/storage"}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ing := New(Params{
		Store: store,
		Clock: clock.NewFakeClock(time.Date(2024, 7, 15, 10, 30, 5, 0, time.UTC)),
		Log:   zaptest.NewLogger(t),
	})
	return ing, store
}

func dataURL(mime string, payload []byte) string {
	return "data:image/" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestIngestStoresDataURLAndDropsMalformed(t *testing.T) {
	ing, store := newTestIngester(t)

	out := ing.Ingest(context.Background(), []string{
		dataURL("jpeg", []byte("fake-jpeg")),
		"data:image/png;base64,@@not-base64@@",
	}, nil, FolderGaransiPhotos)

	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "garansi-photos/20240715_103005_"))
	assert.True(t, strings.HasSuffix(out[0], ".jpg"))
	assert.True(t, store.Exists(out[0]))
}

func TestIngestIsIdempotentOnStoredPaths(t *testing.T) {
	ing, _ := newTestIngester(t)
	paths := []string{"garansi-photos/a.jpg", "garansi-photos/b.png"}

	out := ing.Ingest(context.Background(), paths, paths, FolderGaransiPhotos)

	assert.Equal(t, paths, out)
}

func TestIngestUnionKeepsExistingFirst(t *testing.T) {
	ing, _ := newTestIngester(t)

	out := ing.Ingest(context.Background(),
		[]string{" order-photos/new.png ", "", "order-photos/old.png"},
		[]string{"order-photos/old.png"},
		FolderOrderPhotos,
	)

	assert.Equal(t, []string{"order-photos/old.png", "order-photos/new.png"}, out)
}

func TestIngestDropsOnWriteFailure(t *testing.T) {
	ing, _ := newTestIngester(t)
	ing.store = failingStore{}

	out := ing.Ingest(context.Background(), []string{dataURL("png", []byte("x"))}, []string{"keep.png"}, FolderOrderPhotos)

	assert.Equal(t, []string{"keep.png"}, out)
}

func TestIngestDropsEmptyPayload(t *testing.T) {
	ing, _ := newTestIngester(t)

	out := ing.Ingest(context.Background(), []string{"data:image/png;base64,"}, nil, FolderOrderPhotos)

	assert.Empty(t, out)
}

func TestParseDataURL(t *testing.T) {
	ext, payload, ok := ParseDataURL("data:image/JPEG;base64,QUJD")
	require.True(t, ok)
	assert.Equal(t, "jpg", ext)
	assert.Equal(t, "QUJD", payload)

	_, _, ok = ParseDataURL("garansi-photos/a.jpg")
	assert.False(t, ok)
	assert.True(t, IsDataURL("data:image/webp;base64,AAAA"))
}
