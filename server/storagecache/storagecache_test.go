package storagecache

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/server/storage"
	"github.com/stretchr/testify/require"
)

func createTestCache(t *testing.T, maxBytes int64) (*StorageCache, storage.Storage) {
	upstream, err := storage.NewStorageFS(logs.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)
	cache, err := NewStorageCache(logs.NewTestingLog(t), upstream, t.TempDir(), maxBytes)
	require.NoError(t, err)
	return cache, upstream
}

func TestCacheRoundTrip(t *testing.T) {
	cache, upstream := createTestCache(t, 1024)
	content := []byte("video bytes!")
	require.NoError(t, storage.WriteFile(upstream, "videos/1/cups.mp4", bytes.NewReader(content)))

	r, err := cache.Open("videos/1/cups.mp4")
	require.NoError(t, err)
	read, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, content, read)

	// Seek back and read again
	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	read, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, content, read)

	// Filename is a real local file while the reader is open
	ondisk, err := os.ReadFile(r.Filename())
	require.NoError(t, err)
	require.Equal(t, content, ondisk)

	require.NoError(t, r.Close())
	require.Equal(t, int64(len(content)), cache.BytesUsed())
}

func TestCacheEviction(t *testing.T) {
	cache, upstream := createTestCache(t, 10)
	eight := bytes.Repeat([]byte("x"), 8)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, storage.WriteFile(upstream, name, bytes.NewReader(eight)))
	}

	open := func(name string) *CacheItemReader {
		r, err := cache.Open(name)
		require.NoError(t, err)
		return r
	}

	ra := open("a")
	pathA := ra.Filename()
	require.NoError(t, ra.Close())
	rb := open("b")
	require.NoError(t, rb.Close())
	require.Equal(t, int64(16), cache.BytesUsed())

	// Opening a third file pushes us over maxBytes, so the least recently
	// used item (a) gets evicted.
	rc := open("c")
	require.NoError(t, rc.Close())
	require.Equal(t, int64(16), cache.BytesUsed())
	_, err := os.Stat(pathA)
	require.True(t, os.IsNotExist(err))

	// Evicted items are refetched on demand
	ra = open("a")
	require.NoError(t, ra.Close())
}

func TestCacheNeverEvictsOpenFiles(t *testing.T) {
	cache, upstream := createTestCache(t, 5)
	eight := bytes.Repeat([]byte("x"), 8)
	for _, name := range []string{"a", "b"} {
		require.NoError(t, storage.WriteFile(upstream, name, bytes.NewReader(eight)))
	}

	ra, err := cache.Open("a")
	require.NoError(t, err)
	pathA := ra.Filename()

	// 'a' is over the limit but has an open reader, so it survives
	rb, err := cache.Open("b")
	require.NoError(t, err)
	_, err = os.Stat(pathA)
	require.NoError(t, err)
	require.Equal(t, int64(16), cache.BytesUsed())

	require.NoError(t, ra.Close())
	require.NoError(t, rb.Close())
}

func TestCacheMissingBlob(t *testing.T) {
	cache, _ := createTestCache(t, 1024)
	_, err := cache.Open("nope")
	require.Error(t, err)
}
