// Package storagecache keeps local copies of blob store files.
// Two things need a real local file: http.ServeContent (seekable video
// playback) and ffmpeg (frame extraction). When the blob store is remote
// (eg GCS), we download into the cache and hand out the on-disk path.
package storagecache

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/server/storage"
)

type StorageCache struct {
	log       logs.Log
	upstream  storage.Storage
	cacheRoot string
	maxBytes  int64

	itemsLock sync.Mutex
	bytesUsed int64
	items     map[string]*cacheItem
	tick      int64 // Logical clock for LRU ordering
}

type cacheItem struct {
	name     string
	size     int64
	refs     int // Number of open readers. Items with open readers are never evicted.
	lastUsed int64
}

// CacheItemReader is an open, seekable reader on a cached file
type CacheItemReader struct {
	cache *StorageCache
	item  *cacheItem
	f     io.ReadSeekCloser
}

func (r *CacheItemReader) Read(p []byte) (n int, err error) {
	return r.f.Read(p)
}

func (r *CacheItemReader) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}

func (r *CacheItemReader) Close() error {
	r.cache.itemsLock.Lock()
	r.item.refs--
	r.cache.itemsLock.Unlock()
	return r.f.Close()
}

// Filename is the path of the cached copy on the local filesystem.
// The path is valid for as long as the reader is open.
func (r *CacheItemReader) Filename() string {
	return filepath.Join(r.cache.cacheRoot, r.item.name)
}

// NewStorageCache wipes cacheRoot and starts an empty cache over 'upstream'
func NewStorageCache(log logs.Log, upstream storage.Storage, cacheRoot string, maxBytes int64) (*StorageCache, error) {
	os.RemoveAll(cacheRoot)
	if err := os.MkdirAll(cacheRoot, 0755); err != nil {
		return nil, err
	}
	return &StorageCache{
		log:       log,
		upstream:  upstream,
		cacheRoot: cacheRoot,
		maxBytes:  maxBytes,
		items:     map[string]*cacheItem{},
	}, nil
}

// Open returns a seekable reader on the named blob, fetching it from the
// upstream store if it is not already cached.
func (s *StorageCache) Open(name string) (*CacheItemReader, error) {
	s.itemsLock.Lock()
	defer s.itemsLock.Unlock()
	item := s.items[name]
	if item == nil {
		s.evictStale()
		var err error
		if item, err = s.fetch(name); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(filepath.Join(s.cacheRoot, name))
	if err != nil {
		return nil, err
	}
	item.refs++
	item.lastUsed = s.tick
	s.tick++
	return &CacheItemReader{
		cache: s,
		item:  item,
		f:     f,
	}, nil
}

// BytesUsed returns the current size of the cache contents
func (s *StorageCache) BytesUsed() int64 {
	s.itemsLock.Lock()
	defer s.itemsLock.Unlock()
	return s.bytesUsed
}

// fetch downloads a blob into the cache. Assumes itemsLock is held.
func (s *StorageCache) fetch(name string) (*cacheItem, error) {
	src, err := s.upstream.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer src.Reader.Close()
	ondisk := filepath.Join(s.cacheRoot, name)
	if err := os.MkdirAll(filepath.Dir(ondisk), 0755); err != nil {
		return nil, err
	}
	dst, err := os.Create(ondisk)
	if err != nil {
		return nil, err
	}
	_, err = io.Copy(dst, src.Reader)
	if err == nil {
		err = dst.Close()
	} else {
		dst.Close()
	}
	if err != nil {
		os.Remove(ondisk)
		return nil, err
	}
	item := &cacheItem{
		name:     name,
		size:     src.Size,
		lastUsed: s.tick,
	}
	s.bytesUsed += src.Size
	s.items[name] = item
	return item, nil
}

// evictStale removes least recently used items until we're under maxBytes.
// Items with open readers are skipped. Assumes itemsLock is held.
func (s *StorageCache) evictStale() {
	if s.bytesUsed <= s.maxBytes {
		return
	}
	unused := []*cacheItem{}
	for _, item := range s.items {
		if item.refs == 0 {
			unused = append(unused, item)
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		return unused[i].lastUsed < unused[j].lastUsed
	})
	for _, item := range unused {
		if s.bytesUsed <= s.maxBytes {
			break
		}
		s.bytesUsed -= item.size
		delete(s.items, item.name)
		os.Remove(filepath.Join(s.cacheRoot, item.name))
	}
}
