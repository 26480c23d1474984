package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/kids-bank/internal/blob"
)

type object struct {
	data []byte
	etag string
}

// Store is an in-memory implementation of blob.Transport.
// It is safe for concurrent use and counts calls so tests can assert on
// network traffic.
type Store struct {
	mu        sync.RWMutex
	objects   map[string]object
	version   int
	uploads   int
	downloads int

	// UploadErr and DownloadErr, when set, are returned instead of doing work.
	UploadErr   error
	DownloadErr error
}

// NewStore creates an empty in-memory object store.
func NewStore() *Store {
	return &Store{
		objects: make(map[string]object),
	}
}

// Upload implements the blob.Transport interface.
func (s *Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads++
	if s.UploadErr != nil {
		return "", s.UploadErr
	}

	s.version++
	etag := fmt.Sprintf("\"v%d\"", s.version)
	s.objects[key] = object{data: append([]byte(nil), data...), etag: etag}
	return etag, nil
}

// Download implements the blob.Transport interface.
func (s *Store) Download(ctx context.Context, key, etag string) (*blob.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloads++
	if s.DownloadErr != nil {
		return nil, s.DownloadErr
	}

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	if etag != "" && etag == obj.etag {
		return &blob.Download{NotModified: true, ETag: etag}, nil
	}
	return &blob.Download{Data: append([]byte(nil), obj.data...), ETag: obj.etag}, nil
}

// Put stores an object directly, as another device would.
func (s *Store) Put(key string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	etag := fmt.Sprintf("\"v%d\"", s.version)
	s.objects[key] = object{data: append([]byte(nil), data...), etag: etag}
	return etag
}

// Object returns the stored bytes for key.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	return obj.data, ok
}

// Uploads returns how many times Upload was called.
func (s *Store) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

// Downloads returns how many times Download was called.
func (s *Store) Downloads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.downloads
}

// Ensure Store implements blob.Transport interface.
var _ blob.Transport = (*Store)(nil)
