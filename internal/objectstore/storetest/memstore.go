// Package storetest provides an in-memory ObjectStore for tests above
// internal/objectstore, so package tests never need a real S3 endpoint.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftlock/driftlock/internal/objectstore"
)

// Store is a mutex-guarded map[string][]byte standing in for a real
// bucket. Construct one with New; the zero value's maps are nil, so Put
// and Move on it panic.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
	modTime map[string]time.Time
}

func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
		modTime: make(map[string]time.Time),
	}
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, size int64) (objectstore.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return objectstore.Info{}, err
	}
	if int64(len(data)) != size && size >= 0 {
		return objectstore.Info{}, fmt.Errorf("storetest: declared size %d does not match %d bytes read", size, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	now := time.Now()
	s.modTime[key] = now

	return objectstore.Info{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%x", len(data)),
		LastModified: now,
	}, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("storetest: key not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.modTime, key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, objectstore.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return false, objectstore.Info{}, nil
	}
	return true, objectstore.Info{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%x", len(data)),
		LastModified: s.modTime[key],
	}, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]objectstore.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []objectstore.Info
	for key, data := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, objectstore.Info{
			Key:          key,
			Size:         int64(len(data)),
			ETag:         fmt.Sprintf("%x", len(data)),
			LastModified: s.modTime[key],
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) Move(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("storetest: key not found: %s", srcKey)
	}
	s.objects[dstKey] = data
	s.modTime[dstKey] = time.Now()
	delete(s.objects, srcKey)
	delete(s.modTime, srcKey)
	return nil
}

// Contents is a test helper returning a copy of every stored key's bytes.
func (s *Store) Contents() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte, len(s.objects))
	for k, v := range s.objects {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
