package images

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is the public path the HTTP layer serves stored images under.
const URLPrefix = "/api/images/"

var (
	ErrNotImage = errors.New("uploaded file is not an image")
	ErrTooLarge = errors.New("image exceeds upload limit")
	ErrEmpty    = errors.New("image is empty")
	ErrNotFound = errors.New("image not found")
)

// Image is one uploaded artwork picture.
type Image struct {
	ID        string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// URL returns the path the image is served from.
func (i Image) URL() string {
	return URLPrefix + i.ID
}

// Store keeps uploaded images in memory for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	images   map[string]Image
	maxBytes int64
}

// NewStore returns an empty store. maxBytes <= 0 disables the size check.
func NewStore(maxBytes int64) *Store {
	return &Store{
		images:   make(map[string]Image),
		maxBytes: maxBytes,
	}
}

// Save validates and stores data under a fresh id.
func (s *Store) Save(data []byte, mimeType string) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	mimeType = normalizeMIME(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	img := Image{
		ID:        uuid.NewString(),
		MIMEType:  mimeType,
		Data:      append([]byte(nil), data...),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.images[img.ID] = img
	s.mu.Unlock()

	return img, nil
}

// Get looks up an image by id.
func (s *Store) Get(id string) (Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return Image{}, ErrNotFound
	}
	return img, nil
}

// Delete drops an image. Missing ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.images, id)
	s.mu.Unlock()
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if base, _, ok := strings.Cut(mimeType, ";"); ok {
		mimeType = strings.TrimSpace(base)
	}
	return mimeType
}
