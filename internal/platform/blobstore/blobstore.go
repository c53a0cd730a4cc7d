// Package blobstore keeps copies of generated report archives in memory or
// in an S3-compatible bucket and serves them back over HTTP.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rueisp/odontologia/pkg/pagination"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds maximum allowed size")
	ErrMissingKey     = errors.New("object key is required")
)

// MaxObjectSize is the maximum accepted object size in bytes (100 MB).
const MaxObjectSize = 100 * 1024 * 1024

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Object describes a stored object.
type Object struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"created_at"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Store is the contract for archive storage backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	List(ctx context.Context, prefix string) ([]*Object, error)
}

func validate(key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}
	if int64(len(data)) > MaxObjectSize {
		return ErrObjectTooLarge
	}
	return nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedObject struct {
	meta Object
	data []byte
}

// InMemoryStore is a thread-safe, in-memory Store for testing/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]*storedObject)}
}

// Put stores a copy of data under key, replacing any previous object.
func (s *InMemoryStore) Put(_ context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error) {
	if err := validate(key, data); err != nil {
		return nil, err
	}

	meta := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   time.Now().UTC(),
		Tags:        make(map[string]string, len(tags)),
	}
	for k, v := range tags {
		meta.Tags[k] = v
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{meta: meta, data: bytes.Clone(data)}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

// Get returns the object content and metadata.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrObjectNotFound
	}
	meta := obj.meta
	return bytes.Clone(obj.data), &meta, nil
}

// List returns objects whose key starts with prefix, sorted by key.
func (s *InMemoryStore) List(_ context.Context, prefix string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Object{}
	for k, obj := range s.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		m := obj.meta
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// Handler exposes retained objects under a fixed key prefix.
type Handler struct {
	store  Store
	prefix string
}

// NewHandler creates a Handler serving keys below prefix.
func NewHandler(store Store, prefix string) *Handler {
	return &Handler{store: store, prefix: prefix}
}

// RegisterRoutes mounts the archive routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/archives", h.handleList)
	g.GET("/archives/:year/:name", h.handleDownload)
}

func (h *Handler) handleList(c echo.Context) error {
	prefix := h.prefix
	if year := c.QueryParam("year"); year != "" {
		prefix += year + "/"
	}
	items, err := h.store.List(c.Request().Context(), prefix)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) handleDownload(c echo.Context) error {
	year, name := c.Param("year"), c.Param("name")
	if strings.Contains(year, "..") || strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid archive name")
	}
	data, meta, err := h.store.Get(c.Request().Context(), h.prefix+year+"/"+name)
	if errors.Is(err, ErrObjectNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "archive not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, meta.ContentType, data)
}
