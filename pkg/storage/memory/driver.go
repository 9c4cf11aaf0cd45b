// Package memory provides an in-process, map-backed implementation of
// storage.Driver for tests and local development.
package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/catalogfs/commitcoord/pkg/storage"
)

type node struct {
	content      []byte
	isDir        bool
	lastModified time.Time
}

// Driver is an in-memory storage.Driver. Zero value is not usable; use
// New. Safe for concurrent use by multiple goroutines, but note that real
// concurrent coordinator clients are expected to be separate processes —
// this driver exists for in-process tests exercising the same contract.
type Driver struct {
	mu    sync.Mutex
	nodes map[string]*node
	now   func() time.Time
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{
		nodes: map[string]*node{"": {isDir: true, lastModified: time.Now()}},
		now:   time.Now,
	}
}

// SetNowFunc overrides the clock used to stamp lastModified on writes,
// letting tests simulate TTL expiry without sleeping.
func (d *Driver) SetNowFunc(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

func clean(p string) string {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return p
}

// CreateDirectory implements storage.Driver.
func (d *Driver) CreateDirectory(_ context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mkdirAllLocked(clean(p))
	return nil
}

func (d *Driver) mkdirAllLocked(p string) {
	if p == "" {
		return
	}
	parts := strings.Split(p, "/")
	cur := ""
	for _, part := range parts {
		if cur == "" {
			cur = part
		} else {
			cur = cur + "/" + part
		}
		if n, ok := d.nodes[cur]; ok {
			if !n.isDir {
				n.isDir = true
			}
			continue
		}
		d.nodes[cur] = &node{isDir: true, lastModified: d.now()}
	}
}

// Exists implements storage.Driver.
func (d *Driver) Exists(_ context.Context, p string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.nodes[clean(p)]
	return ok, nil
}

// ListAllFiles implements storage.Driver.
func (d *Driver) ListAllFiles(_ context.Context, dir string, recursive bool) ([]storage.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := clean(dir)
	var entries []storage.Entry
	for key, n := range d.nodes {
		if key == "" || n.isDir {
			continue
		}
		rel := strings.TrimPrefix(key, prefix)
		if key != prefix && !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		if !recursive && strings.Contains(rel, "/") {
			continue
		}
		name := rel
		if idx := strings.LastIndex(rel, "/"); idx >= 0 {
			name = rel[idx+1:]
		}
		entries = append(entries, storage.Entry{Name: name, LastModified: n.lastModified})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// WriteFileWithoutGuarantees implements storage.Driver.
func (d *Driver) WriteFileWithoutGuarantees(_ context.Context, p string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := clean(p)
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		d.mkdirAllLocked(key[:idx])
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	d.nodes[key] = &node{content: buf, lastModified: d.now()}
	return nil
}

// Delete implements storage.Driver.
func (d *Driver) Delete(_ context.Context, p string, recursive bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := clean(p)
	if _, ok := d.nodes[key]; !ok {
		return nil
	}
	if recursive {
		for k := range d.nodes {
			if k == key || strings.HasPrefix(k, key+"/") {
				delete(d.nodes, k)
			}
		}
		return nil
	}
	delete(d.nodes, key)
	return nil
}

var _ storage.Driver = (*Driver)(nil)
