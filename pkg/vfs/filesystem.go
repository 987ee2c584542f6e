// Package vfs is the in-memory, path addressed tree served over WebDAV.
package vfs

import (
	"errors"
	"strings"
	"sync"
)

// RootPath is the only path guaranteed to exist
const RootPath = "/"

// ErrRootNotFolder is returned when something other than a folder is stored at the root
var ErrRootNotFolder = errors.New("root node must be a folder")

// Filesystem maps normalized absolute paths to nodes behind a single mutex
type Filesystem struct {
	mu    sync.Mutex
	nodes map[string]Node
}

// New creates a filesystem holding only the root folder
func New() *Filesystem {
	return &Filesystem{
		nodes: map[string]Node{RootPath: Folder{}},
	}
}

// NormalizePath makes p absolute and strips trailing slashes, except for the root
func NormalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return RootPath
	}
	return p
}

// parentOf returns the parent of a normalized, non-root path
func parentOf(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return RootPath
	}
	return p[:idx]
}

// JoinPath appends name to a normalized parent path
func JoinPath(parent, name string) string {
	if parent == RootPath {
		return RootPath + name
	}
	return parent + "/" + name
}

// Tx gives unlocked access to the tree while Update holds the lock
type Tx struct {
	nodes map[string]Node
}

// Insert stores node at path, replacing whatever was there. Ancestors are not created.
func (tx *Tx) Insert(path string, node Node) error {
	path = NormalizePath(path)
	if path == RootPath {
		if _, ok := node.(Folder); !ok {
			return ErrRootNotFolder
		}
	}
	tx.nodes[path] = node
	return nil
}

// RemoveSubtree deletes path and every descendant. Removing the root clears the tree
// but keeps the root folder itself.
func (tx *Tx) RemoveSubtree(path string) int {
	path = NormalizePath(path)

	removed := 0
	if path == RootPath {
		for p := range tx.nodes {
			if p != RootPath {
				delete(tx.nodes, p)
				removed++
			}
		}
		return removed
	}

	prefix := path + "/"
	for p := range tx.nodes {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(tx.nodes, p)
			removed++
		}
	}
	return removed
}

// Lookup returns the node stored at path
func (tx *Tx) Lookup(path string) (Node, bool) {
	node, ok := tx.nodes[NormalizePath(path)]
	return node, ok
}

// ListChildren returns the direct children of path. ok is false unless path is a folder.
func (tx *Tx) ListChildren(path string) ([]Entry, bool) {
	path = NormalizePath(path)
	if _, isFolder := tx.nodes[path].(Folder); !isFolder {
		return nil, false
	}

	children := make([]Entry, 0)
	for p, node := range tx.nodes {
		if p == RootPath {
			continue
		}
		if parentOf(p) == path {
			children = append(children, Entry{Path: p, Node: node})
		}
	}
	return children, true
}

// Update runs fn with the lock held, so every change fn makes becomes visible to
// readers at once. fn must not block or do I/O.
func (f *Filesystem) Update(fn func(tx *Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&Tx{nodes: f.nodes})
}

func (f *Filesystem) view() *Tx {
	return &Tx{nodes: f.nodes}
}

// Insert stores node at path
func (f *Filesystem) Insert(path string, node Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().Insert(path, node)
}

// RemoveSubtree deletes path and its descendants, returning how many entries went away
func (f *Filesystem) RemoveSubtree(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().RemoveSubtree(path)
}

// Lookup returns a copy of the node stored at path
func (f *Filesystem) Lookup(path string) (Node, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().Lookup(path)
}

// ListChildren returns copies of the direct children of a folder, in no particular order
func (f *Filesystem) ListChildren(path string) ([]Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().ListChildren(path)
}

// Stat looks up path and, when it is a folder, its children under one lock acquisition
func (f *Filesystem) Stat(path string) (Node, []Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := f.view()
	node, ok := tx.Lookup(path)
	if !ok {
		return nil, nil, false
	}
	children, _ := tx.ListChildren(path)
	return node, children, true
}

// Len returns the number of stored paths, root included
func (f *Filesystem) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

// Snapshot copies the whole path map
func (f *Filesystem) Snapshot() map[string]Node {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]Node, len(f.nodes))
	for p, n := range f.nodes {
		out[p] = n
	}
	return out
}
