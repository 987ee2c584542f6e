package vfs

// Node is either a File or a Folder. Nodes are plain values; a node never knows its
// own path, the path is the key it is stored under.
type Node interface {
	isNode()
}

// Locator identifies a file at the upstream service
type Locator struct {
	TorrentID int64
	FileID    int64
}

// File is a streamable leaf
type File struct {
	Name    string
	Size    int64
	Locator Locator
	// URL, when set, is streamed as-is instead of resolving Locator
	URL string
}

// Folder is a directory; its children are derived from the paths stored below it
type Folder struct {
	Name string
}

func (File) isNode()   {}
func (Folder) isNode() {}

// Entry pairs a node with the path it is stored under
type Entry struct {
	Path string
	Node Node
}
