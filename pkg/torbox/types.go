package torbox

import "encoding/json"

// envelope is the response wrapper every TorBox API endpoint uses
type envelope[T any] struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error"`
	Detail  string          `json:"detail"`
	Data    T               `json:"data"`
}

// Torrent represents a torrent in the user's TorBox list
type Torrent struct {
	ID               int64   `json:"id"`
	Hash             string  `json:"hash"`
	Name             string  `json:"name"`
	Size             int64   `json:"size"`
	Active           bool    `json:"active"`
	DownloadState    string  `json:"download_state"`
	Progress         float64 `json:"progress"`
	DownloadPresent  bool    `json:"download_present"`
	DownloadFinished bool    `json:"download_finished"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	Files            []File  `json:"files"`
}

// File represents a single file inside a torrent
type File struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	Hash         string `json:"hash"`
	AbsolutePath string `json:"absolute_path"`
}
