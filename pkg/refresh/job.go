// Package refresh keeps the /shows tree in sync with the torrents ready at TorBox.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"torboxdav/pkg/logger"
	"torboxdav/pkg/metrics"
	"torboxdav/pkg/shows"
	"torboxdav/pkg/torbox"
	"torboxdav/pkg/vfs"
)

// ShowsPath is the folder the job owns. Nothing outside it is touched.
const ShowsPath = "/shows"

// Lister returns the torrents whose downloads are ready upstream
type Lister interface {
	ListTorrents(ctx context.Context) ([]torbox.Torrent, error)
}

// Job rebuilds ShowsPath on a fixed interval
type Job struct {
	lister   Lister
	parser   shows.Parser
	fs       *vfs.Filesystem
	interval time.Duration

	// serializes rebuilds between the ticker and forced refreshes
	refreshMu sync.Mutex

	stateMu   sync.Mutex
	isRunning atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewJob creates a refresh job. It does nothing until Start or Refresh is called.
func NewJob(lister Lister, parser shows.Parser, fs *vfs.Filesystem, interval time.Duration) *Job {
	return &Job{
		lister:   lister,
		parser:   parser,
		fs:       fs,
		interval: interval,
	}
}

// Start runs a refresh right away and then once per interval until ctx is done or Stop is called
func (j *Job) Start(ctx context.Context) {
	if !j.isRunning.CompareAndSwap(false, true) {
		logger.Debug("[Refresh] Refresh job already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	j.stateMu.Lock()
	j.cancel = cancel
	j.done = done
	j.stateMu.Unlock()

	go func() {
		defer func() {
			j.isRunning.Store(false)
			close(done)
			logger.Info("[Refresh] Refresh job stopped")
		}()
		j.run(ctx)
	}()
}

// Stop cancels a running job and waits for the current cycle to finish
func (j *Job) Stop() {
	j.stateMu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.stateMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Job) run(ctx context.Context) {
	logger.Info("[Refresh] Refresh job started, interval %v", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Error("[Refresh] %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh performs one cycle. On error the filesystem is left as it was.
func (j *Job) Refresh(ctx context.Context) error {
	j.refreshMu.Lock()
	defer j.refreshMu.Unlock()

	start := time.Now()
	err := j.refresh(ctx)
	metrics.RecordRefresh(err, time.Since(start))
	return err
}

func (j *Job) refresh(ctx context.Context) error {
	start := time.Now()

	torrents, err := j.lister.ListTorrents(ctx)
	if err != nil {
		return fmt.Errorf("refresh aborted: %w", err)
	}

	list := shows.FromTorrents(torrents, j.parser)
	entries, stats := buildEntries(list)

	err = j.fs.Update(func(tx *vfs.Tx) error {
		tx.RemoveSubtree(ShowsPath)
		for _, e := range entries {
			if err := tx.Insert(e.Path, e.Node); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild %s: %w", ShowsPath, err)
	}

	metrics.SetFilesystemNodes(j.fs.Len())
	logger.Info("[Refresh] Rebuilt %s from %d torrents: %d shows, %d seasons, %d episodes (%s) in %v",
		ShowsPath, len(torrents), stats.shows, stats.seasons, stats.episodes,
		humanize.Bytes(uint64(stats.bytes)), time.Since(start).Round(time.Millisecond))
	return nil
}

type treeStats struct {
	shows    int
	seasons  int
	episodes int
	bytes    int64
}

// buildEntries lays the shows out as vfs entries, every folder ahead of its children
func buildEntries(list []*shows.Show) ([]vfs.Entry, treeStats) {
	var stats treeStats
	entries := []vfs.Entry{{Path: ShowsPath, Node: vfs.Folder{Name: "shows"}}}

	for _, show := range list {
		title := shows.SanitizeFilename(show.Title)
		showPath := vfs.JoinPath(ShowsPath, title)
		entries = append(entries, vfs.Entry{Path: showPath, Node: vfs.Folder{Name: title}})
		stats.shows++

		for _, season := range show.SortedSeasons() {
			seasonName := season.FolderName()
			seasonPath := vfs.JoinPath(showPath, seasonName)
			entries = append(entries, vfs.Entry{Path: seasonPath, Node: vfs.Folder{Name: seasonName}})
			stats.seasons++

			for _, ep := range season.Episodes {
				name := shows.SanitizeFilename(ep.FileName)
				entries = append(entries, vfs.Entry{
					Path: vfs.JoinPath(seasonPath, name),
					Node: vfs.File{Name: name, Size: ep.Size, Locator: ep.Locator},
				})
				stats.episodes++
				stats.bytes += ep.Size
			}
		}
	}
	return entries, stats
}
