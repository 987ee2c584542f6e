// Package shows groups TorBox files into Show / Season / Episode by parsed release name.
package shows

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"torboxdav/pkg/torbox"
	"torboxdav/pkg/vfs"
)

// Show is a parsed series title with its seasons keyed by number
type Show struct {
	Title   string
	Seasons map[int]*Season
}

// Season holds the episodes of one season
type Season struct {
	Number   int
	Episodes []Episode
}

// Episode is a single streamable episode file
type Episode struct {
	Number   int
	FileName string
	Size     int64
	Locator  vfs.Locator
}

// SortedSeasons returns seasons in ascending order
func (s *Show) SortedSeasons() []*Season {
	seasons := make([]*Season, 0, len(s.Seasons))
	for _, season := range s.Seasons {
		seasons = append(seasons, season)
	}
	sort.Slice(seasons, func(i, j int) bool {
		return seasons[i].Number < seasons[j].Number
	})
	return seasons
}

// FolderName is the folder the season is exposed as
func (s *Season) FolderName() string {
	return "Season " + strconv.Itoa(s.Number)
}

// FromTorrents parses every file of every torrent and groups the ones that look like a
// single episode of a known season. Anything else is skipped.
func FromTorrents(torrents []torbox.Torrent, parser Parser) []*Show {
	byTitle := make(map[string]*Show)

	for _, torrent := range torrents {
		for _, file := range torrent.Files {
			fileName := file.ShortName
			if fileName == "" {
				fileName = path.Base(file.Name)
			}

			meta, ok := parseEpisode(parser, fileName)
			if !ok && file.Name != "" && file.Name != fileName {
				// season packs often only carry the season in the torrent folder
				meta, ok = parseEpisode(parser, file.Name)
			}
			if !ok {
				continue
			}

			show, exists := byTitle[meta.Title]
			if !exists {
				show = &Show{Title: meta.Title, Seasons: make(map[int]*Season)}
				byTitle[meta.Title] = show
			}

			season, exists := show.Seasons[*meta.Season]
			if !exists {
				season = &Season{Number: *meta.Season}
				show.Seasons[*meta.Season] = season
			}

			season.Episodes = append(season.Episodes, Episode{
				Number:   meta.Episodes[0],
				FileName: fileName,
				Size:     file.Size,
				Locator:  vfs.Locator{TorrentID: torrent.ID, FileID: file.ID},
			})
		}
	}

	shows := make([]*Show, 0, len(byTitle))
	for _, show := range byTitle {
		for _, season := range show.Seasons {
			sort.SliceStable(season.Episodes, func(i, j int) bool {
				return season.Episodes[i].Number < season.Episodes[j].Number
			})
		}
		shows = append(shows, show)
	}
	sort.Slice(shows, func(i, j int) bool {
		return shows[i].Title < shows[j].Title
	})
	return shows
}

// parseEpisode accepts a name only when it describes exactly one episode of a known season
func parseEpisode(parser Parser, name string) (Metadata, bool) {
	meta, ok := parser.Parse(name)
	if !ok || !meta.IsShow || meta.Title == "" || meta.Season == nil || len(meta.Episodes) != 1 {
		return Metadata{}, false
	}
	return meta, true
}

// SanitizeFilename makes a name safe to use as a single path component
func SanitizeFilename(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return r.Replace(name)
}
