package shows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torboxdav/pkg/torbox"
	"torboxdav/pkg/vfs"
)

// mapParser returns canned metadata per file name
type mapParser map[string]Metadata

func (p mapParser) Parse(name string) (Metadata, bool) {
	m, ok := p[name]
	return m, ok
}

func season(n int) *int { return &n }

func TestFromTorrentsGroupsByTitleAndSeason(t *testing.T) {
	parser := mapParser{
		"a1.mkv": {IsShow: true, Title: "Alpha", Season: season(1), Episodes: []int{2}},
		"a0.mkv": {IsShow: true, Title: "Alpha", Season: season(1), Episodes: []int{1}},
		"a2.mkv": {IsShow: true, Title: "Alpha", Season: season(2), Episodes: []int{1}},
		"b1.mkv": {IsShow: true, Title: "Beta", Season: season(3), Episodes: []int{7}},
	}
	torrents := []torbox.Torrent{
		{ID: 1, Files: []torbox.File{
			{ID: 10, ShortName: "a1.mkv", Size: 100},
			{ID: 11, ShortName: "a0.mkv", Size: 90},
		}},
		{ID: 2, Files: []torbox.File{
			{ID: 20, ShortName: "a2.mkv", Size: 200},
			{ID: 21, Name: "Beta Pack/b1.mkv", Size: 300},
		}},
	}

	shows := FromTorrents(torrents, parser)
	require.Len(t, shows, 2)

	alpha := shows[0]
	assert.Equal(t, "Alpha", alpha.Title)
	require.Len(t, alpha.Seasons, 2)
	assert.Equal(t, []Episode{
		{Number: 1, FileName: "a0.mkv", Size: 90, Locator: vfs.Locator{TorrentID: 1, FileID: 11}},
		{Number: 2, FileName: "a1.mkv", Size: 100, Locator: vfs.Locator{TorrentID: 1, FileID: 10}},
	}, alpha.Seasons[1].Episodes)
	assert.Equal(t, []Episode{
		{Number: 1, FileName: "a2.mkv", Size: 200, Locator: vfs.Locator{TorrentID: 2, FileID: 20}},
	}, alpha.Seasons[2].Episodes)

	beta := shows[1]
	assert.Equal(t, "Beta", beta.Title)
	// falls back to the base of the full name when short_name is missing
	assert.Equal(t, "b1.mkv", beta.Seasons[3].Episodes[0].FileName)
}

func TestFromTorrentsSkipsUnclassifiableFiles(t *testing.T) {
	parser := mapParser{
		"movie.mkv":     {IsShow: false, Title: "Some Movie"},
		"double.mkv":    {IsShow: true, Title: "Show", Season: season(1), Episodes: []int{1, 2}},
		"noseason.mkv":  {IsShow: true, Title: "Show", Episodes: []int{4}},
		"noepisode.mkv": {IsShow: true, Title: "Show", Season: season(1)},
		"good.mkv":      {IsShow: true, Title: "Show", Season: season(1), Episodes: []int{3}},
		"notitle.mkv":   {IsShow: true, Season: season(1), Episodes: []int{3}},
	}
	torrents := []torbox.Torrent{{ID: 1, Files: []torbox.File{
		{ID: 1, ShortName: "movie.mkv"},
		{ID: 2, ShortName: "double.mkv"},
		{ID: 3, ShortName: "noseason.mkv"},
		{ID: 4, ShortName: "noepisode.mkv"},
		{ID: 5, ShortName: "good.mkv"},
		{ID: 6, ShortName: "notitle.mkv"},
		{ID: 7, ShortName: "unparseable.nfo"},
	}}}

	shows := FromTorrents(torrents, parser)
	require.Len(t, shows, 1)
	require.Len(t, shows[0].Seasons, 1)
	require.Len(t, shows[0].Seasons[1].Episodes, 1)
	assert.Equal(t, int64(5), shows[0].Seasons[1].Episodes[0].Locator.FileID)
}

func TestFromTorrentsFallsBackToFullName(t *testing.T) {
	parser := mapParser{
		"Show.S02.1080p/Episode 3.mkv": {IsShow: true, Title: "Show", Season: season(2), Episodes: []int{3}},
		"Other.S01E01.mkv":             {IsShow: true, Title: "Other", Season: season(1), Episodes: []int{1}},
		"Other.S01/Other.S01E01.mkv":   {IsShow: true, Title: "Wrong", Season: season(9), Episodes: []int{9}},
	}
	torrents := []torbox.Torrent{{ID: 4, Files: []torbox.File{
		{ID: 1, Name: "Show.S02.1080p/Episode 3.mkv", ShortName: "Episode 3.mkv", Size: 10},
		{ID: 2, Name: "Other.S01/Other.S01E01.mkv", ShortName: "Other.S01E01.mkv", Size: 20},
		{ID: 3, Name: "Extras/featurette.mkv", ShortName: "featurette.mkv", Size: 30},
	}}}

	shows := FromTorrents(torrents, parser)
	require.Len(t, shows, 2)

	// the short name wins when it parses on its own
	assert.Equal(t, "Other", shows[0].Title)
	require.Contains(t, shows[0].Seasons, 1)

	assert.Equal(t, "Show", shows[1].Title)
	require.Contains(t, shows[1].Seasons, 2)
	assert.Equal(t, []Episode{
		{Number: 3, FileName: "Episode 3.mkv", Size: 10, Locator: vfs.Locator{TorrentID: 4, FileID: 1}},
	}, shows[1].Seasons[2].Episodes)
}

func TestSortedSeasonsAndFolderName(t *testing.T) {
	show := &Show{Seasons: map[int]*Season{
		3: {Number: 3}, 1: {Number: 1}, 2: {Number: 2},
	}}
	seasons := show.SortedSeasons()
	require.Len(t, seasons, 3)
	assert.Equal(t, "Season 1", seasons[0].FolderName())
	assert.Equal(t, "Season 3", seasons[2].FolderName())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "AC_DC_ Live", SanitizeFilename("AC/DC: Live"))
	assert.Equal(t, "plain name.mkv", SanitizeFilename("plain name.mkv"))
}
