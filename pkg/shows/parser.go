package shows

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/moistari/rls"
)

// Metadata is what a Parser extracts from a file name
type Metadata struct {
	IsShow   bool
	Title    string
	Season   *int
	Episodes []int
}

// Parser classifies a release file name. ok is false when nothing useful was found.
type Parser interface {
	Parse(name string) (meta Metadata, ok bool)
}

var (
	// S01E01, S01E01E02, S01E01-E03, S01E01-03, S01 E01. The range end must stand alone
	// so a trailing "-1080p" or "-720p" is not read as an episode.
	seasonEpisodeMarker = regexp2.MustCompile(`(?<![a-z0-9])s(\d{1,3})[ ._-]?((?:[ ._-]?e\d{1,4})+)(?:-e?(\d{1,4})(?![0-9a-z]))?(?![0-9])`, regexp2.IgnoreCase)
	// 1x01, 1x01x02
	crossEpisodeMarker = regexp2.MustCompile(`(?<![a-z0-9])(\d{1,2})((?:x\d{2,3})+)(?![0-9])`, regexp2.IgnoreCase)
	episodeNumber      = regexp2.MustCompile(`[ex](\d{1,4})`, regexp2.IgnoreCase)
)

// ReleaseParser parses scene-style release names with moistari/rls and reads the
// complete episode list from the season/episode marker, which rls reduces to one number.
type ReleaseParser struct{}

// Parse implements Parser
func (ReleaseParser) Parse(name string) (Metadata, bool) {
	release := rls.ParseString(name)

	title := strings.TrimSpace(release.Title)
	if title == "" {
		return Metadata{}, false
	}

	meta := Metadata{Title: title}

	season, episodes, found := episodeMarker(name)
	if !found {
		if release.Series > 0 {
			season = release.Series
		}
		if release.Episode > 0 {
			episodes = []int{release.Episode}
		}
	}

	if season > 0 || found {
		s := season
		meta.Season = &s
	}
	meta.Episodes = episodes
	meta.IsShow = release.Type == rls.Episode || release.Type == rls.Series || found

	return meta, true
}

// episodeMarker finds the first season/episode marker and every episode number in it
func episodeMarker(name string) (season int, episodes []int, found bool) {
	m, err := seasonEpisodeMarker.FindStringMatch(name)
	if err == nil && m != nil {
		season, _ = strconv.Atoi(m.GroupByNumber(1).String())
		episodes = episodeNumbers(m.GroupByNumber(2).String())
		if end := m.GroupByNumber(3).String(); end != "" {
			if n, err := strconv.Atoi(end); err == nil {
				episodes = append(episodes, n)
			}
		}
		return season, episodes, true
	}

	m, err = crossEpisodeMarker.FindStringMatch(name)
	if err == nil && m != nil {
		season, _ = strconv.Atoi(m.GroupByNumber(1).String())
		episodes = episodeNumbers(m.GroupByNumber(2).String())
		return season, episodes, true
	}

	return 0, nil, false
}

func episodeNumbers(s string) []int {
	var numbers []int
	m, err := episodeNumber.FindStringMatch(s)
	for err == nil && m != nil {
		if n, convErr := strconv.Atoi(m.GroupByNumber(1).String()); convErr == nil {
			numbers = append(numbers, n)
		}
		m, err = episodeNumber.FindNextMatch(m)
	}
	return numbers
}
