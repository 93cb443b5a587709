package controllers

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
	"github.com/amaumene/unmonitarr/internal/utils"
)

// minContainsLength guards substring matching against very short titles
const minContainsLength = 3

// Candidate is the service-independent view of a library entity used for matching
type Candidate struct {
	Index           int // position in the source list
	Title           string
	AlternateTitles []string
	Year            int
	TvdbID          int
	ImdbID          string
	TmdbID          int
}

func seriesCandidates(series []sonarr.Series) []Candidate {
	candidates := make([]Candidate, len(series))
	for i, s := range series {
		alts := make([]string, 0, len(s.AlternateTitles))
		for _, alt := range s.AlternateTitles {
			alts = append(alts, alt.Title)
		}
		candidates[i] = Candidate{
			Index:           i,
			Title:           s.Title,
			AlternateTitles: alts,
			Year:            s.Year,
			TvdbID:          s.TvdbID,
			ImdbID:          s.ImdbID,
			TmdbID:          s.TmdbID,
		}
	}
	return candidates
}

func movieCandidates(movies []radarr.Movie) []Candidate {
	candidates := make([]Candidate, len(movies))
	for i, m := range movies {
		alts := make([]string, 0, len(m.AlternateTitles))
		for _, alt := range m.AlternateTitles {
			alts = append(alts, alt.Title)
		}
		candidates[i] = Candidate{
			Index:           i,
			Title:           m.Title,
			AlternateTitles: alts,
			Year:            m.Year,
			ImdbID:          m.ImdbID,
			TmdbID:          m.TmdbID,
		}
	}
	return candidates
}

// matchSeriesByID tries TVDB then IMDB. Returns the candidate index or -1.
func matchSeriesByID(candidates []Candidate, ids models.ExternalIDs) int {
	if idx := matchIntID(candidates, ids.Tvdb, func(c Candidate) int { return c.TvdbID }); idx >= 0 {
		return idx
	}
	return matchImdb(candidates, ids.Imdb)
}

// matchMovieByID tries TMDB then IMDB. Returns the candidate index or -1.
func matchMovieByID(candidates []Candidate, ids models.ExternalIDs) int {
	if idx := matchIntID(candidates, ids.Tmdb, func(c Candidate) int { return c.TmdbID }); idx >= 0 {
		return idx
	}
	return matchImdb(candidates, ids.Imdb)
}

func matchIntID(candidates []Candidate, want string, id func(Candidate) int) int {
	want = strings.TrimSpace(want)
	if want == "" {
		return -1
	}
	for _, c := range candidates {
		if v := id(c); v != 0 && strconv.Itoa(v) == want {
			return c.Index
		}
	}
	return -1
}

func matchImdb(candidates []Candidate, want string) int {
	want = strings.TrimSpace(want)
	if want == "" {
		return -1
	}
	for _, c := range candidates {
		if c.ImdbID != "" && strings.EqualFold(c.ImdbID, want) {
			return c.Index
		}
	}
	return -1
}

// matchByTitle runs the title tiers in order: normalized exact, substring in either
// direction, then alternate titles. The first tier with matches decides. When a year
// is known and several candidates remain they are narrowed to a ±1 year window unless
// that would leave none. Ties go to the first candidate in list order.
func matchByTitle(candidates []Candidate, title string, year *int) int {
	query := utils.NormalizeTitle(title)
	if query == "" {
		return -1
	}
	queryLen := utf8.RuneCountInString(query)

	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = utils.NormalizeTitle(c.Title)
	}

	tiers := []func(i int) bool{
		func(i int) bool {
			return normalized[i] == query
		},
		func(i int) bool {
			t := normalized[i]
			if t == "" || queryLen <= minContainsLength {
				return false
			}
			if strings.Contains(t, query) {
				return true
			}
			return utf8.RuneCountInString(t) > minContainsLength && strings.Contains(query, t)
		},
		func(i int) bool {
			for _, alt := range candidates[i].AlternateTitles {
				a := utils.NormalizeTitle(alt)
				if a == "" {
					continue
				}
				if a == query || (queryLen > minContainsLength && strings.Contains(a, query)) {
					return true
				}
			}
			return false
		},
	}

	for _, tier := range tiers {
		var matches []Candidate
		for i, c := range candidates {
			if tier(i) {
				matches = append(matches, c)
			}
		}
		if len(matches) == 0 {
			continue
		}
		return filterByYear(matches, year)[0].Index
	}

	return -1
}

func filterByYear(matches []Candidate, year *int) []Candidate {
	if year == nil || len(matches) < 2 {
		return matches
	}

	var filtered []Candidate
	for _, c := range matches {
		if c.Year == 0 {
			continue
		}
		diff := c.Year - *year
		if diff >= -1 && diff <= 1 {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return matches
	}
	return filtered
}
