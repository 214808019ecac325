package entity

import "fmt"

// Category is the kind of entertainment a session is about.
type Category string

const (
	CategoryGame     Category = "Game"
	CategoryAnime    Category = "Anime"
	CategoryMovie    Category = "Movie"
	CategoryTVSeries Category = "TV Series"
)

// Categories lists every category in questionnaire order.
var Categories = []Category{CategoryGame, CategoryAnime, CategoryMovie, CategoryTVSeries}

// MediaType is the titles-catalog type filter.
type MediaType string

const (
	MediaTypeSeries MediaType = "series"
	MediaTypeMovie  MediaType = "movie"
)

// ParseCategory validates a raw category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, s)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// MediaType returns the catalog search type used for image lookups.
func (c Category) MediaType() MediaType {
	if c == CategoryMovie {
		return MediaTypeMovie
	}
	return MediaTypeSeries
}

// PreferenceAnswers is the questionnaire result. Element 0 is the category.
type PreferenceAnswers []string

// Category parses the first answer.
func (a PreferenceAnswers) Category() (Category, error) {
	if len(a) == 0 {
		return "", fmt.Errorf("%w: no answers", ErrInvalidRequest)
	}
	return ParseCategory(a[0])
}

// Preferences joins the answers after the category.
func (a PreferenceAnswers) Preferences() string {
	if len(a) < 2 {
		return ""
	}
	out := a[1]
	for _, s := range a[2:] {
		out += ", " + s
	}
	return out
}

// Clone returns a copy so in-flight requests are not affected by later edits.
func (a PreferenceAnswers) Clone() PreferenceAnswers {
	return append(PreferenceAnswers(nil), a...)
}
