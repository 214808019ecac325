package entity

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// CatalogItem is a titles-catalog search or listing hit.
type CatalogItem struct {
	Name       string    `json:"name"`
	Year       string    `json:"year"`
	Type       string    `json:"type"`
	Overview   string    `json:"overview"`
	FirstAired string    `json:"first_air_time"`
	Genres     GenreList `json:"genres"`
	ImageURL   string    `json:"image_url"`
}

// GenreList accepts genres encoded either as bare strings or as {"name": ...} objects.
type GenreList []string

func (g *GenreList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*g = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(GenreList, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	*g = out
	return nil
}

// Contains reports whether any genre contains one of the tokens, case-insensitively.
func (g GenreList) Contains(tokens ...string) bool {
	for _, genre := range g {
		lower := strings.ToLower(genre)
		for _, t := range tokens {
			if strings.Contains(lower, t) {
				return true
			}
		}
	}
	return false
}

// GameItem is a game-catalog hit.
type GameItem struct {
	Name            string  `json:"name"`
	Released        string  `json:"released"`
	BackgroundImage string  `json:"background_image"`
	Rating          float64 `json:"rating"`
	Playtime        int     `json:"playtime"`
	Genres          []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

// GenreNames returns the genre names in catalog order.
func (g GameItem) GenreNames() []string {
	names := make([]string, 0, len(g.Genres))
	for _, genre := range g.Genres {
		names = append(names, genre.Name)
	}
	return names
}
