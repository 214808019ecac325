package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"zappy-core/internal/domain/entity"
)

func TestMetadataResolver_Game(t *testing.T) {
	games := &fakeGames{search: []entity.GameItem{{Name: "Hades", BackgroundImage: "https://media.rawg.io/media/games/hades.jpg"}}}
	r := NewMetadataResolver(&fakeTitles{}, games)

	got := r.ResolveImage(context.Background(), "Hades", entity.MediaTypeSeries, entity.CategoryGame)
	if got != "https://media.rawg.io/media/games/hades.jpg" {
		t.Fatalf("ResolveImage() = %q", got)
	}

	games.search, games.searchErr = nil, errors.New("network down")
	if got := r.ResolveImage(context.Background(), "Hades", entity.MediaTypeSeries, entity.CategoryGame); got != "" {
		t.Fatalf("ResolveImage() on error = %q, want empty", got)
	}
}

func TestMetadataResolver_MovieSmartSearchHint(t *testing.T) {
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) {
		return []entity.CatalogItem{{Name: "Dune", ImageURL: "/banners/dune.jpg"}}, nil
	}}
	r := NewMetadataResolver(titles, &fakeGames{})

	got := r.ResolveImage(context.Background(), "Dune", entity.MediaTypeMovie, entity.CategoryMovie)
	if got != "/banners/dune.jpg" {
		t.Fatalf("ResolveImage() = %q", got)
	}
	calls := titles.calls()
	if len(calls) != 1 || calls[0] != (searchCall{Query: "Dune Movie", MediaType: entity.MediaTypeMovie, Limit: 1}) {
		t.Fatalf("searches = %+v", calls)
	}
}

func TestMetadataResolver_FallbackUsesBareTitle(t *testing.T) {
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) {
		if c.Query == "Severance" {
			return []entity.CatalogItem{{Name: "Severance", ImageURL: "https://img/sev.jpg"}}, nil
		}
		return nil, nil
	}}
	r := NewMetadataResolver(titles, &fakeGames{})

	got := r.ResolveImage(context.Background(), "Severance", entity.MediaTypeMovie, entity.CategoryMovie)
	if got != "https://img/sev.jpg" {
		t.Fatalf("ResolveImage() = %q", got)
	}
	calls := titles.calls()
	if len(calls) != 2 || calls[1].Query != "Severance" {
		t.Fatalf("searches = %+v", calls)
	}
}

func TestMetadataResolver_BothSearchesMiss(t *testing.T) {
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) {
		return []entity.CatalogItem{{Name: c.Query}}, nil
	}}
	r := NewMetadataResolver(titles, &fakeGames{})

	if got := r.ResolveImage(context.Background(), "Obscure", entity.MediaTypeSeries, entity.CategoryTVSeries); got != "" {
		t.Fatalf("ResolveImage() = %q, want empty", got)
	}
}

func TestMetadataResolver_AnimePrefersGenreTaggedCandidate(t *testing.T) {
	candidates := make([]entity.CatalogItem, 5)
	for i := range candidates {
		candidates[i] = entity.CatalogItem{Name: fmt.Sprintf("Candidate %d", i+1), ImageURL: fmt.Sprintf("/banners/%d.jpg", i+1), Genres: entity.GenreList{"Drama"}}
	}
	candidates[2].Genres = entity.GenreList{"Action", "Animation"}

	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) { return candidates, nil }}
	r := NewMetadataResolver(titles, &fakeGames{})

	got := r.ResolveImage(context.Background(), "Frieren", entity.MediaTypeSeries, entity.CategoryAnime)
	if got != "/banners/3.jpg" {
		t.Fatalf("ResolveImage() = %q, want third candidate", got)
	}
	if calls := titles.calls(); calls[0].Query != "Frieren Anime" || calls[0].Limit != 5 {
		t.Fatalf("smart search = %+v", calls[0])
	}
}

func TestMetadataResolver_AnimeSkipsLiveAction(t *testing.T) {
	candidates := []entity.CatalogItem{
		{Name: "One Piece (2023)", Overview: "The live-action adaptation of the manga.", ImageURL: "/banners/la.jpg"},
		{Name: "One Piece", Overview: "Pirates.", ImageURL: "/banners/anime.jpg"},
		{Name: "One Piece Film", ImageURL: "/banners/film.jpg"},
		{Name: "One Piece Stampede", ImageURL: "/banners/stampede.jpg"},
		{Name: "One Piece Red", ImageURL: "/banners/red.jpg"},
	}
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) { return candidates, nil }}
	r := NewMetadataResolver(titles, &fakeGames{})

	got := r.ResolveImage(context.Background(), "One Piece", entity.MediaTypeSeries, entity.CategoryAnime)
	if got != "/banners/anime.jpg" {
		t.Fatalf("ResolveImage() = %q, want non live-action candidate", got)
	}
}

func TestMetadataResolver_AnimeAllLiveActionFallsBackToFirst(t *testing.T) {
	candidates := []entity.CatalogItem{
		{Name: "Live Action A", ImageURL: "/banners/a.jpg"},
		{Name: "B", Overview: "A live action remake", ImageURL: "/banners/b.jpg"},
	}
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) { return candidates, nil }}
	r := NewMetadataResolver(titles, &fakeGames{})

	if got := r.ResolveImage(context.Background(), "A", entity.MediaTypeSeries, entity.CategoryAnime); got != "/banners/a.jpg" {
		t.Fatalf("ResolveImage() = %q, want first raw candidate", got)
	}
}

func TestMetadataResolver_AuthFailureSkipsFallback(t *testing.T) {
	titles := &fakeTitles{searchFn: func(c searchCall) ([]entity.CatalogItem, error) {
		return nil, fmt.Errorf("%w: no key", entity.ErrAuthentication)
	}}
	r := NewMetadataResolver(titles, &fakeGames{})

	if got := r.ResolveImage(context.Background(), "Dune", entity.MediaTypeMovie, entity.CategoryMovie); got != "" {
		t.Fatalf("ResolveImage() = %q, want empty", got)
	}
	if n := len(titles.calls()); n != 1 {
		t.Fatalf("searches = %d, want 1", n)
	}
}
