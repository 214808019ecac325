package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"zappy-core/internal/domain/entity"
)

var testHosts = ImageHosts{ArtworkBaseURL: "https://artworks.thetvdb.com", MediaBaseURL: "https://media.rawg.io/media"}

func animeAnswers() entity.PreferenceAnswers {
	return entity.PreferenceAnswers{"Anime", "Action", "Dark", "Long-running"}
}

func TestRecommender_Generate(t *testing.T) {
	provider := &fakeProvider{model: "m", results: []providerResult{{content: `{"recs":[
		{"title":"Attack on Titan (Season 4)","category":"Movie","explanation":"Epic."},
		{"title":"Vinland Saga: Season 2","category":"Anime","explanation":"Vikings."},
		{"title":"Frieren","category":"anime","explanation":"Quiet."}]}`}}}
	resolver := &fakeResolver{images: map[string]string{
		"Attack on Titan": "/banners/aot.jpg",
		"Frieren":         "https://img.example.com/frieren.jpg",
	}}
	r := NewRecommender(provider, resolver, nil, testHosts, RecommenderConfig{MaxAttempts: 3, BaseDelay: time.Second})

	recs, err := r.Generate(context.Background(), entity.CategoryAnime, animeAnswers(), "- \"Frieren\" (2023): An elf.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}

	wantTitles := []string{"Attack on Titan", "Vinland Saga", "Frieren"}
	wantImages := []string{"https://artworks.thetvdb.com/banners/aot.jpg", "", "https://img.example.com/frieren.jpg"}
	for i, rec := range recs {
		if rec.Title != wantTitles[i] {
			t.Errorf("recs[%d].Title = %q, want %q", i, rec.Title, wantTitles[i])
		}
		if rec.Category != entity.CategoryAnime {
			t.Errorf("recs[%d].Category = %q, want Anime", i, rec.Category)
		}
		if rec.ImageURL != wantImages[i] {
			t.Errorf("recs[%d].ImageURL = %q, want %q", i, rec.ImageURL, wantImages[i])
		}
	}

	req := provider.reqs[0]
	if !req.JSONMode {
		t.Error("generation must request JSON mode")
	}
	prompt := req.Messages[0].Content
	if !strings.HasPrefix(prompt, "To ensure your recommendations are current") || !strings.Contains(prompt, "Action, Dark, Long-running") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestRecommender_RetriesWithLinearBackoff(t *testing.T) {
	provider := &fakeProvider{results: []providerResult{
		{err: entity.ErrProvider},
		{content: "not json"},
		{content: threeRecs},
	}}
	r := NewRecommender(provider, &fakeResolver{}, nil, testHosts, RecommenderConfig{MaxAttempts: 3, BaseDelay: time.Second})

	var mu sync.Mutex
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	recs, err := r.Generate(context.Background(), entity.CategoryGame, entity.PreferenceAnswers{"Game", "Roguelike"}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(recs) != 3 || provider.calls() != 3 {
		t.Fatalf("recs = %d, calls = %d", len(recs), provider.calls())
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("delays = %v, want [1s 2s]", delays)
	}
	if strings.HasPrefix(provider.reqs[0].Messages[0].Content, "To ensure") {
		t.Error("empty context must not add the preamble")
	}
}

func TestRecommender_ExhaustedAttempts(t *testing.T) {
	provider := &fakeProvider{results: []providerResult{{content: `[{"title":"only one"}]`}}}
	r := NewRecommender(provider, &fakeResolver{}, nil, testHosts, RecommenderConfig{MaxAttempts: 3, BaseDelay: time.Second})
	r.sleep = noSleep

	_, err := r.Generate(context.Background(), entity.CategoryMovie, entity.PreferenceAnswers{"Movie", "Noir"}, "")
	if !errors.Is(err, entity.ErrRecommendationGenerationFailed) {
		t.Fatalf("err = %v, want ErrRecommendationGenerationFailed", err)
	}
	if !errors.Is(err, entity.ErrMalformedModelOutput) {
		t.Fatalf("err = %v, want the last cause to be wrapped", err)
	}
	if provider.calls() != 3 {
		t.Fatalf("calls = %d, want 3", provider.calls())
	}
}

func TestRecommender_CanceledWhileWaiting(t *testing.T) {
	provider := &fakeProvider{results: []providerResult{{err: entity.ErrProvider}}}
	r := NewRecommender(provider, &fakeResolver{}, nil, testHosts, RecommenderConfig{MaxAttempts: 3, BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Generate(ctx, entity.CategoryMovie, entity.PreferenceAnswers{"Movie", "Noir"}, "")
	if !errors.Is(err, entity.ErrRecommendationGenerationFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if provider.calls() != 1 {
		t.Fatalf("calls = %d, want 1", provider.calls())
	}
}

type fakeRecCache struct {
	hit    []entity.Recommendation
	stored chan []entity.Recommendation
}

func (f *fakeRecCache) Lookup(ctx context.Context, category entity.Category, preferences string) ([]entity.Recommendation, bool) {
	return f.hit, f.hit != nil
}

func (f *fakeRecCache) Store(ctx context.Context, category entity.Category, preferences string, recs []entity.Recommendation) error {
	f.stored <- recs
	return nil
}

func TestRecommender_CacheHitSkipsModel(t *testing.T) {
	cache := &fakeRecCache{hit: []entity.Recommendation{{Title: "A (Season 2)"}, {Title: "B"}, {Title: "C"}}}
	provider := &fakeProvider{}
	r := NewRecommender(provider, &fakeResolver{}, cache, testHosts, RecommenderConfig{})

	recs, err := r.Generate(context.Background(), entity.CategoryTVSeries, entity.PreferenceAnswers{"TV Series", "Comedy"}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.calls() != 0 {
		t.Fatal("provider must not be called on a cache hit")
	}
	if recs[0].Title != "A" || recs[0].Category != entity.CategoryTVSeries {
		t.Fatalf("recs[0] = %+v", recs[0])
	}
}

func TestRecommender_StoresGeneratedRecommendations(t *testing.T) {
	cache := &fakeRecCache{stored: make(chan []entity.Recommendation, 1)}
	provider := &fakeProvider{results: []providerResult{{content: threeRecs}}}
	r := NewRecommender(provider, &fakeResolver{}, cache, testHosts, RecommenderConfig{})

	if _, err := r.Generate(context.Background(), entity.CategoryGame, entity.PreferenceAnswers{"Game", "Indie"}, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	select {
	case recs := <-cache.stored:
		if len(recs) != 3 || recs[0].Category != entity.CategoryGame {
			t.Fatalf("stored = %+v", recs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recommendations were not stored")
	}
}
