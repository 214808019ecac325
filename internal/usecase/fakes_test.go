package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"zappy-core/internal/domain/entity"
)

type searchCall struct {
	Query     string
	MediaType entity.MediaType
	Limit     int
}

type fakeTitles struct {
	mu        sync.Mutex
	searches  []searchCall
	searchFn  func(call searchCall) ([]entity.CatalogItem, error)
	latest    map[entity.Category][]entity.CatalogItem
	latestErr error
}

func (f *fakeTitles) Search(ctx context.Context, query string, mediaType entity.MediaType, limit int) ([]entity.CatalogItem, error) {
	call := searchCall{Query: query, MediaType: mediaType, Limit: limit}
	f.mu.Lock()
	f.searches = append(f.searches, call)
	f.mu.Unlock()
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(call)
}

func (f *fakeTitles) Latest(ctx context.Context, category entity.Category) ([]entity.CatalogItem, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest[category], nil
}

func (f *fakeTitles) calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.searches...)
}

type fakeGames struct {
	search    []entity.GameItem
	searchErr error
	latest    []entity.GameItem
	latestErr error
}

func (f *fakeGames) Search(ctx context.Context, query string, limit int) ([]entity.GameItem, error) {
	return f.search, f.searchErr
}

func (f *fakeGames) Latest(ctx context.Context, pageSize int) ([]entity.GameItem, error) {
	return f.latest, f.latestErr
}

type providerResult struct {
	content string
	tokens  int
	err     error
}

// fakeProvider replays results in order; the last one repeats.
type fakeProvider struct {
	mu      sync.Mutex
	model   string
	results []providerResult
	reqs    []entity.AIRequest
}

func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Generate(ctx context.Context, req entity.AIRequest) (*entity.AIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if len(f.results) == 0 {
		return nil, errors.New("no result configured")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &entity.AIResponse{Content: r.content, TokenCount: r.tokens, Model: f.model}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeResolver struct {
	mu     sync.Mutex
	images map[string]string
	seen   []string
}

func (f *fakeResolver) ResolveImage(ctx context.Context, title string, mediaType entity.MediaType, category entity.Category) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, title)
	return f.images[title]
}

type fakeContexts struct {
	category string
	message  string
}

func (f *fakeContexts) CategoryContext(ctx context.Context, category entity.Category) string {
	return f.category
}

func (f *fakeContexts) MessageContext(ctx context.Context, query string) string {
	return f.message
}

type fakeContextCache struct {
	mu     sync.Mutex
	blocks map[entity.Category]string
	sets   int
}

func (f *fakeContextCache) Get(ctx context.Context, category entity.Category) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[category]
	return b, ok, nil
}

func (f *fakeContextCache) Set(ctx context.Context, category entity.Category, block string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocks == nil {
		f.blocks = make(map[entity.Category]string)
	}
	f.blocks[category] = block
	f.sets++
	return nil
}

type fakeExtractor struct{ title string }

func (f fakeExtractor) ExtractTitle(ctx context.Context, message string) string { return f.title }

type fakeLimiter struct {
	mu      sync.Mutex
	allowed bool
	used    map[string]int
}

func (f *fakeLimiter) CheckLimit(ctx context.Context, userID string) (bool, error) {
	return f.allowed, nil
}

func (f *fakeLimiter) Increment(ctx context.Context, userID string, tokens int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used == nil {
		f.used = make(map[string]int)
	}
	f.used[userID] += tokens
	return nil
}

// memoryStore is an in-memory SessionStore with the same generation checks as the SQLite store.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
	messages []entity.StoredMessage
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]entity.Session)}
}

func (m *memoryStore) CreateSession(ctx context.Context, s *entity.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryStore) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, entity.ErrResourceNotFound
	}
	s.Answers = s.Answers.Clone()
	s.Recommendations = append([]entity.Recommendation(nil), s.Recommendations...)
	return &s, nil
}

func (m *memoryStore) ListSessions(ctx context.Context, userID string, limit int) ([]*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) UpdateSession(ctx context.Context, s *entity.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return entity.ErrResourceNotFound
	}
	if cur.Generation != s.Generation {
		return entity.ErrStaleResult
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryStore) ResetSession(ctx context.Context, id string, generation int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok {
		return 0, entity.ErrResourceNotFound
	}
	if cur.Generation != generation {
		return cur.Generation, entity.ErrStaleResult
	}
	cur.Generation++
	cur.Answers = entity.PreferenceAnswers{string(cur.Category)}
	cur.Recommendations = nil
	m.sessions[id] = cur

	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.SessionID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return cur.Generation, nil
}

func (m *memoryStore) AppendMessage(ctx context.Context, msg *entity.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[msg.SessionID]
	if !ok {
		return entity.ErrResourceNotFound
	}
	if cur.Generation != msg.Generation {
		return entity.ErrStaleResult
	}
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memoryStore) AppendUserMessage(ctx context.Context, msg *entity.StoredMessage, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[msg.SessionID]
	if !ok {
		return entity.ErrResourceNotFound
	}
	if cur.Generation != msg.Generation {
		return entity.ErrStaleResult
	}
	n := 0
	for _, existing := range m.messages {
		if existing.SessionID == msg.SessionID && existing.Role == entity.RoleUser {
			n++
		}
	}
	if n >= limit {
		return entity.ErrQueryLimitReached
	}
	m.nextID++
	msg.ID = m.nextID
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memoryStore) ListMessages(ctx context.Context, id string) ([]entity.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.StoredMessage
	for _, msg := range m.messages {
		if msg.SessionID == id {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryStore) CountUserMessages(ctx context.Context, id string) (int, error) {
	msgs, _ := m.ListMessages(ctx, id)
	return countUserTurns(msgs), nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }
func (m *memoryStore) Close() error                   { return nil }

func noSleep(ctx context.Context, d time.Duration) error { return nil }
