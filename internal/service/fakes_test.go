package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/ranking"
	"github.com/retroarcade/hiscore/internal/repository"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for every repository.
type memStore struct {
	mu       sync.Mutex
	players  map[uuid.UUID]domain.Player
	games    map[uuid.UUID]domain.Game
	subs     map[uuid.UUID]domain.ScoreSubmission
	offers   map[uuid.UUID]domain.Offer
	admins   map[uuid.UUID]domain.Admin
	settings domain.AppConfig
	events   []domain.OutboxDraft
	attempts []loginAttempt
	clock    time.Time

	failCreate error
	// afterListUntriaged runs once the sweeper has read its batch.
	afterListUntriaged func()
}

func newMemStore() *memStore {
	return &memStore{
		players: make(map[uuid.UUID]domain.Player),
		games:   make(map[uuid.UUID]domain.Game),
		subs:    make(map[uuid.UUID]domain.ScoreSubmission),
		offers:  make(map[uuid.UUID]domain.Offer),
		admins:  make(map[uuid.UUID]domain.Admin),
		clock:   time.Date(2026, 3, 6, 20, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp. Caller holds mu.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) InTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	return fn(nil)
}

func (m *memStore) addPlayer(name string) domain.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Player{ID: uuid.New(), Name: name, GroupSize: 1}
	m.players[p.ID] = p
	return p
}

func (m *memStore) addGame(name string, active bool) domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := domain.Game{ID: uuid.New(), Name: name, Slug: GameSlug(name), Active: active}
	m.games[g.ID] = g
	return g
}

func (m *memStore) submission(id uuid.UUID) (domain.ScoreSubmission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	return s, ok
}

func (m *memStore) submissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *memStore) eventTypes() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EventType
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

type playerRepo struct{ *memStore }

func (r playerRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r playerRepo) FindByName(_ context.Context, _ repository.DBTX, name string) (*domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r playerRepo) List(_ context.Context, _ repository.DBTX) ([]domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Player
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r playerRepo) Create(_ context.Context, _ repository.DBTX, p *domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.CreatedAt = r.tick()
	p.UpdatedAt = p.CreatedAt
	r.players[p.ID] = *p
	return nil
}

func (r playerRepo) Update(_ context.Context, _ repository.DBTX, p *domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.ID]; !ok {
		return domain.ErrNotFound("player", p.ID.String())
	}
	r.players[p.ID] = *p
	return nil
}

func (r playerRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	delete(r.players, id)
	return ok, nil
}

type gameRepo struct{ *memStore }

func (r gameRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (r gameRepo) FindByNameOrSlug(_ context.Context, _ repository.DBTX, name, slug string) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		if strings.EqualFold(g.Name, name) || g.Slug == slug {
			return &g, nil
		}
	}
	return nil, nil
}

func (r gameRepo) List(_ context.Context, _ repository.DBTX, activeOnly bool) ([]domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Game
	for _, g := range r.games {
		if !activeOnly || g.Active {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r gameRepo) Create(_ context.Context, _ repository.DBTX, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.games {
		if existing.Slug == g.Slug {
			return domain.ErrConflict("a game with that name already exists")
		}
	}
	r.games[g.ID] = *g
	return nil
}

func (r gameRepo) Update(_ context.Context, _ repository.DBTX, g *domain.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID] = *g
	return nil
}

func (r gameRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.games[id]
	delete(r.games, id)
	return ok, nil
}

type submissionRepo struct{ *memStore }

func (r submissionRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r submissionRepo) ListForPair(_ context.Context, _ repository.DBTX, playerID, gameID uuid.UUID) ([]domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScoreSubmission
	for _, s := range r.subs {
		if s.PlayerID == playerID && s.GameID == gameID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r submissionRepo) List(_ context.Context, _ repository.DBTX, f domain.SubmissionFilter) ([]domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScoreSubmission
	for _, s := range r.subs {
		switch {
		case f.Status != "" && s.Status != f.Status:
		case f.ExcludeRejected && s.Status == domain.StatusRejected:
		case f.PlayerID != nil && s.PlayerID != *f.PlayerID:
		case f.GameID != nil && s.GameID != *f.GameID:
		case f.EventID != "" && s.EventID != f.EventID:
		case f.Suspicious != nil && (s.IsSuspicious != nil && *s.IsSuspicious) != *f.Suspicious:
		default:
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (r submissionRepo) Create(_ context.Context, _ repository.DBTX, s *domain.ScoreSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.SubmittedAt = r.tick()
	s.UpdatedAt = s.SubmittedAt
	r.subs[s.ID] = *s
	return nil
}

func (r submissionRepo) ApplyTriage(_ context.Context, _ repository.DBTX, id uuid.UUID, t domain.TriageResult) (*domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || (t.IfUntriaged && s.TriagedAt != nil) {
		return nil, nil
	}
	suspicious, reason := t.IsSuspicious, t.Reason
	s.IsSuspicious = &suspicious
	s.SuspicionReason = &reason
	s.FraudConfidence = t.Confidence
	if t.SuggestedAction != "" {
		action := t.SuggestedAction
		s.SuggestedAction = &action
	}
	if t.Reject && s.Status == domain.StatusPending {
		s.Status = domain.StatusRejected
	}
	now := r.tick()
	s.TriagedAt = &now
	r.subs[id] = s
	return &s, nil
}

func (r submissionRepo) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, status domain.SubmissionStatus) (*domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	s.Status = status
	r.subs[id] = s
	return &s, nil
}

func (r submissionRepo) UpdateScore(_ context.Context, _ repository.DBTX, id uuid.UUID, score int64) (*domain.ScoreSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	s.Score = score
	r.subs[id] = s
	return &s, nil
}

func (r submissionRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	delete(r.subs, id)
	return ok, nil
}

func (r submissionRepo) ListUntriaged(_ context.Context, _ repository.DBTX, cutoff time.Time, limit int) ([]domain.ScoreSubmission, error) {
	r.mu.Lock()
	var out []domain.ScoreSubmission
	for _, s := range r.subs {
		if s.Status == domain.StatusPending && s.TriagedAt == nil && s.SubmittedAt.Before(cutoff) && len(out) < limit {
			out = append(out, s)
		}
	}
	hook := r.afterListUntriaged
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

type offerRepo struct{ *memStore }

func (r offerRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.offers[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (r offerRepo) List(_ context.Context, _ repository.DBTX, activeOnly bool) ([]domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Offer
	for _, o := range r.offers {
		if !activeOnly || o.Active {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r offerRepo) Create(_ context.Context, _ repository.DBTX, o *domain.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = *o
	return nil
}

func (r offerRepo) Update(_ context.Context, _ repository.DBTX, o *domain.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[o.ID]; !ok {
		return domain.ErrNotFound("offer", o.ID.String())
	}
	r.offers[o.ID] = *o
	return nil
}

func (r offerRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.offers[id]
	delete(r.offers, id)
	return ok, nil
}

type settingsRepo struct{ *memStore }

func (r settingsRepo) Get(_ context.Context, _ repository.DBTX) (*domain.AppConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.settings
	return &c, nil
}

func (r settingsRepo) Save(_ context.Context, _ repository.DBTX, c *domain.AppConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.UpdatedAt = r.tick()
	r.settings = *c
	return nil
}

type adminRepo struct{ *memStore }

func (r adminRepo) FindByEmail(_ context.Context, _ repository.DBTX, email string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r adminRepo) IsMember(_ context.Context, _ repository.DBTX, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	return ok && a.Active, nil
}

func (r adminRepo) Upsert(_ context.Context, _ repository.DBTX, a *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.admins {
		if strings.EqualFold(existing.Email, a.Email) {
			a.ID = id
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Active = true
	r.admins[a.ID] = *a
	return nil
}

type loginAttempt struct {
	email   string
	ip      string
	success bool
	at      time.Time
}

// attemptRepo stamps attempts with the store clock, which tests move by hand.
type attemptRepo struct{ *memStore }

func (r attemptRepo) Record(_ context.Context, _ repository.DBTX, email, ip string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, loginAttempt{email: strings.ToLower(email), ip: ip, success: success, at: r.clock})
	return nil
}

func (r attemptRepo) CountFailures(_ context.Context, _ repository.DBTX, email string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.attempts {
		if a.email == strings.ToLower(email) && !a.success && a.at.After(since) {
			n++
		}
	}
	return n, nil
}

func (r attemptRepo) DeleteBefore(_ context.Context, _ repository.DBTX, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.attempts[:0]
	for _, a := range r.attempts {
		if !a.at.Before(before) {
			kept = append(kept, a)
		}
	}
	n := int64(len(r.attempts) - len(kept))
	r.attempts = kept
	return n, nil
}

type outboxRepo struct{ *memStore }

func (r outboxRepo) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, d)
	return nil
}

func (r outboxRepo) FetchUnpublished(context.Context, repository.DBTX, int) ([]domain.OutboxRow, error) {
	return nil, nil
}

func (r outboxRepo) MarkPublished(context.Context, repository.DBTX, []int64) error {
	return nil
}

// fakeStore records uploads and deletions.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
	block   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.putErr != nil {
		return "", s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://cdn.arcade.test/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeScorer returns a canned assessment or error and records requests.
type fakeScorer struct {
	mu       sync.Mutex
	requests []domain.FraudCheckRequest
	result   *domain.FraudAssessment
	err      error
	block    bool
	// onCall runs before the scorer answers.
	onCall func()
}

func (f *fakeScorer) ScoreFraud(ctx context.Context, req domain.FraudCheckRequest) (*domain.FraudAssessment, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

func (f *fakeScorer) calls() []domain.FraudCheckRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FraudCheckRequest(nil), f.requests...)
}

type fakeFetcher struct {
	data        []byte
	contentType string
	err         error
	urls        []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.contentType, nil
}

type fakeVerifier struct {
	requests []domain.VerificationRequest
	verdict  *domain.VerificationVerdict
	err      error
}

func (f *fakeVerifier) VerifyImage(_ context.Context, req domain.VerificationRequest) (*domain.VerificationVerdict, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	out := *f.verdict
	return &out, nil
}

// fakeCache is an in-memory BoardCache.
type fakeCache struct {
	mu          sync.Mutex
	boards      map[string][]ranking.GameBoard
	invalidated int
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{boards: make(map[string][]ranking.GameBoard)}
}

func (c *fakeCache) Get(_ context.Context, eventID string) ([]ranking.GameBoard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.boards[eventID]
	return b, ok, nil
}

func (c *fakeCache) Set(_ context.Context, eventID string, boards []ranking.GameBoard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[eventID] = boards
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards = make(map[string][]ranking.GameBoard)
	c.invalidated++
	return nil
}

func (c *fakeCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

var errBoom = errors.New("boom")

func newBreaker() *guard.CircuitBreaker {
	return guard.NewCircuitBreaker(100, time.Minute)
}
