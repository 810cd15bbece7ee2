package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/notify"
	"github.com/sakif/secret-santa/internal/pairing"
	"github.com/sakif/secret-santa/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// Using a fake (not a mock framework) keeps tests easy to read: you can see
// exactly what the fake does. A mutex makes it safe for the notification
// fan-out, which calls MarkNotified from several goroutines.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int
	participants map[string]*model.Participant
	pairings     []model.Pairing
	gifts        map[string]*model.Gift // keyed by giver
	settings     *model.Settings
	codes        map[string]model.LoginCode

	// set to a non-nil error to simulate a database failure
	upsertGiftErr error
}

var (
	_ repository.ParticipantRepository = (*fakeStore)(nil)
	_ repository.PairingRepository     = (*fakeStore)(nil)
	_ repository.GiftRepository        = (*fakeStore)(nil)
	_ repository.SettingsRepository    = (*fakeStore)(nil)
	_ repository.LoginCodeRepository   = (*fakeStore)(nil)
	_ repository.StatsRepository       = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: make(map[string]*model.Participant),
		gifts:        make(map[string]*model.Gift),
		codes:        make(map[string]model.LoginCode),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- participants ---

func (f *fakeStore) CreateParticipant(_ context.Context, p *model.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.participants {
		if existing.Email == p.Email {
			return apperror.Conflict("participant", p.Email)
		}
	}
	if p.ID == "" {
		p.ID = f.id("p")
	}
	cp := *p
	f.participants[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetParticipant(_ context.Context, id string) (*model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return nil, apperror.NotFound("participant", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetParticipantByEmail(_ context.Context, email string) (*model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("participant", email)
}

func (f *fakeStore) ListParticipants(_ context.Context) ([]model.Participant, error) {
	return f.list(false), nil
}

func (f *fakeStore) ListActiveParticipants(_ context.Context) ([]model.Participant, error) {
	return f.list(true), nil
}

func (f *fakeStore) list(activeOnly bool) []model.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Participant
	for _, p := range f.participants {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeStore) CountActiveParticipants(ctx context.Context) (int, error) {
	return len(f.list(true)), nil
}

func (f *fakeStore) UpdateParticipant(_ context.Context, id string, upd repository.ParticipantUpdate) (*model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return nil, apperror.NotFound("participant", id)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.Department != nil {
		p.Department = *upd.Department
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return apperror.NotFound("participant", id)
	}
	p.HasLoggedIn = true
	p.LastLogin = &at
	return nil
}

func (f *fakeStore) MarkRevealed(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return false, apperror.NotFound("participant", id)
	}
	if p.HasRevealed {
		return false, nil
	}
	p.HasRevealed = true
	p.RevealedAt = &at
	return true, nil
}

// --- pairings ---

func (f *fakeStore) InsertAll(_ context.Context, edges []pairing.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(edges, time.Now())
}

func (f *fakeStore) insertLocked(edges []pairing.Edge, at time.Time) error {
	givers := make(map[string]bool)
	receivers := make(map[string]bool)
	for _, p := range f.pairings {
		givers[p.GiverID] = true
		receivers[p.ReceiverID] = true
	}
	for _, e := range edges {
		if givers[e.GiverID] {
			return apperror.ErrDuplicateGiver
		}
		if receivers[e.ReceiverID] {
			return apperror.ErrDuplicateReceiver
		}
		givers[e.GiverID] = true
		receivers[e.ReceiverID] = true
	}
	for _, e := range edges {
		f.pairings = append(f.pairings, model.Pairing{
			ID: f.id("pair"), GiverID: e.GiverID, ReceiverID: e.ReceiverID, CreatedAt: at,
		})
	}
	return nil
}

func (f *fakeStore) CreateGeneration(_ context.Context, edges []pairing.Edge, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return errors.New("settings row missing")
	}
	if f.settings.PairingLocked {
		return apperror.ErrPairingLocked
	}
	if len(f.pairings) > 0 {
		return apperror.ErrPairingsExist
	}
	if err := f.insertLocked(edges, at); err != nil {
		return err
	}
	f.settings.PairingLocked = true
	f.settings.PairingGeneratedAt = &at
	return nil
}

func (f *fakeStore) ResetGeneration(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairings = nil
	if f.settings != nil {
		f.settings.PairingLocked = false
		f.settings.PairingGeneratedAt = nil
	}
	return nil
}

func (f *fakeStore) FindByGiver(_ context.Context, giverID string) (*model.Pairing, error) {
	return f.find(func(p model.Pairing) bool { return p.GiverID == giverID }, giverID)
}

func (f *fakeStore) FindByReceiver(_ context.Context, receiverID string) (*model.Pairing, error) {
	return f.find(func(p model.Pairing) bool { return p.ReceiverID == receiverID }, receiverID)
}

func (f *fakeStore) find(match func(model.Pairing) bool, id string) (*model.Pairing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pairings {
		if match(p) {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("pairing", id)
}

func (f *fakeStore) ListPairings(_ context.Context) ([]model.Pairing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Pairing(nil), f.pairings...), nil
}

func (f *fakeStore) ListPairingDetails(_ context.Context) ([]model.PairingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.PairingDetail, 0, len(f.pairings))
	for _, p := range f.pairings {
		out = append(out, model.PairingDetail{
			ID:         p.ID,
			Giver:      f.participants[p.GiverID].Identity(),
			Receiver:   f.participants[p.ReceiverID].Identity(),
			Notified:   p.Notified,
			NotifiedAt: p.NotifiedAt,
			CreatedAt:  p.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Giver.Name < out[j].Giver.Name })
	return out, nil
}

func (f *fakeStore) CountPairings(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pairings), nil
}

func (f *fakeStore) MarkNotified(_ context.Context, giverID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pairings {
		if f.pairings[i].GiverID == giverID {
			f.pairings[i].Notified = true
			f.pairings[i].NotifiedAt = &at
			return nil
		}
	}
	return apperror.NotFound("pairing", giverID)
}

// --- gifts ---

func (f *fakeStore) UpsertGift(_ context.Context, g *model.Gift) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertGiftErr != nil {
		return false, f.upsertGiftErr
	}
	now := time.Now()
	g.SubmittedAt = now
	g.UpdatedAt = now
	if existing, ok := f.gifts[g.GiverID]; ok {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
		cp := *g
		f.gifts[g.GiverID] = &cp
		return false, nil
	}
	g.ID = f.id("gift")
	g.CreatedAt = now
	cp := *g
	f.gifts[g.GiverID] = &cp
	return true, nil
}

func (f *fakeStore) GetGiftByGiver(_ context.Context, giverID string) (*model.Gift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gifts[giverID]
	if !ok {
		return nil, apperror.NotFound("gift", giverID)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) DeleteGiftByGiver(_ context.Context, giverID string) (*model.Gift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gifts[giverID]
	if !ok {
		return nil, apperror.NotFound("gift", giverID)
	}
	delete(f.gifts, giverID)
	return g, nil
}

func (f *fakeStore) ListGiftDetails(_ context.Context) ([]model.GiftDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.GiftDetail
	for _, g := range f.gifts {
		out = append(out, model.GiftDetail{Gift: *g, Giver: f.participants[g.GiverID].Identity()})
	}
	return out, nil
}

func (f *fakeStore) CountGifts(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gifts), nil
}

// --- settings ---

func (f *fakeStore) GetOrCreateSettings(_ context.Context, defaults model.Settings) (*model.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		cp := defaults
		f.settings = &cp
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeStore) SaveSettings(_ context.Context, s *model.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return errors.New("settings row missing")
	}
	// The pairing lock only moves through CreateGeneration/ResetGeneration.
	locked, at := f.settings.PairingLocked, f.settings.PairingGeneratedAt
	cp := *s
	cp.PairingLocked, cp.PairingGeneratedAt = locked, at
	f.settings = &cp
	return nil
}

// --- login codes ---

func (f *fakeStore) SaveLoginCode(_ context.Context, code model.LoginCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code.Attempts = 0
	f.codes[code.ParticipantID] = code
	return nil
}

func (f *fakeStore) GetLoginCode(_ context.Context, participantID string) (*model.LoginCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[participantID]
	if !ok {
		return nil, apperror.NotFound("login code", participantID)
	}
	return &c, nil
}

func (f *fakeStore) IncrementLoginCodeAttempts(_ context.Context, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[participantID]
	if !ok {
		return apperror.NotFound("login code", participantID)
	}
	c.Attempts++
	f.codes[participantID] = c
	return nil
}

func (f *fakeStore) DeleteLoginCode(_ context.Context, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.codes, participantID)
	return nil
}

func (f *fakeStore) ConsumeLoginCode(_ context.Context, participantID, codeHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[participantID]
	if !ok || c.CodeHash != codeHash {
		return false, nil
	}
	delete(f.codes, participantID)
	return true, nil
}

// --- stats ---

func (f *fakeStore) Stats(_ context.Context) (repository.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := repository.Stats{Pairings: len(f.pairings), Gifts: len(f.gifts)}
	for _, p := range f.participants {
		if !p.Active {
			continue
		}
		s.ActiveParticipants++
		if p.HasRevealed {
			s.Revealed++
		}
		if p.HasLoggedIn {
			s.LoggedIn++
		}
	}
	return s, nil
}

// sentMail is one captured notification.
type sentMail struct {
	To   string
	Kind notify.Kind
	Data notify.Data
}

// fakeNotifier records every send. failFor makes sends to that address fail.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]bool
}

func (n *fakeNotifier) Notify(_ context.Context, to string, kind notify.Kind, data notify.Data) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, sentMail{To: to, Kind: kind, Data: data})
	return nil
}

func (n *fakeNotifier) mails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

// fakeImages stores uploads in a map.
type fakeImages struct {
	mu      sync.Mutex
	next    int
	files   map[string]string
	saveErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{files: make(map[string]string)}
}

func (i *fakeImages) Save(_ context.Context, r io.Reader) (string, error) {
	if i.saveErr != nil {
		return "", i.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.next++
	ref := fmt.Sprintf("/uploads/gifts/img-%d.png", i.next)
	i.files[ref] = string(b)
	return ref, nil
}

func (i *fakeImages) Delete(_ context.Context, ref string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.files, ref)
	return nil
}

func (i *fakeImages) has(ref string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.files[ref]
	return ok
}

// testLogger discards everything below Error so test output stays readable.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testRevealDate = time.Date(2026, time.December, 20, 17, 0, 0, 0, time.UTC)

// env wires every service to one fakeStore.
type env struct {
	store        *fakeStore
	mail         *fakeNotifier
	images       *fakeImages
	settings     *SettingsService
	participants *ParticipantService
	pairings     *PairingService
	gifts        *GiftService
	reveal       *RevealService
	stats        *StatsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	mail := &fakeNotifier{}
	images := newFakeImages()
	logger := testLogger()

	settings := NewSettingsService(store, SettingsDefaults{RevealDate: testRevealDate, MaxParticipants: 30}, logger)
	return &env{
		store:        store,
		mail:         mail,
		images:       images,
		settings:     settings,
		participants: NewParticipantService(store, settings, logger),
		pairings: NewPairingService(PairingDeps{
			Participants: store,
			Pairings:     store,
			Gifts:        store,
			Settings:     settings,
			Notifier:     mail,
			AppURL:       "http://santa.test",
			Logger:       logger,
		}),
		gifts:  NewGiftService(store, store, settings, images, logger),
		reveal: NewRevealService(store, store, store, settings, logger),
		stats:  NewStatsService(store, settings),
	}
}

// addPeople registers one active participant per name, with the name as ID.
func (e *env) addPeople(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		err := e.store.CreateParticipant(context.Background(), &model.Participant{
			ID:     n,
			Name:   n,
			Email:  strings.ToLower(n) + "@example.com",
			Role:   model.RoleParticipant,
			Active: true,
		})
		if err != nil {
			t.Fatalf("creating %s: %v", n, err)
		}
	}
}

// generate runs a generation and fails the test on error.
func (e *env) generate(t *testing.T) *GenerateResult {
	t.Helper()
	res, err := e.pairings.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return res
}

func (e *env) unlockReveal(t *testing.T) {
	t.Helper()
	if _, err := e.settings.SetRevealLocked(context.Background(), false); err != nil {
		t.Fatalf("SetRevealLocked(false) error = %v", err)
	}
}
