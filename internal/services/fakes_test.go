package services

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/dinehub/leaderboard-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var errSimulatedWrite = errors.New("simulated write failure")

// In-memory repository fakes. The cycle fake enforces the same CAS semantics
// as the mongo implementation, under a mutex, so the concurrency tests
// exercise the real race behaviour.

type fakeCycleRepo struct {
	mu          sync.Mutex
	cycles      map[primitive.ObjectID]*models.Cycle
	finalizeErr error
}

func newFakeCycleRepo() *fakeCycleRepo {
	return &fakeCycleRepo{cycles: make(map[primitive.ObjectID]*models.Cycle)}
}

func copyCycle(c *models.Cycle) *models.Cycle {
	cp := *c
	return &cp
}

func (r *fakeCycleRepo) Create(ctx context.Context, cycle *models.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycle.ID = primitive.NewObjectID()
	cycle.CreatedAt = time.Now()
	cycle.UpdatedAt = time.Now()
	r.cycles[cycle.ID] = copyCycle(cycle)
	return nil
}

func (r *fakeCycleRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycle, ok := r.cycles[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return copyCycle(cycle), nil
}

func (r *fakeCycleRepo) FindByStatuses(ctx context.Context, statuses []models.CycleStatus) ([]*models.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Cycle
	for _, c := range r.cycles {
		for _, s := range statuses {
			if c.Status == s {
				out = append(out, copyCycle(c))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *fakeCycleRepo) FindAll(ctx context.Context, status models.CycleStatus, page, limit int) ([]*models.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Cycle
	for _, c := range r.cycles {
		if status == "" || c.Status == status {
			out = append(out, copyCycle(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *fakeCycleRepo) ReplaceGuarded(ctx context.Context, cycle *models.Cycle, expected models.CycleStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.cycles[cycle.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	cycle.UpdatedAt = time.Now()
	r.cycles[cycle.ID] = copyCycle(cycle)
	return true, nil
}

func (r *fakeCycleRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.CycleStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycle, ok := r.cycles[id]
	if !ok || cycle.Status != from {
		return false, nil
	}
	cycle.Status = to
	cycle.UpdatedAt = time.Now()
	if to == models.CycleStatusCancelled {
		cycle.CancelledAt = time.Now()
	}
	return true, nil
}

func (r *fakeCycleRepo) FinalizeCompletion(ctx context.Context, id primitive.ObjectID, endDate, completedAt time.Time, numWinners, totalParticipants int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizeErr != nil {
		return false, r.finalizeErr
	}
	cycle, ok := r.cycles[id]
	if !ok || cycle.Status != models.CycleStatusCompleting {
		return false, nil
	}
	cycle.Status = models.CycleStatusCompleted
	cycle.EndDate = endDate
	cycle.CompletedAt = completedAt
	cycle.NumWinners = numWinners
	cycle.TotalParticipants = totalParticipants
	cycle.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeCycleRepo) DeleteFrom(ctx context.Context, id primitive.ObjectID, from models.CycleStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycle, ok := r.cycles[id]
	if !ok || cycle.Status != from {
		return false, nil
	}
	delete(r.cycles, id)
	return true, nil
}

func (r *fakeCycleRepo) Count(ctx context.Context, status models.CycleStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.cycles {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

// statusOf reads the current status without the service layer
func (r *fakeCycleRepo) statusOf(id primitive.ObjectID) models.CycleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cycles[id]; ok {
		return c.Status
	}
	return ""
}

// touch backdates UpdatedAt, for stale-claim tests
func (r *fakeCycleRepo) touch(id primitive.ObjectID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cycles[id]; ok {
		c.UpdatedAt = at
	}
}

type fakeParticipantRepo struct {
	mu         sync.Mutex
	rows       map[primitive.ObjectID][]*models.Participant
	replaceErr error
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{rows: make(map[primitive.ObjectID][]*models.Participant)}
}

func (r *fakeParticipantRepo) ReplaceForCycle(ctx context.Context, cycleID primitive.ObjectID, participants []*models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	rows := make([]*models.Participant, len(participants))
	copy(rows, participants)
	r.rows[cycleID] = rows
	return nil
}

func (r *fakeParticipantRepo) FindByCycleID(ctx context.Context, cycleID primitive.ObjectID, page, limit int) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]*models.Participant, len(r.rows[cycleID]))
	copy(rows, r.rows[cycleID])
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		if !rows[i].FirstActivityAt.Equal(rows[j].FirstActivityAt) {
			return rows[i].FirstActivityAt.Before(rows[j].FirstActivityAt)
		}
		return rows[i].UserID.Hex() < rows[j].UserID.Hex()
	})
	start := (page - 1) * limit
	if start >= len(rows) {
		return []*models.Participant{}, nil
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (r *fakeParticipantRepo) DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, cycleID)
	return nil
}

func (r *fakeParticipantRepo) CountByCycleID(ctx context.Context, cycleID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows[cycleID])), nil
}

type fakeWinnerRepo struct {
	mu           sync.Mutex
	winners      []*models.Winner
	insertCalls  int
	createErr    error
	deleteErr    error
	failCycleIDs map[primitive.ObjectID]bool
}

func newFakeWinnerRepo() *fakeWinnerRepo {
	return &fakeWinnerRepo{failCycleIDs: make(map[primitive.ObjectID]bool)}
}

func (r *fakeWinnerRepo) CreateMany(ctx context.Context, winners []*models.Winner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if len(winners) > 0 && r.failCycleIDs[winners[0].CycleID] {
		return errSimulatedWrite
	}
	r.insertCalls++
	for _, w := range winners {
		w.ID = primitive.NewObjectID()
		w.CreatedAt = time.Now()
		cp := *w
		r.winners = append(r.winners, &cp)
	}
	return nil
}

func (r *fakeWinnerRepo) FindByCycleID(ctx context.Context, cycleID primitive.ObjectID) ([]*models.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Winner{}
	for _, w := range r.winners {
		if w.CycleID == cycleID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *fakeWinnerRepo) FindByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Winner{}
	for _, w := range r.winners {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeWinnerRepo) DeleteByCycleID(ctx context.Context, cycleID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	kept := r.winners[:0]
	for _, w := range r.winners {
		if w.CycleID != cycleID {
			kept = append(kept, w)
		}
	}
	r.winners = kept
	return nil
}

func (r *fakeWinnerRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.winners)), nil
}

func (r *fakeWinnerRepo) inserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertCalls
}

type fakeLedger struct {
	mu     sync.Mutex
	totals []*models.LedgerTotal
	err    error
}

func (l *fakeLedger) TotalsByWindow(ctx context.Context, start, end time.Time) ([]*models.LedgerTotal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]*models.LedgerTotal, len(l.totals))
	copy(out, l.totals)
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*models.SystemConfig
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[string]*models.SystemConfig)}
}

func (r *fakeConfigRepo) FindByKey(ctx context.Context, key string) (*models.SystemConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[key]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConfigRepo) UpsertByKey(ctx context.Context, key string, value interface{}, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[key] = &models.SystemConfig{Key: key, Value: value, Description: description}
	return nil
}

func (r *fakeConfigRepo) FindAll(ctx context.Context) ([]*models.SystemConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.SystemConfig{}
	for _, c := range r.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// testEnv bundles a service with its fakes and a controllable clock
type testEnv struct {
	cycleRepo       *fakeCycleRepo
	participantRepo *fakeParticipantRepo
	winnerRepo      *fakeWinnerRepo
	ledger          *fakeLedger
	userRepo        *fakeUserRepo
	configRepo      *fakeConfigRepo
	clock           *testClock
	service         *CycleServiceImpl
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestEnv(now time.Time, seed int64) *testEnv {
	env := &testEnv{
		cycleRepo:       newFakeCycleRepo(),
		participantRepo: newFakeParticipantRepo(),
		winnerRepo:      newFakeWinnerRepo(),
		ledger:          &fakeLedger{},
		userRepo:        newFakeUserRepo(),
		configRepo:      newFakeConfigRepo(),
		clock:           &testClock{now: now},
	}
	env.service = NewCycleService(
		env.cycleRepo,
		env.participantRepo,
		env.winnerRepo,
		env.ledger,
		env.userRepo,
		env.configRepo,
		env.clock.Now,
		rand.New(rand.NewSource(seed)),
	)
	return env
}
