package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facemark-labs/facemark/internal/domain"
)

type recordKey struct {
	sessionID uuid.UUID
	studentID uuid.UUID
}

// memRepo is a thread-safe in-memory Repository for exercising the policy
// rules without a database.
type memRepo struct {
	mu      sync.Mutex
	records map[recordKey]domain.AttendanceRecord
	inserts int
	updates int
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[recordKey]domain.AttendanceRecord)}
}

func (r *memRepo) Get(ctx context.Context, sessionID, studentID uuid.UUID) (*domain.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey{sessionID, studentID}]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	copied := rec
	return &copied, nil
}

func (r *memRepo) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{rec.SessionID, rec.StudentID}
	if _, ok := r.records[key]; ok {
		return domain.ErrAlreadyMarked
	}
	r.records[key] = *rec
	r.inserts++
	return nil
}

func (r *memRepo) Update(ctx context.Context, rec *domain.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{rec.SessionID, rec.StudentID}
	if _, ok := r.records[key]; !ok {
		return domain.ErrRecordNotFound
	}
	r.records[key] = *rec
	r.updates++
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func TestLedger_FirstAutomaticWriteInserts(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	rec, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID:  sessionID,
		StudentID:  studentID,
		Status:     domain.StatusPresent,
		Confidence: floatPtr(0.93),
	})

	require.NoError(t, err)
	assert.Equal(t, sessionID, rec.SessionID)
	assert.Equal(t, studentID, rec.StudentID)
	assert.Equal(t, domain.StatusPresent, rec.Status)
	assert.False(t, rec.MarkedByLecturer)
	assert.Equal(t, 1, repo.inserts)
}

func TestLedger_RepeatAutomaticWriteUpdatesInPlace(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	first, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusLate, Confidence: floatPtr(0.7),
	})
	require.NoError(t, err)

	second, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.95),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusPresent, second.Status)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, 1, repo.updates)
}

func TestLedger_LecturerOverridesAutomatic(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.8),
	})
	require.NoError(t, err)

	rec, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusAbsent, ByLecturer: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAbsent, rec.Status)
	assert.True(t, rec.MarkedByLecturer)
	assert.Nil(t, rec.Confidence)
}

func TestLedger_AutomaticNeverOverridesLecturer(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusAbsent, ByLecturer: true,
	})
	require.NoError(t, err)

	_, err = l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.99),
	})
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	// The lecturer's record stays untouched.
	rec, err := repo.Get(context.Background(), sessionID, studentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbsent, rec.Status)
	assert.True(t, rec.MarkedByLecturer)
}

func TestLedger_LecturerOverridesLecturer(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusAbsent, ByLecturer: true,
	})
	require.NoError(t, err)

	rec, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusLate, ByLecturer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLate, rec.Status)
}

func TestLedger_SelfServiceIsFirstWriteWins(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.9),
		SelfService: true,
	})
	require.NoError(t, err)

	// A second self-service attempt never overwrites, even its own mark.
	_, err = l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.99),
		SelfService: true,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyMarked)
}

func TestLedger_SelfServiceRejectedAfterAnyExistingMark(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent,
	})
	require.NoError(t, err)

	_, err = l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, SelfService: true,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyMarked)
}

func TestLedger_InvalidStatusRejected(t *testing.T) {
	l := New(newMemRepo())

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: uuid.New(), StudentID: uuid.New(),
		Status: "excused",
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestLedger_PhotoKeptWhenOverrideOmitsIt(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, VerificationPhoto: "s3://bucket/probe.jpg",
	})
	require.NoError(t, err)

	rec, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusLate, ByLecturer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/probe.jpg", rec.VerificationPhoto)
}

func TestLedger_ConcurrentSelfMarksProduceOneRecord(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Apply(context.Background(), domain.MarkRequest{
				SessionID: sessionID, StudentID: studentID,
				Status: domain.StatusPresent, SelfService: true,
			})
		}(i)
	}
	wg.Wait()

	var successes, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrAlreadyMarked):
			rejected++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, 0, repo.updates)
}

func TestLedger_ConcurrentAutomaticMarksUpdateOneRecord(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID, studentID := uuid.New(), uuid.New()

	// Concurrent automatic writers for one pair: exactly one inserts, the rest
	// serialize onto the update branch, and none fails.
	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := domain.StatusPresent
			if i%2 == 1 {
				status = domain.StatusLate
			}
			_, errs[i] = l.Apply(context.Background(), domain.MarkRequest{
				SessionID: sessionID, StudentID: studentID,
				Status: status, Confidence: floatPtr(0.8),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, attempts-1, repo.updates)

	rec, err := repo.Get(context.Background(), sessionID, studentID)
	require.NoError(t, err)
	assert.Contains(t, []domain.AttendanceStatus{domain.StatusPresent, domain.StatusLate}, rec.Status)
	assert.False(t, rec.MarkedByLecturer)
}

// raceRepo makes the first read miss even though the record exists, the view a
// second instance has after losing a cross-instance insert race.
type raceRepo struct {
	*memRepo
	misses int
}

func (r *raceRepo) Get(ctx context.Context, sessionID, studentID uuid.UUID) (*domain.AttendanceRecord, error) {
	if r.misses > 0 {
		r.misses--
		return nil, domain.ErrRecordNotFound
	}
	return r.memRepo.Get(ctx, sessionID, studentID)
}

func TestLedger_InsertRaceFallsBackToUpdate(t *testing.T) {
	mem := newMemRepo()
	sessionID, studentID := uuid.New(), uuid.New()

	// Another instance's automatic mark already landed in storage.
	require.NoError(t, mem.Insert(context.Background(), &domain.AttendanceRecord{
		ID: uuid.New(), SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusLate,
	}))

	l := New(&raceRepo{memRepo: mem, misses: 1})

	rec, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.9),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPresent, rec.Status)
	assert.Equal(t, 1, mem.inserts)
	assert.Equal(t, 1, mem.updates)
}

func TestLedger_InsertRaceSelfServiceStillRejected(t *testing.T) {
	mem := newMemRepo()
	sessionID, studentID := uuid.New(), uuid.New()

	require.NoError(t, mem.Insert(context.Background(), &domain.AttendanceRecord{
		ID: uuid.New(), SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent,
	}))

	l := New(&raceRepo{memRepo: mem, misses: 1})

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, SelfService: true,
	})

	require.ErrorIs(t, err, domain.ErrAlreadyMarked)
	assert.Equal(t, 0, mem.updates)
}

func TestLedger_InsertRaceStillRespectsLecturerAuthority(t *testing.T) {
	mem := newMemRepo()
	sessionID, studentID := uuid.New(), uuid.New()

	require.NoError(t, mem.Insert(context.Background(), &domain.AttendanceRecord{
		ID: uuid.New(), SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusAbsent, MarkedByLecturer: true,
	}))

	l := New(&raceRepo{memRepo: mem, misses: 1})

	_, err := l.Apply(context.Background(), domain.MarkRequest{
		SessionID: sessionID, StudentID: studentID,
		Status: domain.StatusPresent, Confidence: floatPtr(0.99),
	})

	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Equal(t, 0, mem.updates)
}

func TestLedger_DifferentPairsDoNotInterfere(t *testing.T) {
	repo := newMemRepo()
	l := New(repo)

	sessionID := uuid.New()

	const students = 16
	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Apply(context.Background(), domain.MarkRequest{
				SessionID: sessionID, StudentID: uuid.New(),
				Status: domain.StatusPresent, SelfService: true,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, students, repo.inserts)
}
