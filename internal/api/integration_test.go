//go:build integration

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/facemark-labs/facemark/internal/database"
	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/ledger"
	"github.com/facemark-labs/facemark/internal/repository"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	// Start PostgreSQL container with pgvector
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "facemark_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Printf("Failed to start container: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate container: %v\n", err)
		}
	}()

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/facemark_test?sslmode=disable", host, port.Port())

	// Run migrations through the embedded migrator
	sqlDB, err := database.NewSQLDB(connStr)
	if err != nil {
		fmt.Printf("Failed to open migration connection: %v\n", err)
		os.Exit(1)
	}
	migrator, err := database.NewMigrator(sqlDB, "facemark_test")
	if err != nil {
		fmt.Printf("Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		os.Exit(1)
	}
	_ = migrator.Close()

	testDB, err = pgxpool.New(ctx, connStr)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close()

	code := m.Run()
	os.Exit(code)
}

func TestIntegration_HealthEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(logger, nil)
	router.Setup()

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := router.App().Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("status = %v, want ok", result["status"])
	}
}

func TestIntegration_NotFoundReturns404(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(logger, nil)
	router.Setup()

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	resp, err := router.App().Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if resp.StatusCode != 404 {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}

func TestIntegration_PgvectorExtension(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not available")
	}

	ctx := context.Background()

	var version string
	err := testDB.QueryRow(ctx, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	if err != nil {
		t.Fatalf("pgvector not available: %v", err)
	}

	t.Logf("pgvector version: %s", version)
}

func TestIntegration_AttendanceLedgerAgainstRealSchema(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not available")
	}

	ctx := context.Background()

	sessions := repository.NewSessionRepository(testDB)
	records := repository.NewAttendanceRepository(testDB)
	attendanceLedger := ledger.New(records)

	lecturerID := uuid.New()
	studentID := uuid.New()
	sectionID := uuid.New()

	session := &domain.Session{
		ID:        uuid.New(),
		SectionID: sectionID,
		StartsAt:  time.Now().UTC(),
		CreatedBy: lecturerID,
	}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	got, err := sessions.GetActive(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got.SectionID != sectionID {
		t.Errorf("SectionID = %v, want %v", got.SectionID, sectionID)
	}

	confidence := 0.87
	rec, err := attendanceLedger.Apply(ctx, domain.MarkRequest{
		SessionID:  session.ID,
		StudentID:  studentID,
		Status:     domain.StatusPresent,
		Confidence: &confidence,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Lecturer override updates the same row.
	override, err := attendanceLedger.Apply(ctx, domain.MarkRequest{
		SessionID:  session.ID,
		StudentID:  studentID,
		Status:     domain.StatusLate,
		ByLecturer: true,
	})
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if override.ID != rec.ID {
		t.Errorf("Override created a new row: %v != %v", override.ID, rec.ID)
	}
	if override.Status != domain.StatusLate {
		t.Errorf("Status = %v, want late", override.Status)
	}

	list, err := records.ListBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("records = %d, want 1", len(list))
	}

	if err := sessions.Close(ctx, session.ID, lecturerID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := sessions.GetActive(ctx, session.ID); err == nil {
		t.Error("GetActive after close should fail")
	}
}

func TestIntegration_UniqueIndexBacksLedger(t *testing.T) {
	if testDB == nil {
		t.Skip("Database not available")
	}

	ctx := context.Background()
	records := repository.NewAttendanceRepository(testDB)

	sessions := repository.NewSessionRepository(testDB)
	session := &domain.Session{
		ID:        uuid.New(),
		SectionID: uuid.New(),
		StartsAt:  time.Now().UTC(),
		CreatedBy: uuid.New(),
	}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	studentID := uuid.New()
	first := &domain.AttendanceRecord{
		SessionID: session.ID,
		StudentID: studentID,
		Status:    domain.StatusPresent,
		MarkedAt:  time.Now().UTC(),
	}
	if err := records.Insert(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := &domain.AttendanceRecord{
		SessionID: session.ID,
		StudentID: studentID,
		Status:    domain.StatusPresent,
		MarkedAt:  time.Now().UTC(),
	}
	err := records.Insert(ctx, dup)
	if err == nil {
		t.Fatal("Duplicate insert should fail")
	}
	if err != domain.ErrAlreadyMarked && !isAlreadyMarked(err) {
		t.Errorf("error = %v, want already marked", err)
	}
}

func isAlreadyMarked(err error) bool {
	appErr, ok := err.(*domain.AppError)
	return ok && appErr.Code == domain.ErrAlreadyMarked.Code
}
