package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/facemark-labs/facemark/internal/api/middleware"
	"github.com/facemark-labs/facemark/internal/domain"
)

type MockAttendanceService struct {
	mock.Mock
}

func (m *MockAttendanceService) MarkByPhoto(ctx context.Context, sessionID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error) {
	args := m.Called(ctx, sessionID, img, photoRef)
	var result *domain.VerificationResult
	var record *domain.AttendanceRecord
	if args.Get(0) != nil {
		result = args.Get(0).(*domain.VerificationResult)
	}
	if args.Get(1) != nil {
		record = args.Get(1).(*domain.AttendanceRecord)
	}
	return result, record, args.Error(2)
}

func (m *MockAttendanceService) MarkSelf(ctx context.Context, sessionID, studentID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error) {
	args := m.Called(ctx, sessionID, studentID, img, photoRef)
	var result *domain.VerificationResult
	var record *domain.AttendanceRecord
	if args.Get(0) != nil {
		result = args.Get(0).(*domain.VerificationResult)
	}
	if args.Get(1) != nil {
		record = args.Get(1).(*domain.AttendanceRecord)
	}
	return result, record, args.Error(2)
}

func (m *MockAttendanceService) MarkManual(ctx context.Context, sessionID, studentID uuid.UUID, status domain.AttendanceStatus) (*domain.AttendanceRecord, error) {
	args := m.Called(ctx, sessionID, studentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceRecord), args.Error(1)
}

func (m *MockAttendanceService) SessionRecords(ctx context.Context, sessionID uuid.UUID) ([]domain.AttendanceRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttendanceRecord), args.Error(1)
}

func (m *MockAttendanceService) StudentHistory(ctx context.Context, studentID uuid.UUID) ([]domain.AttendanceRecord, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttendanceRecord), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// injectUser stores a fixed caller identity the way the auth middleware does.
func injectUser(userID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, userID)
		return c.Next()
	}
}

func newAttendanceApp(svc AttendanceService, userID uuid.UUID) *fiber.App {
	logger := testLogger()
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
	})
	h := NewAttendanceHandler(svc, logger)

	app.Use(injectUser(userID))
	app.Post("/v1/sessions/:session_id/attendance/photo", h.MarkByPhoto)
	app.Post("/v1/sessions/:session_id/attendance/self", h.MarkSelf)
	app.Post("/v1/sessions/:session_id/attendance", h.MarkManual)
	app.Get("/v1/sessions/:session_id/attendance", h.SessionRecords)
	app.Get("/v1/attendance/history", h.MyHistory)
	return app
}

// imageForm builds a multipart body with one image part.
func imageForm(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="probe.jpg"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestAttendanceHandler_MarkByPhoto(t *testing.T) {
	sessionID := uuid.New()
	studentID := uuid.New()

	t.Run("matched face creates a record", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkByPhoto", mock.Anything, sessionID, []byte("jpeg-bytes"), "").
			Return(
				&domain.VerificationResult{Success: true, StudentID: &studentID, Confidence: 0.9},
				&domain.AttendanceRecord{ID: uuid.New(), SessionID: sessionID, StudentID: studentID, Status: domain.StatusPresent},
				nil,
			)

		app := newAttendanceApp(svc, uuid.New())
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/photo", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var out MarkResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.NotNil(t, out.Record)
		assert.Equal(t, studentID, out.Record.StudentID)
		svc.AssertExpectations(t)
	})

	t.Run("unrecognized face returns verdict without record", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkByPhoto", mock.Anything, sessionID, mock.Anything, mock.Anything).
			Return(&domain.VerificationResult{Success: false, Error: "not recognized"}, nil, nil)

		app := newAttendanceApp(svc, uuid.New())
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/photo", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out MarkResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Nil(t, out.Record)
		require.NotNil(t, out.Verification)
		assert.False(t, out.Verification.Success)
	})

	t.Run("invalid session id", func(t *testing.T) {
		svc := new(MockAttendanceService)
		app := newAttendanceApp(svc, uuid.New())
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/not-a-uuid/attendance/photo", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		svc.AssertNotCalled(t, "MarkByPhoto", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejected image type", func(t *testing.T) {
		svc := new(MockAttendanceService)
		app := newAttendanceApp(svc, uuid.New())
		body, contentType := imageForm(t, "application/pdf", []byte("%PDF"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/photo", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestAttendanceHandler_MarkSelf(t *testing.T) {
	sessionID := uuid.New()
	callerID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkSelf", mock.Anything, sessionID, callerID, []byte("jpeg-bytes"), "").
			Return(
				&domain.VerificationResult{Success: true, StudentID: &callerID, Confidence: 0.95},
				&domain.AttendanceRecord{ID: uuid.New(), SessionID: sessionID, StudentID: callerID, Status: domain.StatusPresent},
				nil,
			)

		app := newAttendanceApp(svc, callerID)
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/self", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("already marked maps to conflict", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkSelf", mock.Anything, sessionID, callerID, mock.Anything, mock.Anything).
			Return(nil, nil, domain.ErrAlreadyMarked)

		app := newAttendanceApp(svc, callerID)
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/self", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("identity mismatch maps to forbidden", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkSelf", mock.Anything, sessionID, callerID, mock.Anything, mock.Anything).
			Return(&domain.VerificationResult{Success: true}, nil, domain.ErrIdentityMismatch)

		app := newAttendanceApp(svc, callerID)
		body, contentType := imageForm(t, "image/jpeg", []byte("jpeg-bytes"))

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance/self", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestAttendanceHandler_MarkManual(t *testing.T) {
	sessionID := uuid.New()
	studentID := uuid.New()

	t.Run("valid request", func(t *testing.T) {
		svc := new(MockAttendanceService)
		svc.On("MarkManual", mock.Anything, sessionID, studentID, domain.StatusLate).
			Return(&domain.AttendanceRecord{
				ID:               uuid.New(),
				SessionID:        sessionID,
				StudentID:        studentID,
				Status:           domain.StatusLate,
				MarkedByLecturer: true,
			}, nil)

		app := newAttendanceApp(svc, uuid.New())
		payload := `{"student_id":"` + studentID.String() + `","status":"late"}`

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var out MarkResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.NotNil(t, out.Record)
		assert.True(t, out.Record.MarkedByLecturer)
		svc.AssertExpectations(t)
	})

	t.Run("bad student id", func(t *testing.T) {
		svc := new(MockAttendanceService)
		app := newAttendanceApp(svc, uuid.New())

		req := httptest.NewRequest("POST", "/v1/sessions/"+sessionID.String()+"/attendance",
			strings.NewReader(`{"student_id":"nope","status":"present"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestAttendanceHandler_SessionRecords(t *testing.T) {
	sessionID := uuid.New()
	svc := new(MockAttendanceService)
	svc.On("SessionRecords", mock.Anything, sessionID).Return([]domain.AttendanceRecord{
		{SessionID: sessionID, Status: domain.StatusPresent},
	}, nil)

	app := newAttendanceApp(svc, uuid.New())
	req := httptest.NewRequest("GET", "/v1/sessions/"+sessionID.String()+"/attendance", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAttendanceHandler_MyHistory(t *testing.T) {
	callerID := uuid.New()
	svc := new(MockAttendanceService)
	svc.On("StudentHistory", mock.Anything, callerID).Return([]domain.AttendanceRecord{}, nil)

	app := newAttendanceApp(svc, callerID)
	req := httptest.NewRequest("GET", "/v1/attendance/history", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(nil)
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
