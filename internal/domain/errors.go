package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so errors.Is works across WithError copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing credentials",
		StatusCode: 401,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access denied",
		StatusCode: 403,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No clear face detected in the image",
		StatusCode: 422,
	}

	ErrLowQualityImage = &AppError{
		Code:       "LOW_QUALITY_IMAGE",
		Message:    "Image quality too low for reliable recognition",
		StatusCode: 422,
	}

	ErrFaceNotRecognized = &AppError{
		Code:       "FACE_NOT_RECOGNIZED",
		Message:    "not recognized",
		StatusCode: 422,
	}

	ErrEncodingNotFound = &AppError{
		Code:       "ENCODING_NOT_FOUND",
		Message:    "No face encoding registered, please register your face first",
		StatusCode: 404,
	}

	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Session not found or inactive",
		StatusCode: 404,
	}

	ErrNotEnrolled = &AppError{
		Code:       "NOT_ENROLLED",
		Message:    "Student is not enrolled in this section",
		StatusCode: 403,
	}

	ErrRecordNotFound = &AppError{
		Code:       "RECORD_NOT_FOUND",
		Message:    "Attendance record not found",
		StatusCode: 404,
	}

	ErrAlreadyMarked = &AppError{
		Code:       "ALREADY_MARKED",
		Message:    "already marked",
		StatusCode: 409,
	}

	ErrAlreadyFinalized = &AppError{
		Code:       "ALREADY_FINALIZED_BY_LECTURER",
		Message:    "already finalized by lecturer",
		StatusCode: 409,
	}

	ErrIdentityMismatch = &AppError{
		Code:       "IDENTITY_MISMATCH",
		Message:    "Verified face does not belong to the requesting student",
		StatusCode: 403,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many verification attempts, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrInvalidThreshold = &AppError{
		Code:       "INVALID_THRESHOLD",
		Message:    "Threshold must be between 0 and 1",
		StatusCode: 422,
	}
)
