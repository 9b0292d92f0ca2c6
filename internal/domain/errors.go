package domain

import (
	"errors"
)

var (
	ErrMalformedToken          = errors.New("malformed token")
	ErrExpiredToken            = errors.New("expired token")
	ErrSessionMismatch         = errors.New("session mismatch")
	ErrSessionInactive         = errors.New("no active session")
	ErrSessionActive           = errors.New("session already active")
	ErrSessionChanged          = errors.New("session changed")
	ErrCameraUnavailable       = errors.New("camera unavailable")
	ErrNoCodeFound             = errors.New("no attendance code found")
	ErrOracleUnavailable       = errors.New("headcount oracle unavailable")
	ErrOracleMalformedResponse = errors.New("headcount oracle returned a malformed response")
	ErrStoreWrite              = errors.New("attendance store write failed")
	ErrNegativeCount           = errors.New("headcount must be non-negative")
	ErrInvalidImage            = errors.New("invalid image")
	ErrInvalidCredentials      = errors.New("invalid credentials")
)

// Messages shown on a successful scan.
const (
	MsgRecorded       = "Attendance Marked Successfully!"
	MsgAlreadyPresent = "Attendance already marked for this session."
)

// IsScanRejection reports whether err is a token rejection after which the
// attendee's scan flow resumes.
func IsScanRejection(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrSessionMismatch) ||
		errors.Is(err, ErrSessionInactive)
}

// UserMessage converts an error from the taxonomy into text for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedToken):
		return "This is not a valid attendance QR code."
	case errors.Is(err, ErrExpiredToken):
		return "This QR code has expired. Please scan the new one."
	case errors.Is(err, ErrSessionMismatch):
		return "This QR code belongs to a different or finished session."
	case errors.Is(err, ErrSessionInactive):
		return "No attendance session is running right now."
	case errors.Is(err, ErrSessionActive):
		return "An attendance session is already running."
	case errors.Is(err, ErrSessionChanged):
		return "The session changed while the photo was being counted. Please take a new one."
	case errors.Is(err, ErrInvalidImage):
		return "The uploaded image could not be read. Please send a JPEG or PNG photo."
	case errors.Is(err, ErrCameraUnavailable):
		return "Could not access the camera. Please check permissions."
	case errors.Is(err, ErrNoCodeFound):
		return "No attendance QR code was found in the image."
	case errors.Is(err, ErrOracleUnavailable):
		return "The headcount service is unavailable. Please try again."
	case errors.Is(err, ErrOracleMalformedResponse):
		return "The headcount service returned an unreadable answer. Please try again."
	case errors.Is(err, ErrNegativeCount):
		return "Headcount must be zero or more."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid ID or password."
	case errors.Is(err, ErrStoreWrite):
		return "Failed to record attendance. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
