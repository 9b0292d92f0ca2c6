package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/rollcall/internal/domain"
)

// PresenterDisplayName is shown for the presenter principal.
const PresenterDisplayName = "Instructor"

// StudentDirectory looks up attendees by roll key.
type StudentDirectory interface {
	GetStudentByRollNumber(ctx context.Context, rollNumber string) (*domain.Student, error)
}

// Credentials are the fixed shared secrets.
type Credentials struct {
	PresenterID       string
	PresenterPassword string
	AttendeePassword  string
}

// Authenticator checks the presenter credential pair and the attendee
// roll-key + shared password.
type Authenticator struct {
	presenterID   string
	presenterHash []byte
	attendeeHash  []byte
	students      StudentDirectory
}

// NewAuthenticator hashes the configured secrets with the given bcrypt cost
// so plaintext passwords are not kept in memory. A cost of zero uses the
// bcrypt default.
func NewAuthenticator(creds Credentials, students StudentDirectory, cost int) (*Authenticator, error) {
	if strings.TrimSpace(creds.PresenterID) == "" {
		return nil, errors.New("presenter id is required")
	}
	if creds.PresenterPassword == "" || creds.AttendeePassword == "" {
		return nil, errors.New("presenter and attendee passwords are required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	presenterHash, err := bcrypt.GenerateFromPassword([]byte(creds.PresenterPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash presenter password: %w", err)
	}
	attendeeHash, err := bcrypt.GenerateFromPassword([]byte(creds.AttendeePassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash attendee password: %w", err)
	}
	return &Authenticator{
		presenterID:   strings.ToLower(strings.TrimSpace(creds.PresenterID)),
		presenterHash: presenterHash,
		attendeeHash:  attendeeHash,
		students:      students,
	}, nil
}

// LoginPresenter checks the presenter pair.
func (a *Authenticator) LoginPresenter(id, password string) (*domain.Principal, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	idOK := subtle.ConstantTimeCompare([]byte(id), []byte(a.presenterID)) == 1
	pwErr := bcrypt.CompareHashAndPassword(a.presenterHash, []byte(password))
	if !idOK || pwErr != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Principal{Role: domain.RolePresenter, ID: a.presenterID, DisplayName: PresenterDisplayName}, nil
}

// LoginAttendee resolves the roll key in the directory and checks the
// shared attendee password.
func (a *Authenticator) LoginAttendee(ctx context.Context, rollNumber, password string) (*domain.Principal, error) {
	rollNumber = strings.TrimSpace(rollNumber)
	if rollNumber == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.attendeeHash, []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	student, err := a.students.GetStudentByRollNumber(ctx, rollNumber)
	if err != nil {
		return nil, fmt.Errorf("look up student: %w", err)
	}
	if student == nil {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Principal{Role: domain.RoleAttendee, ID: student.ID, DisplayName: student.Name}, nil
}
