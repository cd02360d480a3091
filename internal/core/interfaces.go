//go:generate mockgen -source=interfaces.go -destination=mock/mock_core.go -package=mock

package core

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Hotseat/internal/domain"
)

var ErrNotFound = errors.New("not found")

type LedgerEventKind string

const (
	EventUserAllocated  LedgerEventKind = "userAllocated"
	EventTurnAssigned   LedgerEventKind = "turnAssigned"
	EventLinePeeked     LedgerEventKind = "linePeeked"
	EventTokenRewarded  LedgerEventKind = "tokenRewarded"
	EventPointsRewarded LedgerEventKind = "pointsRewarded"
)

// LedgerEvent is a notification emitted by the ledger after a confirmed change.
type LedgerEvent struct {
	Kind        LedgerEventKind
	Participant domain.ParticipantID
	Session     domain.SessionID
	Value       string
}

// Ledger is the authoritative book of identities, turn order and rewards.
// Every call may take seconds; callers pass a context they are willing to wait on.
type Ledger interface {
	AllocateUser(ctx context.Context, sid domain.SessionID, unlockKey string) (domain.ParticipantID, error)
	AddToLine(ctx context.Context, pid domain.ParticipantID) (int, error)
	// Peek irrevocably removes the head of the line and returns it.
	Peek(ctx context.Context) (domain.ParticipantID, error)
	Line(ctx context.Context) ([]domain.ParticipantID, error)
	UserTurn(ctx context.Context, pid domain.ParticipantID) (int, error)
	RewardGameToken(ctx context.Context, pid domain.ParticipantID, uri string) (string, error)
	RewardPoints(ctx context.Context, pid domain.ParticipantID, points int) (int, error)
	SetUserOwnership(ctx context.Context, pid domain.ParticipantID, account, secret string) error
	Events() <-chan LedgerEvent
}

// Recorder drives the recording/broadcast controller.
type Recorder interface {
	StartRecording(ctx context.Context, name string) error
	StopRecording(ctx context.Context) error
	SwitchScene(ctx context.Context, scene string) error
	Connected() bool
}

// VideoHost uploads a finished recording and returns its playable reference.
type VideoHost interface {
	Upload(ctx context.Context, path, title string) (string, error)
}

// Artifact is the souvenir bundle handed to the artifact store.
type Artifact struct {
	Name        string
	Description string
	ImagePath   string
	SideBPath   string
	Properties  map[string]any
}

// ArtifactStore persists an artifact and returns its content reference.
type ArtifactStore interface {
	Store(ctx context.Context, a Artifact) (string, error)
}

// Credential is the persisted record used for session recovery.
type Credential struct {
	ParticipantID domain.ParticipantID
	UnlockKey     string
	Account       string
	CreatedAt     time.Time
}

type CredentialStore interface {
	SaveCredential(ctx context.Context, c Credential) error
	// GetCredential returns ErrNotFound for an unknown participant.
	GetCredential(ctx context.Context, pid domain.ParticipantID) (Credential, error)
	SetAccount(ctx context.Context, pid domain.ParticipantID, account string) error
}
