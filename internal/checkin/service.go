// Package checkin records attendee arrivals in the append-only check-in log.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"checkin-desk/internal/lock"
	"checkin-desk/internal/models"
)

var (
	ErrNotFound     = errors.New("attendee not found")
	ErrWriteFailure = errors.New("check-in log write failed")
)

const (
	DefaultLockWait = 10 * time.Second

	msgFailed          = "check-in failed: "
	msgTemplateUpdated = "message template updated"
	msgTemplateFailed  = "template update failed: "
)

// Directory finds the attendee a query refers to
type Directory interface {
	Find(ctx context.Context, query string) (models.Row, bool, error)
}

// Log is the append-only check-in sheet
type Log interface {
	AppendRow(ctx context.Context, values []string) (int, error)
	DataRows(ctx context.Context) ([][]string, error)
}

// Locker hands out the document lock
type Locker interface {
	Acquire(ctx context.Context, wait time.Duration) (*lock.Guard, error)
}

// Templates holds the confirmation message template
type Templates interface {
	Get() string
	Update(tpl string) error
}

type Service struct {
	directory Directory
	log       Log
	locker    Locker
	templates Templates
	format    func(tpl string, row models.Row) string
	lockWait  time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

type Option func(*Service)

// WithLockWait bounds how long a check-in waits for the document lock
func WithLockWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	directory Directory,
	log Log,
	locker Locker,
	templates Templates,
	format func(tpl string, row models.Row) string,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		directory: directory,
		log:       log,
		locker:    locker,
		templates: templates,
		format:    format,
		lockWait:  DefaultLockWait,
		now:       time.Now,
		logger:    logger.With().Str("component", "CheckIn").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn looks the attendee up and, when found, appends an identifier and
// timestamp row to the log. Failures are reported in the Result, never as an
// error.
func (s *Service) CheckIn(ctx context.Context, identifier string) models.Result {
	var guard *lock.Guard
	defer func() { guard.Release() }()

	s.enter(identifier, models.StateLookingUp)
	attendee, ok, err := s.directory.Find(ctx, identifier)
	if err != nil {
		return s.fail(identifier, err)
	}
	if !ok {
		s.enter(identifier, models.StateNotFound)
		return models.Result{Success: false, Message: ErrNotFound.Error(), State: models.StateNotFound}
	}

	s.enter(identifier, models.StateLocking)
	guard, err = s.locker.Acquire(ctx, s.lockWait)
	if err != nil {
		return s.fail(identifier, err)
	}

	s.enter(identifier, models.StateAppending)
	at := s.now()
	row, err := s.log.AppendRow(ctx, []string{identifier, at.Format(time.RFC3339)})
	if err != nil {
		return s.fail(identifier, fmt.Errorf("%w: %w", ErrWriteFailure, err))
	}
	guard.Release()

	s.enter(identifier, models.StateDone)
	s.logger.Info().Str("identifier", identifier).Int("row", row).Time("at", at).Msg("Checked in")

	return models.Result{
		Success:  true,
		Message:  s.format(s.templates.Get(), attendee),
		State:    models.StateDone,
		Attendee: &attendee,
	}
}

// Template returns the message template in use
func (s *Service) Template() string {
	return s.templates.Get()
}

// UpdateTemplate stores a new message template
func (s *Service) UpdateTemplate(tpl string) models.Result {
	if err := s.templates.Update(tpl); err != nil {
		s.logger.Error().Err(err).Msg("Template update failed")
		return models.Result{Success: false, Message: msgTemplateFailed + err.Error(), State: models.StateFailed}
	}
	return models.Result{Success: true, Message: msgTemplateUpdated, State: models.StateDone}
}

// CheckIns returns the log in row order. Rows with an unparsable timestamp
// keep a zero time.
func (s *Service) CheckIns(ctx context.Context) ([]models.CheckIn, error) {
	rows, err := s.log.DataRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read check-in log: %w", err)
	}

	out := make([]models.CheckIn, 0, len(rows))
	for i, r := range rows {
		c := models.CheckIn{Row: i + 2}
		if len(r) > 0 {
			c.Identifier = r[0]
		}
		if len(r) > 1 {
			c.At, _ = time.Parse(time.RFC3339, r[1])
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) enter(identifier string, state models.State) {
	s.logger.Debug().Str("identifier", identifier).Str("state", string(state)).Msg("Check-in state")
}

func (s *Service) fail(identifier string, err error) models.Result {
	s.enter(identifier, models.StateFailed)
	s.logger.Error().Err(err).Str("identifier", identifier).Msg("Check-in failed")
	return models.Result{Success: false, Message: msgFailed + err.Error(), State: models.StateFailed}
}
