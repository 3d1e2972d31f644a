// Package maintenance forecasts upcoming services for maintenance schedules
// and rolls schedules forward when a service is completed.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	ErrScheduleNotFound = errors.New("maintenance schedule not found")
	ErrInvalidSchedule  = errors.New("invalid maintenance schedule")
)

var validate = validator.New()

// Service holds the collaborators every maintenance operation needs. All of
// them are passed in explicitly so tests can substitute fakes.
type Service struct {
	schedules db.ScheduleCollection
	enhanced  db.EnhancedScheduleCollection
	records   db.ServiceRecordCollection
	publisher events.Publisher
	clock     clock.Clock
	logger    log.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher. The default discards events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock sets the clock used for "today" and update timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l log.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithServiceRecords enables the service history written on completion.
func WithServiceRecords(r db.ServiceRecordCollection) Option {
	return func(s *Service) { s.records = r }
}

// NewService creates a maintenance service over the given stores.
func NewService(schedules db.ScheduleCollection, enhanced db.EnhancedScheduleCollection, opts ...Option) *Service {
	s := &Service{
		schedules: schedules,
		enhanced:  enhanced,
		publisher: events.NopPublisher{},
		clock:     clock.NewRealClock(nil),
		logger:    log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSchedule loads a schedule visible to tenantID. A schedule owned by
// another tenant is reported as not found. An empty tenantID skips the check.
func (s *Service) GetSchedule(ctx context.Context, tenantID, id string) (*models.MaintenanceSchedule, error) {
	schedule, err := s.schedules.FindScheduleByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("fetch schedule %s: %w", id, err)
	}
	if tenantID != "" && schedule.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return schedule, nil
}
