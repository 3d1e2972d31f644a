package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/interval"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Completion describes a finished service.
type Completion struct {
	CompletedAt time.Time // zero means now
	Mileage     *int
	Technician  string
	Notes       string
}

// NewSchedule is the input for CreateSchedule.
type NewSchedule struct {
	TenantID           string              `json:"tenant_id" validate:"required"`
	AssetType          models.AssetType    `json:"asset_type" validate:"required,oneof=vehicle equipment"`
	AssetID            string              `json:"asset_id" validate:"required"`
	ServiceType        string              `json:"service_type" validate:"required"`
	Description        string              `json:"description"`
	FrequencyValue     int                 `json:"frequency_value" validate:"gt=0"`
	FrequencyUnit      models.IntervalUnit `json:"frequency_unit" validate:"required,oneof=days weeks months years"`
	MileageInterval    *int                `json:"mileage_interval" validate:"omitempty,gt=0"`
	LastServiceDate    time.Time           `json:"last_service_date"`
	LastServiceMileage *int                `json:"last_service_mileage" validate:"omitempty,gte=0"`
	CurrentMileage     *int                `json:"current_mileage" validate:"omitempty,gte=0"`
	EstimatedCost      float64             `json:"estimated_cost" validate:"gte=0"`
}

// CompleteSchedule rolls a schedule forward after a service. The next due
// date is always recomputed from the completion date and the stored
// frequency, so repeating a completion with the same date gives the same
// result. Read and write are not coordinated; concurrent completions of the
// same schedule resolve as last write wins.
func (s *Service) CompleteSchedule(ctx context.Context, tenantID, scheduleID string, c Completion) (*models.MaintenanceSchedule, error) {
	schedule, err := s.GetSchedule(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}

	if c.CompletedAt.IsZero() {
		c.CompletedAt = s.clock.Now()
	}

	completion := models.ScheduleCompletion{
		LastServiceDate:    c.CompletedAt,
		LastServiceMileage: c.Mileage,
		NextDueDate:        interval.CalculateNextDueDate(c.CompletedAt, schedule.FrequencyValue, schedule.FrequencyUnit),
		UpdatedAt:          s.clock.Now(),
	}
	if c.Mileage != nil && schedule.MileageInterval != nil {
		next := interval.CalculateNextDueMileage(*c.Mileage, *schedule.MileageInterval)
		completion.NextDueMileage = &next
	}

	if err := s.schedules.CompleteSchedule(ctx, scheduleID, completion); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
		}
		return nil, fmt.Errorf("update schedule %s: %w", scheduleID, err)
	}

	schedule.LastServiceDate = completion.LastServiceDate
	schedule.NextDueDate = completion.NextDueDate
	schedule.Status = models.StatusScheduled
	schedule.UpdatedAt = completion.UpdatedAt
	if c.Mileage != nil {
		schedule.LastServiceMileage = c.Mileage
		schedule.CurrentMileage = c.Mileage
	}
	if completion.NextDueMileage != nil {
		schedule.NextDueMileage = completion.NextDueMileage
	}

	logger := s.logger.WithFields(log.Fields{
		"schedule_id":   scheduleID,
		"tenant_id":     schedule.TenantID,
		"next_due_date": schedule.NextDueDate.Format(time.DateOnly),
	})
	logger.Info("Maintenance schedule completed")

	s.recordService(ctx, logger, *schedule, c)
	s.publishCompleted(ctx, logger, *schedule)
	return schedule, nil
}

func (s *Service) recordService(ctx context.Context, logger log.FieldLogger, schedule models.MaintenanceSchedule, c Completion) {
	if s.records == nil {
		return
	}
	record := models.ServiceRecord{
		TenantID:    schedule.TenantID,
		ScheduleID:  schedule.ID.Hex(),
		AssetType:   schedule.AssetType,
		AssetID:     schedule.AssetID,
		ServiceType: schedule.ServiceType,
		ServiceDate: c.CompletedAt,
		Mileage:     c.Mileage,
		Technician:  c.Technician,
		Notes:       c.Notes,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.records.InsertServiceRecord(ctx, record); err != nil {
		logger.WithError(err).Warn("Failed to record service history")
	}
}

func (s *Service) publishCompleted(ctx context.Context, logger log.FieldLogger, schedule models.MaintenanceSchedule) {
	event := events.Event{
		Kind:        events.KindCompleted,
		TenantID:    schedule.TenantID,
		ScheduleID:  schedule.ID.Hex(),
		AssetID:     schedule.AssetID,
		ServiceType: schedule.ServiceType,
		NextDueDate: schedule.NextDueDate,
		OccurredAt:  s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).Warn("Failed to publish completion event")
	}
}

// CreateSchedule validates and stores a new schedule. Its next due date and
// mileage are derived from the last service; callers cannot set them.
func (s *Service) CreateSchedule(ctx context.Context, in NewSchedule) (*models.MaintenanceSchedule, error) {
	in.FrequencyUnit = interval.ParseUnit(string(in.FrequencyUnit))
	in.AssetType = models.AssetType(strings.ToLower(strings.TrimSpace(string(in.AssetType))))
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchedule, err.Error())
	}
	if in.LastServiceDate.IsZero() {
		return nil, fmt.Errorf("%w: last_service_date is required", ErrInvalidSchedule)
	}

	ts := s.clock.Now()
	schedule := models.MaintenanceSchedule{
		TenantID:           in.TenantID,
		AssetType:          in.AssetType,
		AssetID:            in.AssetID,
		ServiceType:        in.ServiceType,
		Description:        in.Description,
		FrequencyValue:     in.FrequencyValue,
		FrequencyUnit:      in.FrequencyUnit,
		MileageInterval:    in.MileageInterval,
		LastServiceDate:    in.LastServiceDate,
		LastServiceMileage: in.LastServiceMileage,
		CurrentMileage:     in.CurrentMileage,
		NextDueDate:        interval.CalculateNextDueDate(in.LastServiceDate, in.FrequencyValue, in.FrequencyUnit),
		EstimatedCost:      in.EstimatedCost,
		Status:             models.StatusScheduled,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if in.LastServiceMileage != nil && in.MileageInterval != nil {
		next := interval.CalculateNextDueMileage(*in.LastServiceMileage, *in.MileageInterval)
		schedule.NextDueMileage = &next
	}

	id, err := s.schedules.InsertSchedule(ctx, schedule)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		schedule.ID = oid
	}
	return &schedule, nil
}
