package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned when a record does not exist or its ID is malformed.
var ErrNotFound = errors.New("not found")

// ScheduleCollection defines the interface for maintenance schedule operations.
type ScheduleCollection interface {
	// FindSchedulesByStatus returns schedules in the given status ordered by
	// next due date ascending. An empty tenantID matches every tenant.
	FindSchedulesByStatus(ctx context.Context, tenantID string, status models.ScheduleStatus) ([]models.MaintenanceSchedule, error)
	FindScheduleByID(ctx context.Context, id string) (*models.MaintenanceSchedule, error)
	InsertSchedule(ctx context.Context, schedule models.MaintenanceSchedule) (string, error)
	// CompleteSchedule writes a rollover and resets the status to scheduled.
	CompleteSchedule(ctx context.Context, id string, completion models.ScheduleCompletion) error
}

// EnhancedScheduleCollection defines the interface for extended schedule data.
type EnhancedScheduleCollection interface {
	// FindRequiredParts returns the raw required parts value for a schedule.
	// A missing record yields ErrNotFound.
	FindRequiredParts(ctx context.Context, scheduleID string) (bson.RawValue, error)
}

// ServiceRecordCollection defines the interface for service history.
type ServiceRecordCollection interface {
	InsertServiceRecord(ctx context.Context, record models.ServiceRecord) error
}
