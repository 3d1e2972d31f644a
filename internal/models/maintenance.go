package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntervalUnit is the calendar unit of a schedule frequency.
type IntervalUnit string

const (
	UnitDays   IntervalUnit = "days"
	UnitWeeks  IntervalUnit = "weeks"
	UnitMonths IntervalUnit = "months"
	UnitYears  IntervalUnit = "years"
)

// ScheduleStatus is the lifecycle state of a maintenance schedule.
type ScheduleStatus string

const (
	StatusScheduled ScheduleStatus = "scheduled"
	StatusCompleted ScheduleStatus = "completed"
	StatusOverdue   ScheduleStatus = "overdue"
)

// AssetType identifies what kind of asset a schedule belongs to.
type AssetType string

const (
	AssetVehicle   AssetType = "vehicle"
	AssetEquipment AssetType = "equipment"
)

// MaintenanceSchedule is a recurring maintenance obligation for one asset.
// NextDueDate and NextDueMileage are derived from the last service and the
// frequency; they are only written on creation and on completion.
type MaintenanceSchedule struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID           string             `json:"tenant_id" bson:"tenant_id"`
	AssetType          AssetType          `json:"asset_type" bson:"asset_type"`
	AssetID            string             `json:"asset_id" bson:"asset_id"`
	ServiceType        string             `json:"service_type" bson:"service_type"` // "oil_change", "tire_rotation", "pump_out", "hull_inspection"
	Description        string             `json:"description" bson:"description"`
	FrequencyValue     int                `json:"frequency_value" bson:"frequency_value"`
	FrequencyUnit      IntervalUnit       `json:"frequency_unit" bson:"frequency_unit"`
	MileageInterval    *int               `json:"mileage_interval,omitempty" bson:"mileage_interval,omitempty"`
	LastServiceDate    time.Time          `json:"last_service_date" bson:"last_service_date"`
	LastServiceMileage *int               `json:"last_service_mileage,omitempty" bson:"last_service_mileage,omitempty"`
	CurrentMileage     *int               `json:"current_mileage,omitempty" bson:"current_mileage,omitempty"`
	NextDueDate        time.Time          `json:"next_due_date" bson:"next_due_date"`
	NextDueMileage     *int               `json:"next_due_mileage,omitempty" bson:"next_due_mileage,omitempty"`
	EstimatedCost      float64            `json:"estimated_cost" bson:"estimated_cost"` // labor estimate, in USD
	Status             ScheduleStatus     `json:"status" bson:"status"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasMileageData reports whether both odometer readings needed for a
// mileage-backed forecast are known.
func (s *MaintenanceSchedule) HasMileageData() bool {
	return s.CurrentMileage != nil && s.LastServiceMileage != nil
}

// ScheduleCompletion holds the fields written back when a service is done.
type ScheduleCompletion struct {
	LastServiceDate    time.Time
	LastServiceMileage *int
	NextDueDate        time.Time
	NextDueMileage     *int
	UpdatedAt          time.Time
}

// EnhancedSchedule carries the extended attributes of a schedule. The
// required parts field is stored untyped and is normalized on read.
type EnhancedSchedule struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ScheduleID    string             `bson:"schedule_id"`
	RequiredParts bson.RawValue      `bson:"required_parts,omitempty"`
}

// ServiceRecord is one completed service, appended on every rollover.
type ServiceRecord struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID    string             `json:"tenant_id" bson:"tenant_id"`
	ScheduleID  string             `json:"schedule_id" bson:"schedule_id"`
	AssetType   AssetType          `json:"asset_type" bson:"asset_type"`
	AssetID     string             `json:"asset_id" bson:"asset_id"`
	ServiceType string             `json:"service_type" bson:"service_type"`
	ServiceDate time.Time          `json:"service_date" bson:"service_date"`
	Mileage     *int               `json:"mileage,omitempty" bson:"mileage,omitempty"`
	Technician  string             `json:"technician" bson:"technician"`
	Notes       string             `json:"notes" bson:"notes"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}
