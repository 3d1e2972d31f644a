package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority buckets a prediction by how soon the service is due.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// MaintenanceServiceItem is one part expected to be needed for a service.
type MaintenanceServiceItem struct {
	Name          string          `json:"name"`
	PartNumber    string          `json:"part_number,omitempty"`
	Quantity      float64         `json:"quantity"`
	Unit          string          `json:"unit"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"` // per unit
	IsCritical    bool            `json:"is_critical"`
}

// LineCost is quantity times unit cost.
func (i MaintenanceServiceItem) LineCost() decimal.Decimal {
	return i.EstimatedCost.Mul(decimal.NewFromFloat(i.Quantity))
}

// MaintenancePrediction is a derived, non-persisted forecast for one schedule.
type MaintenancePrediction struct {
	Schedule                MaintenanceSchedule      `json:"schedule"`
	DaysUntilDue            int                      `json:"days_until_due"`
	MilesUntilDue           *int                     `json:"miles_until_due,omitempty"`
	ConfidenceLevel         float64                  `json:"confidence_level"`
	Priority                Priority                 `json:"priority"`
	RecommendedScheduleDate time.Time                `json:"recommended_schedule_date"`
	AutoReorderDate         *time.Time               `json:"auto_reorder_date,omitempty"`
	RequiredParts           []MaintenanceServiceItem `json:"required_parts"`
	EstimatedCost           decimal.Decimal          `json:"estimated_cost"`
}
