package maintenance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Heuristic confidence levels. A schedule with both odometer readings gets
// the higher value; nothing else about the readings is considered.
const (
	ConfidenceWithMileage    = 0.9
	ConfidenceWithoutMileage = 0.7
)

const (
	recommendLeadDays = 7
	reorderLeadDays   = 14
	reorderWindowDays = 30
)

// DaysUntilDue is the calendar-day difference between due and today,
// evaluated in today's location. Negative means overdue.
func DaysUntilDue(due, today time.Time) int {
	dueDay := now.With(due.In(today.Location())).BeginningOfDay()
	todayStart := now.With(today).BeginningOfDay()
	return int(math.Round(dueDay.Sub(todayStart).Hours() / 24))
}

// ClassifyPriority maps days until due onto the priority ladder.
func ClassifyPriority(daysUntilDue int) models.Priority {
	switch {
	case daysUntilDue < 0:
		return models.PriorityCritical
	case daysUntilDue <= 7:
		return models.PriorityHigh
	case daysUntilDue <= 30:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Confidence returns the confidence heuristic for a schedule.
func Confidence(schedule models.MaintenanceSchedule) float64 {
	if schedule.HasMileageData() {
		return ConfidenceWithMileage
	}
	return ConfidenceWithoutMileage
}

// Predict derives the forecast for one schedule as of today.
func Predict(schedule models.MaintenanceSchedule, today time.Time, parts []models.MaintenanceServiceItem) models.MaintenancePrediction {
	days := DaysUntilDue(schedule.NextDueDate, today)
	if parts == nil {
		parts = []models.MaintenanceServiceItem{}
	}

	cost := decimal.NewFromFloat(schedule.EstimatedCost)
	for _, p := range parts {
		cost = cost.Add(p.LineCost())
	}

	p := models.MaintenancePrediction{
		Schedule:                schedule,
		DaysUntilDue:            days,
		ConfidenceLevel:         Confidence(schedule),
		Priority:                ClassifyPriority(days),
		RecommendedScheduleDate: schedule.NextDueDate.AddDate(0, 0, -recommendLeadDays),
		RequiredParts:           parts,
		EstimatedCost:           cost,
	}
	if days <= reorderWindowDays {
		reorder := schedule.NextDueDate.AddDate(0, 0, -reorderLeadDays)
		p.AutoReorderDate = &reorder
	}
	if schedule.NextDueMileage != nil && schedule.CurrentMileage != nil {
		miles := *schedule.NextDueMileage - *schedule.CurrentMileage
		p.MilesUntilDue = &miles
	}
	return p
}

// GenerateForecast predicts every scheduled maintenance item for a tenant,
// earliest due first. An empty tenantID covers all tenants. A failure to
// load the schedules is returned; part lookups never fail the forecast.
func (s *Service) GenerateForecast(ctx context.Context, tenantID string) ([]models.MaintenancePrediction, error) {
	schedules, err := s.schedules.FindSchedulesByStatus(ctx, tenantID, models.StatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("fetch scheduled maintenance: %w", err)
	}

	today := s.clock.Now()
	predictions := make([]models.MaintenancePrediction, 0, len(schedules))
	for _, schedule := range schedules {
		if schedule.NextDueDate.IsZero() {
			s.logger.WithField("schedule_id", schedule.ID.Hex()).Debug("Skipping schedule without next due date")
			continue
		}
		parts := s.GenerateServiceItems(ctx, schedule.ID.Hex())
		predictions = append(predictions, Predict(schedule, today, parts))
	}

	s.logger.WithFields(log.Fields{
		"tenant_id":   tenantID,
		"schedules":   len(schedules),
		"predictions": len(predictions),
	}).Debug("Generated maintenance forecast")
	return predictions, nil
}

// PublishDueAlerts publishes a due event for every critical or high
// priority prediction and returns how many were published. Publish failures
// are logged and skipped.
func (s *Service) PublishDueAlerts(ctx context.Context, tenantID string) (int, error) {
	predictions, err := s.GenerateForecast(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, p := range predictions {
		if p.Priority != models.PriorityCritical && p.Priority != models.PriorityHigh {
			continue
		}
		days := p.DaysUntilDue
		event := events.Event{
			Kind:         events.KindDue,
			TenantID:     p.Schedule.TenantID,
			ScheduleID:   p.Schedule.ID.Hex(),
			AssetID:      p.Schedule.AssetID,
			ServiceType:  p.Schedule.ServiceType,
			NextDueDate:  p.Schedule.NextDueDate,
			DaysUntilDue: &days,
			Priority:     string(p.Priority),
			OccurredAt:   s.clock.Now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WithError(err).WithField("schedule_id", event.ScheduleID).Warn("Failed to publish due alert")
			continue
		}
		published++
	}
	return published, nil
}
