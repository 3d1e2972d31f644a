package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

const defaultPartUnit = "each"

// partEntry is the stored shape of one required part.
type partEntry struct {
	Name          string   `json:"name" bson:"name" validate:"required"`
	PartNumber    string   `json:"part_number" bson:"part_number"`
	Quantity      *float64 `json:"quantity" bson:"quantity" validate:"omitempty,gt=0"`
	Unit          string   `json:"unit" bson:"unit"`
	EstimatedCost float64  `json:"estimated_cost" bson:"estimated_cost" validate:"gte=0"`
	IsCritical    bool     `json:"is_critical" bson:"is_critical"`
}

func (p partEntry) item() models.MaintenanceServiceItem {
	qty := 1.0
	if p.Quantity != nil {
		qty = *p.Quantity
	}
	unit := strings.TrimSpace(p.Unit)
	if unit == "" {
		unit = defaultPartUnit
	}
	return models.MaintenanceServiceItem{
		Name:          strings.TrimSpace(p.Name),
		PartNumber:    p.PartNumber,
		Quantity:      qty,
		Unit:          unit,
		EstimatedCost: decimal.NewFromFloat(p.EstimatedCost),
		IsCritical:    p.IsCritical,
	}
}

// NormalizeRequiredParts turns a stored required_parts value into service
// items. The value may be a BSON array of documents or a string holding a
// JSON array. Any other shape yields an empty list. Entries that cannot be
// decoded or fail validation are left out and returned in rejected.
func NormalizeRequiredParts(raw bson.RawValue) (items []models.MaintenanceServiceItem, rejected []error) {
	items = []models.MaintenanceServiceItem{}

	switch raw.Type {
	case bson.TypeArray:
		values, err := raw.Array().Values()
		if err != nil {
			return items, []error{fmt.Errorf("required parts array: %w", err)}
		}
		for i, v := range values {
			var entry partEntry
			if v.Type != bson.TypeEmbeddedDocument {
				rejected = append(rejected, fmt.Errorf("part %d: expected document, got %s", i, v.Type))
				continue
			}
			if err := v.Unmarshal(&entry); err != nil {
				rejected = append(rejected, fmt.Errorf("part %d: %w", i, err))
				continue
			}
			items, rejected = appendValid(items, rejected, i, entry)
		}
	case bson.TypeString:
		var elems []json.RawMessage
		if err := json.Unmarshal([]byte(raw.StringValue()), &elems); err != nil {
			return items, nil
		}
		for i, elem := range elems {
			var entry partEntry
			if err := json.Unmarshal(elem, &entry); err != nil {
				rejected = append(rejected, fmt.Errorf("part %d: %w", i, err))
				continue
			}
			items, rejected = appendValid(items, rejected, i, entry)
		}
	}
	return items, rejected
}

func appendValid(items []models.MaintenanceServiceItem, rejected []error, i int, entry partEntry) ([]models.MaintenanceServiceItem, []error) {
	if err := validate.Struct(entry); err != nil {
		return items, append(rejected, fmt.Errorf("part %d: %w", i, err))
	}
	return append(items, entry.item()), rejected
}

// GenerateServiceItems returns the parts expected for a schedule. It never
// fails: a missing record, a lookup error or a malformed blob all produce an
// empty list.
func (s *Service) GenerateServiceItems(ctx context.Context, scheduleID string) []models.MaintenanceServiceItem {
	if s.enhanced == nil {
		return []models.MaintenanceServiceItem{}
	}

	raw, err := s.enhanced.FindRequiredParts(ctx, scheduleID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.WithError(err).WithField("schedule_id", scheduleID).Warn("Failed to load required parts")
		}
		return []models.MaintenanceServiceItem{}
	}

	items, rejected := NormalizeRequiredParts(raw)
	for _, r := range rejected {
		s.logger.WithFields(log.Fields{
			"schedule_id": scheduleID,
			"reason":      r.Error(),
		}).Warn("Rejected required part entry")
	}
	return items
}
