package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func storedSchedule() *models.MaintenanceSchedule {
	return &models.MaintenanceSchedule{
		ID:                 primitive.NewObjectID(),
		TenantID:           "shop-1",
		AssetType:          models.AssetVehicle,
		AssetID:            "van-3",
		ServiceType:        "oil_change",
		FrequencyValue:     3,
		FrequencyUnit:      models.UnitMonths,
		MileageInterval:    intPtr(5000),
		LastServiceDate:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		LastServiceMileage: intPtr(45000),
		NextDueDate:        time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		NextDueMileage:     intPtr(50000),
		Status:             models.StatusScheduled,
	}
}

func TestService_CompleteSchedule(t *testing.T) {
	stored := storedSchedule()
	id := stored.ID.Hex()
	completedAt := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	schedules := new(MockScheduleCollection)
	records := new(MockServiceRecordCollection)
	publisher := new(MockPublisher)

	schedules.On("FindScheduleByID", mock.Anything, id).Return(stored, nil)
	schedules.On("CompleteSchedule", mock.Anything, id, mock.MatchedBy(func(c models.ScheduleCompletion) bool {
		return c.LastServiceDate.Equal(completedAt) &&
			c.NextDueDate.Equal(time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)) &&
			c.NextDueMileage != nil && *c.NextDueMileage == 55000 &&
			c.LastServiceMileage != nil && *c.LastServiceMileage == 50000
	})).Return(nil)
	records.On("InsertServiceRecord", mock.Anything, mock.MatchedBy(func(r models.ServiceRecord) bool {
		return r.ScheduleID == id && r.Technician == "sam" && r.ServiceDate.Equal(completedAt)
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Kind == events.KindCompleted && e.ScheduleID == id && e.TenantID == "shop-1"
	})).Return(nil)

	svc := newTestService(schedules, new(MockEnhancedScheduleCollection),
		WithServiceRecords(records), WithPublisher(publisher))

	updated, err := svc.CompleteSchedule(context.Background(), "shop-1", id, Completion{
		CompletedAt: completedAt,
		Mileage:     intPtr(50000),
		Technician:  "sam",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, updated.Status)
	assert.Equal(t, time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC), updated.NextDueDate)
	assert.Equal(t, 55000, *updated.NextDueMileage)
	assert.Equal(t, 50000, *updated.CurrentMileage)
	assert.Equal(t, testToday, updated.UpdatedAt)

	schedules.AssertExpectations(t)
	records.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_CompleteSchedule_SameDateTwiceDoesNotDrift(t *testing.T) {
	stored := storedSchedule()
	id := stored.ID.Hex()
	completedAt := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	schedules := new(MockScheduleCollection)
	var written []time.Time
	schedules.On("FindScheduleByID", mock.Anything, id).Return(stored, nil)
	schedules.On("CompleteSchedule", mock.Anything, id, mock.Anything).
		Run(func(args mock.Arguments) {
			c := args.Get(2).(models.ScheduleCompletion)
			written = append(written, c.NextDueDate)
			// Persist like the store would so the second read sees the first write.
			stored.LastServiceDate = c.LastServiceDate
			stored.NextDueDate = c.NextDueDate
		}).Return(nil)

	svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
	for i := 0; i < 2; i++ {
		_, err := svc.CompleteSchedule(context.Background(), "shop-1", id, Completion{CompletedAt: completedAt})
		require.NoError(t, err)
	}

	require.Len(t, written, 2)
	assert.Equal(t, written[0], written[1])
	assert.Equal(t, time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC), written[1])
}

func TestService_CompleteSchedule_WithoutMileage(t *testing.T) {
	stored := storedSchedule()
	id := stored.ID.Hex()

	schedules := new(MockScheduleCollection)
	schedules.On("FindScheduleByID", mock.Anything, id).Return(stored, nil)
	schedules.On("CompleteSchedule", mock.Anything, id, mock.MatchedBy(func(c models.ScheduleCompletion) bool {
		return c.NextDueMileage == nil && c.LastServiceMileage == nil
	})).Return(nil)

	svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
	updated, err := svc.CompleteSchedule(context.Background(), "shop-1", id, Completion{})
	require.NoError(t, err)

	// Zero completion date means today.
	assert.Equal(t, testToday, updated.LastServiceDate)
	assert.Equal(t, testToday.AddDate(0, 3, 0), updated.NextDueDate)
	assert.Equal(t, 50000, *updated.NextDueMileage)
	schedules.AssertExpectations(t)
}

func TestService_CompleteSchedule_NoMileageInterval(t *testing.T) {
	stored := storedSchedule()
	stored.MileageInterval = nil
	stored.NextDueMileage = nil
	id := stored.ID.Hex()

	schedules := new(MockScheduleCollection)
	schedules.On("FindScheduleByID", mock.Anything, id).Return(stored, nil)
	schedules.On("CompleteSchedule", mock.Anything, id, mock.MatchedBy(func(c models.ScheduleCompletion) bool {
		return c.NextDueMileage == nil && c.LastServiceMileage != nil
	})).Return(nil)

	svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
	updated, err := svc.CompleteSchedule(context.Background(), "", id, Completion{Mileage: intPtr(61000)})
	require.NoError(t, err)
	assert.Nil(t, updated.NextDueMileage)
	assert.Equal(t, 61000, *updated.LastServiceMileage)
}

func TestService_CompleteSchedule_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing schedule", func(t *testing.T) {
		schedules := new(MockScheduleCollection)
		schedules.On("FindScheduleByID", mock.Anything, "nope").Return(nil, db.ErrNotFound)

		svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
		_, err := svc.CompleteSchedule(ctx, "shop-1", "nope", Completion{})
		assert.ErrorIs(t, err, ErrScheduleNotFound)
	})

	t.Run("other tenant", func(t *testing.T) {
		stored := storedSchedule()
		schedules := new(MockScheduleCollection)
		schedules.On("FindScheduleByID", mock.Anything, stored.ID.Hex()).Return(stored, nil)

		svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
		_, err := svc.CompleteSchedule(ctx, "shop-2", stored.ID.Hex(), Completion{})
		assert.ErrorIs(t, err, ErrScheduleNotFound)
		schedules.AssertNotCalled(t, "CompleteSchedule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write failure", func(t *testing.T) {
		stored := storedSchedule()
		schedules := new(MockScheduleCollection)
		schedules.On("FindScheduleByID", mock.Anything, stored.ID.Hex()).Return(stored, nil)
		schedules.On("CompleteSchedule", mock.Anything, stored.ID.Hex(), mock.Anything).Return(errors.New("write conflict"))

		svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
		_, err := svc.CompleteSchedule(ctx, "shop-1", stored.ID.Hex(), Completion{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrScheduleNotFound)
		assert.Contains(t, err.Error(), "write conflict")
	})

	t.Run("side effects are best effort", func(t *testing.T) {
		stored := storedSchedule()
		schedules := new(MockScheduleCollection)
		records := new(MockServiceRecordCollection)
		publisher := new(MockPublisher)
		schedules.On("FindScheduleByID", mock.Anything, stored.ID.Hex()).Return(stored, nil)
		schedules.On("CompleteSchedule", mock.Anything, stored.ID.Hex(), mock.Anything).Return(nil)
		records.On("InsertServiceRecord", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		svc := newTestService(schedules, new(MockEnhancedScheduleCollection),
			WithServiceRecords(records), WithPublisher(publisher))
		_, err := svc.CompleteSchedule(ctx, "shop-1", stored.ID.Hex(), Completion{})
		assert.NoError(t, err)
	})
}

func TestService_CreateSchedule(t *testing.T) {
	schedules := new(MockScheduleCollection)
	newID := primitive.NewObjectID()
	schedules.On("InsertSchedule", mock.Anything, mock.MatchedBy(func(s models.MaintenanceSchedule) bool {
		return s.Status == models.StatusScheduled &&
			s.FrequencyUnit == models.UnitWeeks &&
			s.NextDueDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) &&
			s.NextDueMileage != nil && *s.NextDueMileage == 13000
	})).Return(newID.Hex(), nil)

	svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
	created, err := svc.CreateSchedule(context.Background(), NewSchedule{
		TenantID:           "shop-1",
		AssetType:          "Equipment",
		AssetID:            "pressure-washer-2",
		ServiceType:        "pump_service",
		FrequencyValue:     6,
		FrequencyUnit:      "week",
		MileageInterval:    intPtr(3000),
		LastServiceDate:    time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
		LastServiceMileage: intPtr(10000),
	})
	require.NoError(t, err)
	assert.Equal(t, newID, created.ID)
	assert.Equal(t, models.AssetEquipment, created.AssetType)
	assert.Equal(t, testToday, created.CreatedAt)
	schedules.AssertExpectations(t)
}

func TestService_CreateSchedule_Invalid(t *testing.T) {
	valid := NewSchedule{
		TenantID:        "shop-1",
		AssetType:       models.AssetVehicle,
		AssetID:         "truck-1",
		ServiceType:     "oil_change",
		FrequencyValue:  3,
		FrequencyUnit:   models.UnitMonths,
		LastServiceDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		mutate func(*NewSchedule)
	}{
		{"missing tenant", func(n *NewSchedule) { n.TenantID = "" }},
		{"unknown asset type", func(n *NewSchedule) { n.AssetType = "boat" }},
		{"zero frequency", func(n *NewSchedule) { n.FrequencyValue = 0 }},
		{"unknown unit", func(n *NewSchedule) { n.FrequencyUnit = "fortnights" }},
		{"negative mileage interval", func(n *NewSchedule) { n.MileageInterval = intPtr(-10) }},
		{"missing last service date", func(n *NewSchedule) { n.LastServiceDate = time.Time{} }},
		{"negative cost", func(n *NewSchedule) { n.EstimatedCost = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedules := new(MockScheduleCollection)
			svc := newTestService(schedules, new(MockEnhancedScheduleCollection))
			in := valid
			tt.mutate(&in)

			_, err := svc.CreateSchedule(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
			schedules.AssertNotCalled(t, "InsertSchedule", mock.Anything, mock.Anything)
		})
	}
}
