package maintenance

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

type MockScheduleCollection struct {
	mock.Mock
}

func (m *MockScheduleCollection) FindSchedulesByStatus(ctx context.Context, tenantID string, status models.ScheduleStatus) ([]models.MaintenanceSchedule, error) {
	args := m.Called(ctx, tenantID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MaintenanceSchedule), args.Error(1)
}

func (m *MockScheduleCollection) FindScheduleByID(ctx context.Context, id string) (*models.MaintenanceSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service cannot mutate the fixture.
	s := *args.Get(0).(*models.MaintenanceSchedule)
	return &s, args.Error(1)
}

func (m *MockScheduleCollection) InsertSchedule(ctx context.Context, schedule models.MaintenanceSchedule) (string, error) {
	args := m.Called(ctx, schedule)
	return args.String(0), args.Error(1)
}

func (m *MockScheduleCollection) CompleteSchedule(ctx context.Context, id string, completion models.ScheduleCompletion) error {
	args := m.Called(ctx, id, completion)
	return args.Error(0)
}

type MockEnhancedScheduleCollection struct {
	mock.Mock
}

func (m *MockEnhancedScheduleCollection) FindRequiredParts(ctx context.Context, scheduleID string) (bson.RawValue, error) {
	args := m.Called(ctx, scheduleID)
	return args.Get(0).(bson.RawValue), args.Error(1)
}

type MockServiceRecordCollection struct {
	mock.Mock
}

func (m *MockServiceRecordCollection) InsertServiceRecord(ctx context.Context, record models.ServiceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var testToday = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(schedules *MockScheduleCollection, enhanced *MockEnhancedScheduleCollection, opts ...Option) *Service {
	base := []Option{
		WithClock(clock.NewFakeClock(testToday)),
		WithLogger(quietLogger()),
	}
	return NewService(schedules, enhanced, append(base, opts...)...)
}

// partsArray marshals docs into a required_parts array value.
func partsArray(docs ...bson.M) bson.RawValue {
	arr := bson.A{}
	for _, d := range docs {
		arr = append(arr, d)
	}
	raw, err := bson.Marshal(bson.M{"v": arr})
	if err != nil {
		panic(err)
	}
	return bson.Raw(raw).Lookup("v")
}

func stringValue(s string) bson.RawValue {
	raw, err := bson.Marshal(bson.M{"v": s})
	if err != nil {
		panic(err)
	}
	return bson.Raw(raw).Lookup("v")
}

func intPtr(v int) *int { return &v }
