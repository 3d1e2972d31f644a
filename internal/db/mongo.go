package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the service.
const (
	SchedulesCollection         = "maintenance_schedules"
	EnhancedSchedulesCollection = "enhanced_maintenance_schedules"
	ServiceRecordsCollection    = "service_records"
	UsersCollection             = "users"
)

var errNilCollection = errors.New("mongo collection is nil")

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the forecast and parts lookups rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(SchedulesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "next_due_date", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("schedule index: %w", err)
	}
	_, err = database.Collection(EnhancedSchedulesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "schedule_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("enhanced schedule index: %w", err)
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", id, ErrNotFound)
	}
	return oid, nil
}

// MongoScheduleCollection implements ScheduleCollection for MongoDB.
type MongoScheduleCollection struct {
	Collection *mongo.Collection
}

// FindSchedulesByStatus queries schedules by status, earliest due first.
func (c *MongoScheduleCollection) FindSchedulesByStatus(ctx context.Context, tenantID string, status models.ScheduleStatus) ([]models.MaintenanceSchedule, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}

	filter := bson.M{"status": status}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	opts := options.Find().SetSort(bson.D{{Key: "next_due_date", Value: 1}})

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	schedules := []models.MaintenanceSchedule{}
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindScheduleByID finds a schedule by its ID.
func (c *MongoScheduleCollection) FindScheduleByID(ctx context.Context, id string) (*models.MaintenanceSchedule, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var schedule models.MaintenanceSchedule
	err = c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &schedule, nil
}

// InsertSchedule inserts a schedule and returns its hex ID.
func (c *MongoScheduleCollection) InsertSchedule(ctx context.Context, schedule models.MaintenanceSchedule) (string, error) {
	if c.Collection == nil {
		return "", errNilCollection
	}
	if schedule.ID.IsZero() {
		schedule.ID = primitive.NewObjectID()
	}
	if _, err := c.Collection.InsertOne(ctx, schedule); err != nil {
		return "", err
	}
	return schedule.ID.Hex(), nil
}

// CompleteSchedule applies a rollover. Mileage fields are only written when
// present so that an unknown odometer does not erase an earlier reading.
func (c *MongoScheduleCollection) CompleteSchedule(ctx context.Context, id string, completion models.ScheduleCompletion) error {
	if c.Collection == nil {
		return errNilCollection
	}

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.M{
		"last_service_date": completion.LastServiceDate,
		"next_due_date":     completion.NextDueDate,
		"status":            models.StatusScheduled,
		"updated_at":        completion.UpdatedAt,
	}
	if completion.LastServiceMileage != nil {
		set["last_service_mileage"] = *completion.LastServiceMileage
		set["current_mileage"] = *completion.LastServiceMileage
	}
	if completion.NextDueMileage != nil {
		set["next_due_mileage"] = *completion.NextDueMileage
	}

	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

// MongoEnhancedScheduleCollection implements EnhancedScheduleCollection.
type MongoEnhancedScheduleCollection struct {
	Collection *mongo.Collection
}

// FindRequiredParts fetches only the required_parts field of the record.
func (c *MongoEnhancedScheduleCollection) FindRequiredParts(ctx context.Context, scheduleID string) (bson.RawValue, error) {
	if c.Collection == nil {
		return bson.RawValue{}, errNilCollection
	}

	opts := options.FindOne().SetProjection(bson.M{"required_parts": 1})
	var record models.EnhancedSchedule
	err := c.Collection.FindOne(ctx, bson.M{"schedule_id": scheduleID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bson.RawValue{}, fmt.Errorf("enhanced schedule %s: %w", scheduleID, ErrNotFound)
		}
		return bson.RawValue{}, err
	}
	return record.RequiredParts, nil
}

// MongoServiceRecordCollection implements ServiceRecordCollection.
type MongoServiceRecordCollection struct {
	Collection *mongo.Collection
}

// InsertServiceRecord appends a service history entry.
func (c *MongoServiceRecordCollection) InsertServiceRecord(ctx context.Context, record models.ServiceRecord) error {
	if c.Collection == nil {
		return errNilCollection
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := c.Collection.InsertOne(ctx, record)
	return err
}
