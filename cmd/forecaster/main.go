package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
)

type alerter interface {
	PublishDueAlerts(ctx context.Context, tenantID string) (int, error)
}

// sweep runs one pass over every tenant's schedules.
func sweep(ctx context.Context, a alerter) {
	start := time.Now()
	published, err := a.PublishDueAlerts(ctx, "")
	if err != nil {
		log.WithError(err).Error("Forecast sweep failed")
		return
	}
	log.WithFields(log.Fields{
		"published":   published,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Forecast sweep completed")
}

// run sweeps immediately and then once per interval until ctx is done.
func run(ctx context.Context, a alerter, interval time.Duration) {
	sweep(ctx, a)

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			sweep(ctx, a)
		}
	}
}

func main() {
	cfg := config.Load()
	cfg.ConfigureLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()
	database := client.Database(cfg.MongoDB)

	if cfg.MQTTBroker == "" {
		log.Fatal("MQTT_BROKER is required for the forecaster")
	}
	clientID := cfg.MQTTClientID + "-forecaster"
	publisher, err := events.ConnectMQTT(cfg.MQTTBroker, clientID, cfg.MQTTTopicPrefix)
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Fatal("Failed to connect to MQTT broker")
	}
	defer publisher.Close()

	service := maintenance.NewService(
		&db.MongoScheduleCollection{Collection: database.Collection(db.SchedulesCollection)},
		&db.MongoEnhancedScheduleCollection{Collection: database.Collection(db.EnhancedSchedulesCollection)},
		maintenance.WithPublisher(publisher),
		maintenance.WithClock(clock.NewRealClock(cfg.Location)),
	)

	log.WithFields(log.Fields{
		"interval": cfg.ForecastInterval,
		"broker":   cfg.MQTTBroker,
		"timezone": cfg.Location.String(),
	}).Info("Starting maintenance forecaster")

	run(ctx, service, cfg.ForecastInterval)
	log.Info("Maintenance forecaster stopped")
}
