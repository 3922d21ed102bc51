//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
	"github.com/Alu2004/swift-bus-bookings/internal/kafka"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
	"github.com/Alu2004/swift-bus-bookings/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	TripRepo        *repository.GormTripRepository
	BookingRepo     *repository.GormBookingRepository
	Notifier        *captureNotifier
	CleanupProducer func()
}

// captureNotifier records sent notifications for assertions.
type captureNotifier struct {
	mu            sync.Mutex
	confirmations []notify.BookingConfirmation
	cancellations []notify.BookingCancellation
}

func (n *captureNotifier) SendBookingConfirmation(ctx context.Context, c notify.BookingConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, c)
	return nil
}

func (n *captureNotifier) SendBookingCancellation(ctx context.Context, c notify.BookingCancellation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, c)
	return nil
}

func (n *captureNotifier) SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error {
	return nil
}

func (n *captureNotifier) cancellationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.cancellations)
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgContainer, err := pgmodule.Run(ctx, "postgres:16-alpine",
		pgmodule.WithDatabase("test_busbook"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.TripModel{}, &repository.BookingModel{}, &repository.BookingSeatModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, "booking.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack against real
// PostgreSQL and Kafka.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	tripRepo := repository.NewGormTripRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	notifier := &captureNotifier{}
	producer := kafka.NewProducer(brokers, logger)
	bookingSvc := application.NewBookingService(tripRepo, tripRepo, bookingRepo, notifier, producer, logger)

	return &bookingStack{
		Service:         bookingSvc,
		TripRepo:        tripRepo,
		BookingRepo:     bookingRepo,
		Notifier:        notifier,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedTrip persists a trip and returns it.
func seedTrip(t *testing.T, repo *repository.GormTripRepository, totalSeats int) *tripDomain.Trip {
	t.Helper()
	departure := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	trip, err := tripDomain.NewTrip(
		"BA 2 KHA 9133", "Kathmandu", "Palung",
		departure, departure.Add(4*time.Hour),
		500, totalSeats, false,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), trip))
	return trip
}

// loadTripModel reads the trip row directly.
func loadTripModel(t *testing.T, db *gorm.DB, tripID uuid.UUID) repository.TripModel {
	t.Helper()
	var model repository.TripModel
	require.NoError(t, db.Where("id = ?", tripID).First(&model).Error)
	return model
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
