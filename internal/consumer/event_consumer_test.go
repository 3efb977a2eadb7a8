package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockNotifications struct {
	m         sync.Mutex
	Created   []*domain.Notification
	CreateErr error
	seen      map[string]bool
}

func (r *MockNotifications) Create(_ context.Context, n *domain.Notification) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	key := n.SourceEvent + "/" + n.UserID.Hex()
	if n.SourceEvent != "" && r.seen[key] {
		return repository.ErrDuplicate
	}
	r.seen[key] = true
	r.Created = append(r.Created, n)
	return nil
}

func (r *MockNotifications) GetByID(context.Context, primitive.ObjectID) (*domain.Notification, error) {
	return nil, repository.ErrNotificationNotFound
}

func (r *MockNotifications) ListByUser(context.Context, primitive.ObjectID, int) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *MockNotifications) MarkRead(context.Context, primitive.ObjectID) error { return nil }

func (r *MockNotifications) MarkAllRead(context.Context, primitive.ObjectID) (int64, error) {
	return 0, nil
}

func (r *MockNotifications) Delete(context.Context, primitive.ObjectID) error { return nil }

func (r *MockNotifications) count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.Created)
}

type MockReader struct {
	m         sync.Mutex
	queue     []kafkaGo.Message
	Committed []kafkaGo.Message
}

func (r *MockReader) FetchMessage(ctx context.Context) (kafkaGo.Message, error) {
	r.m.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.m.Unlock()
		return msg, nil
	}
	r.m.Unlock()
	<-ctx.Done()
	return kafkaGo.Message{}, ctx.Err()
}

func (r *MockReader) CommitMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.Committed = append(r.Committed, msgs...)
	return nil
}

func (r *MockReader) Close() error { return nil }

func (r *MockReader) committed() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.Committed)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAudit(t *testing.T) *audit.Store {
	store, err := audit.NewStore(audit.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations("../audit/migrations"))
	t.Cleanup(func() { store.Close() })
	return store
}

func newMessage(t *testing.T, p domain.EventPayload) kafkaGo.Message {
	t.Helper()
	ev, err := domain.NewOutboxEvent(p)
	require.NoError(t, err)
	return kafkaGo.Message{Key: []byte(ev.AggregateID), Value: ev.Payload}
}

func bidPayload(seller, bidder primitive.ObjectID) domain.EventPayload {
	return domain.EventPayload{
		EventType:  domain.EventBidPlaced,
		EntityType: "product",
		EntityID:   primitive.NewObjectID().Hex(),
		ActorID:    bidder.Hex(),
		Recipients: []string{seller.Hex()},
		Title:      "New bid",
		Text:       "A new bid of 25.00 was placed on Vintage camera",
		Link:       "/products/1",
		Amount:     25,
	}
}

func newTestConsumer(reader *MockReader, notifications *MockNotifications, store *audit.Store) *Consumer {
	return &Consumer{
		reader:        reader,
		notifications: notifications,
		recorder:      store,
		log:           testLogger(),
		backoff:       time.Millisecond,
	}
}

func TestProcessMessage_CreatesNotificationAndAudit(t *testing.T) {
	seller, bidder := primitive.NewObjectID(), primitive.NewObjectID()
	msg := newMessage(t, bidPayload(seller, bidder))
	reader := &MockReader{queue: []kafkaGo.Message{msg}}
	notifications := &MockNotifications{}
	store := setupAudit(t)
	ctx := context.Background()

	newTestConsumer(reader, notifications, store).processMessage(ctx)

	require.Len(t, notifications.Created, 1)
	n := notifications.Created[0]
	assert.Equal(t, seller, n.UserID)
	assert.Equal(t, string(domain.EventBidPlaced), n.Type)
	assert.Equal(t, "New bid", n.Title)
	assert.Equal(t, "/products/1", n.Link)
	require.NotNil(t, n.RelatedEntity)
	assert.Equal(t, "product", n.RelatedEntity.Type)
	assert.NotEmpty(t, n.SourceEvent)

	entries, err := store.ListAudit(ctx, audit.Filter{EntityType: "product"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.EventBidPlaced), entries[0].Action)
	assert.Equal(t, bidder.Hex(), entries[0].ChangedBy)
	assert.Equal(t, domain.ActorUser, entries[0].ChangedByType)
	assert.Equal(t, 25.0, entries[0].Details["amount"])

	assert.Equal(t, 1, reader.committed())
}

func TestProcessMessage_RedeliveryIsDeduplicated(t *testing.T) {
	seller, bidder := primitive.NewObjectID(), primitive.NewObjectID()
	msg := newMessage(t, bidPayload(seller, bidder))
	reader := &MockReader{queue: []kafkaGo.Message{msg, msg}}
	notifications := &MockNotifications{}
	c := newTestConsumer(reader, notifications, setupAudit(t))

	c.processMessage(context.Background())
	c.processMessage(context.Background())

	assert.Equal(t, 1, notifications.count())
	assert.Equal(t, 2, reader.committed())
}

func TestProcessMessage_SystemEventWithoutActor(t *testing.T) {
	winner := primitive.NewObjectID()
	msg := newMessage(t, domain.EventPayload{
		EventType:  domain.EventAuctionWon,
		EntityType: "product",
		EntityID:   primitive.NewObjectID().Hex(),
		Recipients: []string{winner.Hex(), "not-an-id"},
		Title:      "Auction won",
	})
	reader := &MockReader{queue: []kafkaGo.Message{msg}}
	notifications := &MockNotifications{}
	store := setupAudit(t)

	newTestConsumer(reader, notifications, store).processMessage(context.Background())

	require.Len(t, notifications.Created, 1)
	assert.Equal(t, winner, notifications.Created[0].UserID)

	entries, err := store.ListAudit(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActorSystem, entries[0].ChangedByType)
}

func TestProcessMessage_MalformedIsCommittedWithoutSideEffects(t *testing.T) {
	reader := &MockReader{queue: []kafkaGo.Message{
		{Value: []byte("{not json")},
		{Value: []byte(`{"entity_type":"order"}`)},
	}}
	notifications := &MockNotifications{}
	store := setupAudit(t)
	c := newTestConsumer(reader, notifications, store)

	c.processMessage(context.Background())
	c.processMessage(context.Background())

	assert.Empty(t, notifications.Created)
	entries, err := store.ListAudit(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, reader.committed())
}

func TestProcessMessage_StoreFailureIsRetriedThenDropped(t *testing.T) {
	msg := newMessage(t, bidPayload(primitive.NewObjectID(), primitive.NewObjectID()))
	reader := &MockReader{queue: []kafkaGo.Message{msg}}
	notifications := &MockNotifications{CreateErr: errors.New("mongo unavailable")}
	store := setupAudit(t)

	newTestConsumer(reader, notifications, store).processMessage(context.Background())

	assert.Empty(t, notifications.Created)
	entries, err := store.ListAudit(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, reader.committed())
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := newTestConsumer(&MockReader{}, &MockNotifications{}, setupAudit(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}
	return brokers[0], cleanup
}

func setupMongo(t *testing.T) (repository.NotificationRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := repository.ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	require.NoError(t, repository.CreateIndexes(ctx, db))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongo container: %s", err)
		}
	}
	return repository.NewNotificationRepository(db), cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestConsumer_DuplicateDeliveryCreatesOneNotification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerAddr, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	notifications, cleanupMongo := setupMongo(t)
	defer cleanupMongo()

	const topic = "marketplace-events"
	createTopic(t, brokerAddr, topic)

	seller := primitive.NewObjectID()
	msg := newMessage(t, bidPayload(seller, primitive.NewObjectID()))
	var payload domain.EventPayload
	require.NoError(t, json.Unmarshal(msg.Value, &payload))

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokerAddr),
		Topic:                  topic,
		Balancer:               &kafkaGo.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()
	// Same event twice, as the outbox poller does after a failed mark.
	require.NoError(t, w.WriteMessages(ctx, kafkaGo.Message{Key: msg.Key, Value: msg.Value}))
	require.NoError(t, w.WriteMessages(ctx, kafkaGo.Message{Key: msg.Key, Value: msg.Value}))

	c := NewConsumer(notifications, setupAudit(t), topic, "ecofinds-test", testLogger(), brokerAddr)
	defer c.Close()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		list, err := notifications.ListByUser(ctx, seller, 10)
		return err == nil && len(list) > 0
	}, 20*time.Second, 500*time.Millisecond)

	time.Sleep(2 * time.Second)

	list, err := notifications.ListByUser(ctx, seller, 10)
	require.NoError(t, err)
	require.Len(t, list, 1, "should only have one notification despite duplicate messages")
	assert.Equal(t, payload.Title, list[0].Title)
}
