package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmbakery/bakeshop/pkg/models"
)

func newTestProducer(t *testing.T) (*KafkaProducer, *mocks.SyncProducer) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)

	return &KafkaProducer{producer: mock, logger: logger}, mock
}

func TestPublishOrderPlaced(t *testing.T) {
	producer, mock := newTestProducer(t)

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderPlacedEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		assert.Equal(t, int64(42), event.OrderID)
		assert.Equal(t, "a@x.com", event.CustomerEmail)
		require.Len(t, event.Items, 1)
		assert.Equal(t, int64(1), event.Items[0].ProductID)
		assert.Equal(t, 2, event.Items[0].Quantity)
		assert.False(t, event.EventTime.IsZero())
		return nil
	})

	err := producer.PublishOrderPlaced(OrderPlacedEvent{
		OrderID:       42,
		CustomerEmail: "a@x.com",
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 2}},
		PlacedAt:      time.Now(),
	})
	require.NoError(t, err)
}

func TestPublishOrderPlacedBrokerError(t *testing.T) {
	producer, mock := newTestProducer(t)

	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishOrderPlaced(OrderPlacedEvent{OrderID: 7})
	assert.Error(t, err)
}
