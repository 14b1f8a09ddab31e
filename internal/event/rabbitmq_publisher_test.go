package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	ret := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return ret.Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ret := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return ret.Error(0)
}

func (m *MockChannel) Close() error {
	ret := m.Called()
	return ret.Error(0)
}

type MockChannelOpener struct {
	mock.Mock
}

func (m *MockChannelOpener) Channel() (Channel, error) {
	ret := m.Called()
	var ch Channel
	if ret.Get(0) != nil {
		ch = ret.Get(0).(Channel)
	}
	return ch, ret.Error(1)
}

func newTestPublisher(t *testing.T) (*RabbitMQEventPublisher, *MockChannelOpener, *MockChannel) {
	t.Helper()
	opener := new(MockChannelOpener)
	ch := new(MockChannel)
	opener.On("Channel").Return(ch, nil)
	ch.On("ExchangeDeclare", "credit-engine", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil).Once()
	ch.On("Close").Return(nil)

	pub, err := NewRabbitMQEventPublisher(opener, "credit-engine", testLogger)
	require.NoError(t, err)
	return pub, opener, ch
}

func TestNewRabbitMQEventPublisher_Validation(t *testing.T) {
	_, err := NewRabbitMQEventPublisher(nil, "x", testLogger)
	assert.Error(t, err)

	_, err = NewRabbitMQEventPublisher(new(MockChannelOpener), "", testLogger)
	assert.Error(t, err)
}

func TestNewRabbitMQEventPublisher_DeclareFails(t *testing.T) {
	opener := new(MockChannelOpener)
	ch := new(MockChannel)
	opener.On("Channel").Return(ch, nil)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	pub, err := NewRabbitMQEventPublisher(opener, "credit-engine", testLogger)

	assert.Nil(t, pub)
	assert.ErrorContains(t, err, "failed to declare exchange")
	ch.AssertCalled(t, "Close")
}

func TestPublishLoanApproved(t *testing.T) {
	pub, _, ch := newTestPublisher(t)
	evt := LoanApprovedEvent{
		LoanID:             7,
		CustomerID:         3,
		LoanAmount:         100_000,
		InterestRate:       12,
		Tenure:             12,
		MonthlyInstallment: 8884.88,
		Timestamp:          time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	ch.On("PublishWithContext", mock.Anything, "credit-engine", RoutingKeyLoanApproved, false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var got LoanApprovedEvent
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.AppId == publisherAppID &&
				got.LoanID == 7 && got.MonthlyInstallment == 8884.88
		})).Return(nil).Once()

	err := pub.PublishLoanApproved(context.Background(), evt)

	assert.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublishCustomerRegistered_ChannelError(t *testing.T) {
	pub, opener, _ := newTestPublisher(t)
	opener.ExpectedCalls = nil
	opener.On("Channel").Return(nil, errors.New("connection closed"))

	err := pub.PublishCustomerRegistered(context.Background(), CustomerRegisteredEvent{CustomerID: 1})

	assert.ErrorContains(t, err, "failed to open channel")
}

func TestPublishCustomerRegistered_PublishError(t *testing.T) {
	pub, _, ch := newTestPublisher(t)
	ch.On("PublishWithContext", mock.Anything, "credit-engine", RoutingKeyCustomerRegistered, false, false, mock.Anything).
		Return(errors.New("channel/connection is not open"))

	err := pub.PublishCustomerRegistered(context.Background(), CustomerRegisteredEvent{CustomerID: 1})

	assert.ErrorContains(t, err, "failed to publish message")
}

func TestNoopPublisher(t *testing.T) {
	var p EventPublisher = NoopPublisher{}
	assert.NoError(t, p.PublishCustomerRegistered(context.Background(), CustomerRegisteredEvent{}))
	assert.NoError(t, p.PublishLoanApproved(context.Background(), LoanApprovedEvent{}))
}
