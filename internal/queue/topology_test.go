package queue

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declared struct {
	kind string
	name string
	args amqp.Table
}

type fakeDeclarer struct {
	calls   []declared
	failOn  string
	failErr error
}

func (f *fakeDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.calls = append(f.calls, declared{"exchange", name, args})
	if f.failOn == name {
		return f.failErr
	}
	return nil
}

func (f *fakeDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.calls = append(f.calls, declared{"queue", name, args})
	if f.failOn == name {
		return amqp.Queue{}, f.failErr
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.calls = append(f.calls, declared{"bind", name + "->" + exchange, args})
	return nil
}

func TestDeclareTopology(t *testing.T) {
	d := &fakeDeclarer{}
	require.NoError(t, Declare(d, "tickethub", 5))

	require.Len(t, d.calls, 4)
	assert.Equal(t, declared{"exchange", DeadLetterExchange, nil}, d.calls[0])
	assert.Equal(t, "tickethub-poison", d.calls[1].name)
	assert.Equal(t, "tickethub-poison->"+DeadLetterExchange, d.calls[2].name)

	main := d.calls[3]
	assert.Equal(t, "tickethub", main.name)
	assert.Equal(t, "quorum", main.args["x-queue-type"])
	assert.Equal(t, int32(5), main.args["x-delivery-limit"])
	assert.Equal(t, DeadLetterExchange, main.args["x-dead-letter-exchange"])
	assert.Equal(t, "tickethub-poison", main.args["x-dead-letter-routing-key"])
}

func TestQueueArgsWithoutLimit(t *testing.T) {
	args := QueueArgs("q", 0)
	_, ok := args["x-delivery-limit"]
	assert.False(t, ok)
	assert.NoError(t, args.Validate())
}

func TestDeclarePropagatesErrors(t *testing.T) {
	boom := errors.New("PRECONDITION_FAILED")
	d := &fakeDeclarer{failOn: "tickethub", failErr: boom}

	err := Declare(d, "tickethub", 5)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "queue declare")
}
