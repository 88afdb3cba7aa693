package msg

import (
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func newPID(t *testing.T) uuid.UUID {
	pid, err := uuid.NewUUID()
	assert.NilError(t, err)
	return pid
}

func TestSubscribe(t *testing.T) {
	pidPub := newPID(t)
	pubsub := NewPublisher(pidPub)

	ch1, err := pubsub.Subscribe(newPID(t), Result)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(newPID(t), Result)
	assert.NilError(t, err)

	pubsub.Publish(Result, 42.0)

	for _, ch := range []<-chan Msg{ch1, ch2} {
		incoming := <-ch
		assert.Equal(t, incoming.Payload(), 42.0)
		assert.Equal(t, incoming.Topic(), Result)
		assert.Equal(t, incoming.PID(), pidPub)
	}
}

func TestSubscribeFiltersTopic(t *testing.T) {
	pubsub := NewPublisher(newPID(t))
	ch, err := pubsub.Subscribe(newPID(t), Status)
	assert.NilError(t, err)

	pubsub.Publish(Progress, "ignored")
	pubsub.Publish(Status, "started")

	m := <-ch
	assert.Equal(t, m.Payload(), "started")
	assert.Equal(t, len(ch), 0)
}

func TestSubscribeTwiceReturnsSameChannel(t *testing.T) {
	pubsub := NewPublisher(newPID(t))
	pid := newPID(t)
	ch1, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)
	assert.Equal(t, ch1, ch2)
}

func TestUnsubscribe(t *testing.T) {
	pubsub := NewPublisher(newPID(t))
	pid := newPID(t)
	ch, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)

	pubsub.Unsubscribe(pid)
	_, ok := <-ch
	assert.Assert(t, !ok)

	pubsub.Publish(Status, "nobody listening")
}

func TestForwardKeepsSender(t *testing.T) {
	pubsub := NewPublisher(newPID(t))
	ch, err := pubsub.Subscribe(newPID(t), Progress)
	assert.NilError(t, err)

	sender := newPID(t)
	pubsub.Forward(New(sender, Progress, 1))
	assert.Equal(t, (<-ch).PID(), sender)
}

func TestClose(t *testing.T) {
	pubsub := NewPublisher(newPID(t))
	ch, err := pubsub.Subscribe(newPID(t), Result)
	assert.NilError(t, err)

	pubsub.Close()
	_, ok := <-ch
	assert.Assert(t, !ok)

	_, err = pubsub.Subscribe(newPID(t), Result)
	assert.Equal(t, err, ErrClosed)
	pubsub.Publish(Result, "dropped")
}
