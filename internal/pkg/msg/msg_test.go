package msg

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestSubscribe(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub1, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub2, err := uuid.NewUUID()
	assert.NilError(t, err)

	pubsub := NewPublisher(pidPub)
	ch1, err := pubsub.Subscribe(pidSub1, Status)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pidSub2, Status)
	assert.NilError(t, err)

	randValue := rand.Float64()
	pubsub.Publish(Status, randValue)

	for _, ch := range []<-chan Msg{ch1, ch2} {
		select {
		case incoming := <-ch:
			assert.Equal(t, incoming.Payload(), randValue, "subscriber did not recieve the correct published value")
			assert.Equal(t, incoming.PID(), pidPub)
			assert.Equal(t, incoming.Topic(), Status)
		case <-time.After(time.Second):
			t.Fatal("subscriber timed out")
		}
	}
}

func TestSubscribeTwice(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	_, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)
	_, err = pubsub.Subscribe(pid, Status)
	assert.ErrorIs(t, err, ErrSubscribed)

	_, err = pubsub.Subscribe(pid, Config)
	assert.NilError(t, err)
}

func TestUnsubscribe(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	ch, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)
	assert.Equal(t, pubsub.Subscribers(Status), 1)

	pubsub.Unsubscribe(pid)
	assert.Equal(t, pubsub.Subscribers(Status), 0)

	_, ok := <-ch
	assert.Assert(t, !ok, "channel not closed on unsubscribe")

	pubsub.Publish(Status, 1.0)
}

func TestPublishTopicFilter(t *testing.T) {
	pubsub := NewPublisher(uuid.New())

	chStatus, err := pubsub.Subscribe(uuid.New(), Status)
	assert.NilError(t, err)
	chConfig, err := pubsub.Subscribe(uuid.New(), Config)
	assert.NilError(t, err)

	pubsub.Publish(Config, "network")

	select {
	case m := <-chConfig:
		assert.Equal(t, m.Payload(), "network")
	case <-time.After(time.Second):
		t.Fatal("subscriber timed out")
	}

	select {
	case m := <-chStatus:
		t.Fatalf("status subscriber received %v", m.Payload())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberReceivesEverything(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Status)
	assert.NilError(t, err)

	const n = 60
	for i := 0; i < n; i++ {
		pubsub.Publish(Status, i)
	}
	pubsub.Close()

	var got []int
	for m := range ch {
		got = append(got, m.Payload().(int))
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, len(got), n)
	for i, v := range got {
		assert.Equal(t, v, i, "messages out of order")
	}
}

func TestClose(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Config)
	assert.NilError(t, err)

	pubsub.Publish(Config, "last")
	pubsub.Close()
	pubsub.Close()

	m, ok := <-ch
	assert.Assert(t, ok)
	assert.Equal(t, m.Payload(), "last")
	_, ok = <-ch
	assert.Assert(t, !ok, "channel not closed after close")

	_, err = pubsub.Subscribe(uuid.New(), Config)
	assert.ErrorIs(t, err, ErrClosed)
	pubsub.Publish(Config, "dropped")
	assert.Equal(t, pubsub.Subscribers(Config), 0)
}
