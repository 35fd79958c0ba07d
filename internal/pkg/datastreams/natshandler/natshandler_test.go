package natshandler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

type recorder struct {
	subjects []string
	data     [][]byte
}

func (r *recorder) Publish(subject string, data []byte) error {
	r.subjects = append(r.subjects, subject)
	r.data = append(r.data, data)
	return nil
}

func newHandler(t *testing.T) Handler {
	h, _ := newHandlerOn(t)
	return h
}

func newHandlerOn(t *testing.T) (Handler, *msg.PubSub) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New("./natshandler_test_config.json", pub)
	assert.NilError(t, err)
	return h, pub
}

func TestGetConfig(t *testing.T) {
	h := newHandler(t)
	assert.Equal(t, h.config.Server, "nats://localhost:4222")
	assert.Equal(t, h.config.Subject, "grid.opf")
}

func TestPublishResults(t *testing.T) {
	h := newHandler(t)
	rec := &recorder{}

	r := dcopf.Results{PID: uuid.New(), Network: "TEST_Three Bus", Solved: true, Objective: 7}
	assert.NilError(t, h.publish(rec, msg.New(uuid.New(), msg.Status, r)))
	assert.NilError(t, h.publish(rec, msg.New(uuid.New(), msg.Config, map[string]int{"Islands": 1})))

	assert.DeepEqual(t, rec.subjects, []string{"grid.opf.results.TEST_Three_Bus", "grid.opf.networks"})

	decoded := dcopf.Results{}
	assert.NilError(t, json.Unmarshal(rec.data[0], &decoded))
	assert.Equal(t, decoded.PID, r.PID)
	assert.Equal(t, decoded.Objective, 7.0)
}

func TestToken(t *testing.T) {
	assert.Equal(t, token("a.b*c>d e"), "a_b_c_d_e")
}

func TestRunForwardsEverything(t *testing.T) {
	h, pub := newHandlerOn(t)
	rec := &recorder{}

	const steps = 60
	for i := 0; i < steps; i++ {
		pub.Publish(msg.Status, dcopf.Results{PID: uuid.New(), Network: "TEST_Series", Time: i})
	}
	pub.Publish(msg.Config, map[string]int{"Islands": 1})
	pub.Close()

	done := make(chan struct{})
	go func() {
		h.run(rec)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the publisher closed")
	}

	assert.Equal(t, len(rec.subjects), steps+1)
	results := 0
	for _, s := range rec.subjects {
		if s == "grid.opf.results.TEST_Series" {
			results++
		}
	}
	assert.Equal(t, results, steps)
}
