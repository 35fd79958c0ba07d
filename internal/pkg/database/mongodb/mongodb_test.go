package mongodb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func TestGetConfig(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New("./mongodb_test_config.json", pub)
	assert.NilError(t, err)

	assert.Equal(t, h.uri(), "mongodb://localhost:27017")
	assert.Equal(t, h.config.Database, "cgc_opf")
	assert.Equal(t, pub.Subscribers(msg.Status), 1)
	assert.Equal(t, pub.Subscribers(msg.Config), 1)
}

func TestMissingConfig(t *testing.T) {
	_, err := New("./does_not_exist.json", msg.NewPublisher(uuid.New()))
	assert.Assert(t, err != nil)
}

func TestMsgToBSON(t *testing.T) {
	sender := uuid.New()
	r := dcopf.Results{PID: uuid.New(), Network: "TEST_net", Solved: true}

	doc := msgToBSON(msg.New(sender, msg.Status, r))
	assert.Equal(t, len(doc), 1)
	assert.Equal(t, doc[0].Key, "$set")

	set := doc[0].Value.(bson.M)
	assert.Equal(t, set["pid"], r.PID.String())
	assert.Equal(t, set["sender"], sender.String())

	raw, err := bson.Marshal(doc)
	assert.NilError(t, err)
	assert.Assert(t, len(raw) > 0)
}

func TestResultFilter(t *testing.T) {
	sender := uuid.New()
	assert.DeepEqual(t, resultFilter(msg.New(sender, msg.Config, "summary")), bson.M{"pid": sender.String()})
}
