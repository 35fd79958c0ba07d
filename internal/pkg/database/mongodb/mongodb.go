package mongodb

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	resultCollection  = "opfResults"
	networkCollection = "opfNetworks"
)

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
	done   chan struct{}
}

type config struct {
	URI      string `json:"URI"`
	Database string `json:"Database"`
	Port     string `json:"Port"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg, wg *sync.WaitGroup) {
	defer wg.Done()
	for m := range chIn {
		chOut <- m
	}
}

func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}

	pid, _ := uuid.NewUUID()

	inbox := make(chan msg.Msg, 50)
	wg := &sync.WaitGroup{}

	chStatus, err := system.Subscribe(pid, msg.Status)
	if err != nil {
		return Handler{}, err
	}
	wg.Add(1)
	go redirectMsg(chStatus, inbox, wg)

	chConfig, err := system.Subscribe(pid, msg.Config)
	if err != nil {
		return Handler{}, err
	}
	wg.Add(1)
	go redirectMsg(chConfig, inbox, wg)

	// the inbox closes once the publisher has closed every subscription
	go func() {
		wg.Wait()
		close(inbox)
	}()

	stop := make(chan bool, 1)

	return Handler{
		mux:    &sync.Mutex{},
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   stop,
		done:   make(chan struct{}),
	}, nil
}

func (h Handler) uri() string {
	if h.config.Port == "" {
		return h.config.URI
	}
	return h.config.URI + ":" + h.config.Port
}

// resultFilter selects the document of a result. Results are keyed by their
// own PID, summaries by the network name.
func resultFilter(m msg.Msg) bson.M {
	if r, ok := m.Payload().(dcopf.Results); ok {
		return bson.M{"pid": r.PID.String()}
	}
	return bson.M{"pid": m.PID().String()}
}

func msgToBSON(m msg.Msg) bson.D {
	//TODO: PID should be written as a binary of subtype 0x04 (UUID standard).
	// currently written as a string.
	filter := resultFilter(m)
	return bson.D{
		{Key: "$set", Value: bson.M{
			"pid":    filter["pid"],
			"sender": m.PID().String(),
			"data":   m.Payload(),
		}},
	}
}

// StopProcess ends Process after the messages already in the inbox are
// written.
func (h *Handler) StopProcess() {
	h.stop <- true
}

// Done is closed when Process returns.
func (h Handler) Done() <-chan struct{} {
	return h.done
}

func (h Handler) Process() {
	defer close(h.done)
	//TODO: Handle reconnection to the MongoDB resource
	client, err := mongo.NewClient(options.Client().ApplyURI(h.uri()))
	if err != nil {
		log.Println("[Mongo]", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		log.Println("[Mongo]", err)
		return
	}
	defer client.Disconnect(context.Background())

	db := client.Database(h.config.Database)
	write := func(m msg.Msg) {
		collection := networkCollection
		if m.Topic() == msg.Status {
			collection = resultCollection
		}
		if err := upsert(db.Collection(collection), m); err != nil {
			log.Printf("[Mongo] %s: %v", collection, err)
		}
	}

	log.Println("[Mongo] Process Started")
loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			write(m)
		case <-h.stop:
			drain(h.inbox, write)
			break loop
		}
	}
	log.Println("[Mongo] Process Shutdown")
}

// drain hands every message already buffered in inbox to fn.
func drain(inbox <-chan msg.Msg, fn func(msg.Msg)) {
	for {
		select {
		case m, ok := <-inbox:
			if !ok {
				return
			}
			fn(m)
		default:
			return
		}
	}
}

func upsert(c *mongo.Collection, m msg.Msg) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts := options.Update().SetUpsert(true)
	_, err := c.UpdateOne(ctx, resultFilter(m), msgToBSON(m), opts)
	return err
}
