package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"

	nats "github.com/nats-io/nats.go"
)

// Publisher is the part of a NATS connection the handler uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
	done   chan struct{}
}

type config struct {
	Server  string `json:"Server"`
	Subject string `json:"Subject"`
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
	cfg := config{Server: nats.DefaultURL, Subject: "opf"}
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

func (h *Handler) Stop() {
	h.stop <- true
}

// subject returns the NATS subject of m: <Subject>.results.<network> for
// results and <Subject>.networks for summaries.
func (h Handler) subject(m msg.Msg) string {
	switch m.Topic() {
	case msg.Status:
		if r, ok := m.Payload().(dcopf.Results); ok && r.Network != "" {
			return h.config.Subject + ".results." + token(r.Network)
		}
		return h.config.Subject + ".results"
	}
	return h.config.Subject + ".networks"
}

// token replaces the characters NATS treats as subject separators or wildcards.
func token(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '.', '*', '>', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}

func (h Handler) publish(nc Publisher, m msg.Msg) error {
	data, err := json.Marshal(m.Payload())
	if err != nil {
		return err
	}
	return nc.Publish(h.subject(m), data)
}

// Done is closed when Process returns.
func (h Handler) Done() <-chan struct{} {
	return h.done
}

func (h Handler) Process() {
	defer close(h.done)
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		log.Printf("[NATS client] unable to connect to %s: %v", h.config.Server, err)
		return
	}
	defer nc.Close()

	h.run(nc)
	if err := nc.Flush(); err != nil {
		log.Printf("[NATS client] flush: %v", err)
	}
	log.Println("[NATS client] Process Shutdown")
}

// run publishes inbox messages until the inbox closes, or until Stop after
// the buffered messages are sent.
func (h Handler) run(nc Publisher) {
	send := func(m msg.Msg) {
		if err := h.publish(nc, m); err != nil {
			log.Printf("[NATS client] unable to publish to nats server: %v", err)
		}
	}
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				return
			}
			send(m)
		case <-h.stop:
			for {
				select {
				case m, ok := <-h.inbox:
					if !ok {
						return
					}
					send(m)
				default:
					return
				}
			}
		}
	}
}
