package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

var (
	ErrDriver = errors.New("unsupported sql driver")
	ErrTable  = errors.New("invalid sql table name")
)

// tableName is the identifier form accepted for the result table. The name
// is written into the statements, so nothing that needs quoting is allowed.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
	done   chan struct{}
}

type config struct {
	Driver   string `json:"Driver"`
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
	Table    string `json:"Table"`
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
	cfg := config{Driver: "mysql", Table: "opf_results"}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if err := cfg.validate(); err != nil {
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

func (c config) validate() error {
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("%w: %q", ErrTable, c.Table)
	}
	_, err := c.dsn()
	return err
}

func (c config) dsn() (string, error) {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%v:%v@tcp(%v:%v)/%v", c.Username, c.Password, c.Server, c.Port, c.Database), nil
	case "postgres":
		return fmt.Sprintf("host=%v port=%v user=%v password=%v dbname=%v sslmode=disable",
			c.Server, c.Port, c.Username, c.Password, c.Database), nil
	}
	return "", fmt.Errorf("%w: %q", ErrDriver, c.Driver)
}

func (h Handler) DB() (*sql.DB, error) {
	dsn, err := h.config.dsn()
	if err != nil {
		return nil, err
	}
	return sql.Open(h.config.Driver, dsn)
}

// Done is closed when Process returns.
func (h Handler) Done() <-chan struct{} {
	return h.done
}

func (h Handler) Process() {
	defer close(h.done)
	db, err := h.DB()
	if err != nil {
		log.Printf("[SQL] unable to open database: %v", err)
		return
	}
	defer db.Close()

	if err := initDBTables(db, h.config); err != nil {
		log.Printf("[SQL] unable to create table %s: %v", h.config.Table, err)
		return
	}

	insert := func(m msg.Msg) {
		r, ok := m.Payload().(dcopf.Results)
		if m.Topic() != msg.Status || !ok {
			return
		}
		if err := insertRow(db, h.config, r); err != nil {
			log.Printf("[SQL] error %s update db", err)
		}
	}

	log.Println("[SQL] Process Started")
loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			insert(m)
		case <-h.stop:
			for {
				select {
				case m, ok := <-h.inbox:
					if !ok {
						break loop
					}
					insert(m)
				default:
					break loop
				}
			}
		}
	}
	log.Println("[SQL] Process Shutdown")
}

func createStatement(c config) string {
	data := "BLOB"
	if c.Driver == "postgres" {
		data = "JSONB"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s(
	pid VARCHAR(36) PRIMARY KEY,
	network VARCHAR(255),
	mode VARCHAR(16),
	step INTEGER,
	solved BOOLEAN,
	status VARCHAR(16),
	objective DOUBLE PRECISION,
	data %s)`, c.Table, data)
}

func insertStatement(c config) string {
	args := "?, ?, ?, ?, ?, ?, ?, ?"
	if c.Driver == "postgres" {
		args = "$1, $2, $3, $4, $5, $6, $7, $8"
	}
	return fmt.Sprintf(`INSERT INTO %s (pid, network, mode, step, solved, status, objective, data) VALUES (%s)`, c.Table, args)
}

func initDBTables(db *sql.DB, c config) error {
	_, err := db.Exec(createStatement(c))
	return err
}

// rowValues returns the column values of r in insertStatement order.
func rowValues(r dcopf.Results) ([]interface{}, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		r.PID.String(),
		r.Network,
		r.Mode,
		r.Time,
		r.Solved,
		r.Status,
		r.Objective,
		data,
	}, nil
}

func insertRow(db *sql.DB, c config, r dcopf.Results) error {
	values, err := rowValues(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_, err = db.ExecContext(ctx, insertStatement(c), values...)
	return err
}
