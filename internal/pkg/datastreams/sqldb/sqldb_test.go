package sqldb

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func newHandler(path string) (Handler, error) {
	pid, _ := uuid.NewUUID()
	pub := msg.NewPublisher(pid)
	return New(path, pub)
}

func TestGetConfig(t *testing.T) {
	h, err := newHandler("./sqldb_test_config.json")
	assert.NilError(t, err)

	assert.Equal(t, h.config.Port, 5432)
	assert.Equal(t, h.config.Server, "localhost")
	assert.Equal(t, h.config.Table, "opf_results")

	dsn, err := h.config.dsn()
	assert.NilError(t, err)
	assert.Equal(t, dsn, "host=localhost port=5432 user=opf password=opf dbname=grid sslmode=disable")
}

func TestBadDriver(t *testing.T) {
	_, err := newHandler("./sqldb_test_bad_driver.json")
	assert.ErrorIs(t, err, ErrDriver)
}

func TestBadTable(t *testing.T) {
	_, err := newHandler("./sqldb_test_bad_table.json")
	assert.ErrorIs(t, err, ErrTable)
}

func TestTableName(t *testing.T) {
	for _, name := range []string{"opf_results", "_r", "Results2"} {
		assert.NilError(t, config{Driver: "mysql", Table: name}.validate(), name)
	}
	for _, name := range []string{"", "2results", "opf.results", "r`x", "r\"x", "a b", strings.Repeat("t", 64)} {
		assert.ErrorIs(t, config{Driver: "mysql", Table: name}.validate(), ErrTable, name)
	}
}

func TestOpenDoesNotConnect(t *testing.T) {
	h, err := newHandler("./sqldb_test_config.json")
	assert.NilError(t, err)

	db, err := h.DB()
	assert.NilError(t, err)
	assert.NilError(t, db.Close())
}

func TestStatements(t *testing.T) {
	mysql := config{Driver: "mysql", Table: "results"}
	postgres := config{Driver: "postgres", Table: "results"}

	assert.Assert(t, strings.HasSuffix(insertStatement(mysql), "VALUES (?, ?, ?, ?, ?, ?, ?, ?)"))
	assert.Assert(t, strings.HasSuffix(insertStatement(postgres), "VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"))
	assert.Assert(t, strings.Contains(createStatement(mysql), "data BLOB"))
	assert.Assert(t, strings.Contains(createStatement(postgres), "data JSONB"))

	dsn, err := mysql.dsn()
	assert.NilError(t, err)
	assert.Equal(t, dsn, ":@tcp(:0)/")
}

func TestRowValues(t *testing.T) {
	r := dcopf.Results{
		PID:       uuid.New(),
		Network:   "TEST_net",
		Mode:      "overload",
		Time:      2,
		Solved:    true,
		Status:    "Optimal",
		Objective: 7,
	}
	values, err := rowValues(r)
	assert.NilError(t, err)
	assert.Equal(t, len(values), strings.Count(insertStatement(config{Driver: "mysql"}), "?"))
	assert.Equal(t, values[0], r.PID.String())
	assert.Equal(t, values[3], 2)
	assert.Assert(t, strings.Contains(string(values[7].([]byte)), `"Network":"TEST_net"`))
}
