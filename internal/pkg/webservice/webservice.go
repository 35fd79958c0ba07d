package webservice

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/metrics"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const contentType = "application/json; charset=UTF-8"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"Error"`
}

// App serves the dispatcher over HTTP.
type App struct {
	Dispatcher dispatch.Dispatcher
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", wrapHandler("/", app.BaseHandler))
	r.HandleFunc("/opf", wrapHandler("/opf", app.SolveHandler)).Methods("POST")
	r.HandleFunc("/opf", wrapHandler("/opf", app.HistoryHandler)).Methods("GET")
	r.HandleFunc("/opf/stream", app.StreamHandler).Methods("GET")
	r.HandleFunc("/opf/{pid}", wrapHandler("/opf/{pid}", app.ResultHandler)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func wrapHandler(path string, handler func(w http.ResponseWriter, r *http.Request),
) func(w http.ResponseWriter, r *http.Request) {
	h := func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
	}
	return h
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Println("[Webservice] write failed:", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
}

// SolveHandler solves the network snapshot in the request body. The mode
// query parameter overrides the relaxation mode, t selects one profile index
// and series=true solves every profile index.
func (app *App) SolveHandler(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	net, err := powersystem.New(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := app.Dispatcher.NewRequest(net)
	query := r.URL.Query()
	if mode := query.Get("mode"); mode != "" {
		req.Options.Mode, err = dcopf.ParseMode(mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if t := query.Get("t"); t != "" {
		step, err := strconv.Atoi(t)
		if err == nil {
			err = net.CheckTimeIndex(step)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Steps = []int{step}
	}
	if query.Get("series") == "true" {
		req.Steps = nil
		for t := 0; t < net.Steps(); t++ {
			req.Steps = append(req.Steps, t)
		}
	}

	results, err := app.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		log.Println("[Webservice] dispatch failed:", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, results)
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Dispatcher.History())
}

func (app *App) ResultHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pid, err := uuid.Parse(vars["pid"])
	if err != nil {
		log.Println("[Webservice] malformed UUID:", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, ok := app.Dispatcher.Result(pid)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no result " + pid.String()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// StreamHandler upgrades to a web socket and forwards every new result as a
// JSON text message until the client disconnects.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pid := uuid.New()
	ch, err := app.Dispatcher.Subscribe(pid, msg.Status)
	if err != nil {
		log.Println("[Webservice] subscribe failed:", err)
		return
	}
	defer app.Dispatcher.Unsubscribe(pid)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(m.Payload()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
