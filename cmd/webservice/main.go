package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/ohowland/cgc_opf/internal/pkg/config"
	"github.com/ohowland/cgc_opf/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_opf/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_opf/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_opf/internal/pkg/webservice"
)

func main() {
	configPath := flag.String("config", "", "run configuration (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("[Main] ", err)
	}

	d, err := lpdispatch.New(cfg, nil)
	if err != nil {
		log.Fatal("[Main] ", err)
	}

	if cfg.Sinks.Mongo != "" {
		h, err := mongodb.New(cfg.Sinks.Mongo, d)
		if err != nil {
			log.Fatal("[Main] ", err)
		}
		go h.Process()
	}
	if cfg.Sinks.NATS != "" {
		h, err := natshandler.New(cfg.Sinks.NATS, d)
		if err != nil {
			log.Fatal("[Main] ", err)
		}
		go h.Process()
	}
	if cfg.Sinks.SQL != "" {
		h, err := sqldb.New(cfg.Sinks.SQL, d)
		if err != nil {
			log.Fatal("[Main] ", err)
		}
		go h.Process()
	}

	app := webservice.App{Dispatcher: d}
	r := app.Router()
	http.Handle("/", r)

	log.Println("Starting Server on Port", cfg.Listen)
	log.Fatal(http.ListenAndServe(cfg.Listen, r))
}
