package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/diagnostic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// adminHandler serves metrics and, when store is set, the recent
// diagnostics. It must not be exposed where clients of the public server
// can reach it.
func adminHandler(gatherer prometheus.Gatherer, store *diagnostic.Store, log gimme.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if store != nil {
		mux.HandleFunc("/debug/diagnostics", diagnosticsHandler(store, log))
	}
	return mux
}

// diagnosticsHandler answers ?id=<id> with one diagnostic and otherwise
// with the newest ?n (default 20) of them.
func diagnosticsHandler(store *diagnostic.Store, log gimme.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var body any
		if id := q.Get("id"); id != "" {
			d, ok := store.Get(id)
			if !ok {
				http.NotFound(w, r)
				return
			}
			body = d
		} else {
			n := 20
			if v, err := strconv.Atoi(q.Get("n")); err == nil && v > 0 {
				n = v
			}
			body = store.Recent(n)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error("failed to write diagnostics", "path", r.URL.Path, "error", err)
		}
	}
}
