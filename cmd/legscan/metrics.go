package main

import "github.com/prometheus/client_golang/prometheus"

// newScrapeRegistry returns a private Prometheus registry so repeated
// runs (e.g. under test) never collide with the process-wide default
// registerer's metric names.
func newScrapeRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
