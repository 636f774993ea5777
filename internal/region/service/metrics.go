package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "privata_region_resolutions_total",
		Help: "Region resolutions by winning signal, or undetermined",
	}, []string{"source"})
	cacheDisagreements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "privata_region_cache_disagreements_total",
		Help: "Cached region mappings contradicted by data and re-read from the store",
	})
)
