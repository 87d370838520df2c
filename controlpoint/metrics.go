package controlpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	addsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlpoint_adds_total",
		Help: "Control point adds by kind and result (added, replaced, redundant)",
	}, []string{"kind", "result"})

	removalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlpoint_removals_total",
		Help: "Control points removed from a timeline by kind",
	}, []string{"kind"})

	groupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "controlpoint_groups_total",
		Help: "Control point groups created and removed",
	}, []string{"op"})
)
