package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// DialogueSnapshot summarizes dialogue counters for the admin API.
type DialogueSnapshot struct {
	Turns         int64            `json:"turns"`
	Interruptions int64            `json:"interruptions"`
	Exhausted     map[string]int64 `json:"retries_exhausted"`
	Leads         map[string]int64 `json:"leads"`
	Extractions   map[string]int64 `json:"extractions"`
}

// Snapshot reads the dialogue families out of gatherer.
func Snapshot(gatherer prometheus.Gatherer) DialogueSnapshot {
	snap := DialogueSnapshot{
		Exhausted:   map[string]int64{},
		Leads:       map[string]int64{},
		Extractions: map[string]int64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "autoparts_dialogue_turns_total":
			snap.Turns = sumCounters(mf)
		case "autoparts_dialogue_interruptions_total":
			snap.Interruptions = sumCounters(mf)
		case "autoparts_dialogue_retries_exhausted_total":
			countByLabel(mf, "slot", snap.Exhausted)
		case "autoparts_dialogue_leads_total":
			countByLabel(mf, "status", snap.Leads)
		case "autoparts_dialogue_extractions_total":
			countByLabel(mf, "outcome", snap.Extractions)
		}
	}
	return snap
}

func sumCounters(mf *dto.MetricFamily) int64 {
	var total float64
	for _, metric := range mf.Metric {
		if metric != nil && metric.GetCounter() != nil {
			total += metric.GetCounter().GetValue()
		}
	}
	return int64(total)
}

func countByLabel(mf *dto.MetricFamily, label string, into map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		for _, lp := range metric.Label {
			if lp != nil && lp.GetName() == label {
				into[lp.GetValue()] += int64(metric.GetCounter().GetValue())
			}
		}
	}
}
