package detector

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/model"
)

// clusterDetections finds temporal-spatial clusters among the qualifying
// alerts and builds a detection per cluster. Clustering is additive: the
// members' individual detections are already emitted and stay emitted.
func (d *ScoringDetector) clusterDetections(scored []model.ScoredAlert) []model.Detection {
	if !d.clustering || len(scored) < d.minAlerts {
		return nil
	}

	var detections []model.Detection
	for _, cluster := range d.findClusters(scored) {
		det, err := d.clusterDetection(cluster)
		if err != nil {
			zap.L().Error("detector: building cluster detection failed",
				zap.String("detector", d.name),
				zap.Int("cluster_size", len(cluster)),
				zap.Error(err),
			)
			continue
		}
		detections = append(detections, det)
	}
	return detections
}

// findClusters partitions alerts by resolved location, then walks each
// group in timestamp order collecting maximal runs whose consecutive gaps
// stay within the window. The window chains from each alert to its
// immediate predecessor, not from the run's first member. Alerts without a
// resolved location never cluster.
func (d *ScoringDetector) findClusters(scored []model.ScoredAlert) [][]model.ScoredAlert {
	groups := map[int64][]model.ScoredAlert{}
	var order []int64
	for _, alert := range scored {
		if alert.Record.Location == nil {
			continue
		}
		id := alert.Record.Location.ID
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], alert)
	}

	var clusters [][]model.ScoredAlert
	for _, id := range order {
		group := groups[id]
		if len(group) < d.minAlerts {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Record.StartDate.Before(group[j].Record.StartDate)
		})

		current := []model.ScoredAlert{group[0]}
		for _, alert := range group[1:] {
			prev := current[len(current)-1]
			gap := alert.Record.StartDate.Sub(prev.Record.StartDate).Hours()
			if gap <= d.windowHours {
				current = append(current, alert)
				continue
			}
			if len(current) >= d.minAlerts {
				clusters = append(clusters, current)
			}
			current = []model.ScoredAlert{alert}
		}
		if len(current) >= d.minAlerts {
			clusters = append(clusters, current)
		}
	}
	return clusters
}

// clusterDetection summarizes one committed cluster. The timestamp is the
// start of the earliest member's day; confidence normalizes the average
// member score. A cluster whose members all sit at level none cannot be
// summarized and is skipped by the caller.
func (d *ScoringDetector) clusterDetection(cluster []model.ScoredAlert) (model.Detection, error) {
	total := 0.0
	maxLevel := model.LevelNone
	earliest := cluster[0].Record
	latest := cluster[0].Record
	ids := make([]int64, 0, len(cluster))

	for _, alert := range cluster {
		total += alert.Score
		if alert.Level != model.LevelNone && alert.Level.Rank() > maxLevel.Rank() {
			maxLevel = alert.Level
		}
		if alert.Record.StartDate.Before(earliest.StartDate) {
			earliest = alert.Record
		}
		if alert.Record.StartDate.After(latest.StartDate) {
			latest = alert.Record
		}
		ids = append(ids, alert.Record.ID)
	}
	if maxLevel == model.LevelNone {
		return model.Detection{}, eris.New("cluster has no member above level none")
	}
	if earliest.Location == nil {
		return model.Detection{}, eris.New("cluster member lost its resolved location")
	}

	avg := total / float64(len(cluster))

	return model.Detection{
		Title:      "Alert Cluster - " + maxLevel.Title(),
		Timestamp:  earliest.DayStart(),
		Locations:  []model.ResolvedLocation{*earliest.Location},
		Confidence: clamp01(avg / clusterConfidenceDivisor),
		ShockType:  "Alert Cluster - " + maxLevel.Title(),
		Detector:   d.name,
		Data: map[string]any{
			"cluster_size":    len(cluster),
			"total_score":     total,
			"average_score":   avg,
			"max_level":       string(maxLevel),
			"alert_ids":       ids,
			"time_span_hours": latest.StartDate.Sub(earliest.StartDate).Hours(),
			"source":          "scoring_detector_cluster",
		},
	}, nil
}
