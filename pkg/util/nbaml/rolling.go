package nbaml

import (
	"sort"

	"github.com/richard-senior/nbaml/internal/logger"
)

// RollingFeatureRow carries trailing-form statistics computed from prior games only.
// A nil value means fewer than the minimum number of prior games were available.
type RollingFeatureRow struct {
	MatchupRow
	PointDiffRoll10      *float64 `json:"point_diff_roll10" column:"point_diff_roll10"`
	PointsRoll10         *float64 `json:"points_roll10" column:"points_roll10"`
	OpponentPointsRoll10 *float64 `json:"opponent_points_roll10" column:"opponent_points_roll10"`
}

// HasWindow reports whether the rolling window was populated for this game
func (r RollingFeatureRow) HasWindow() bool {
	return r.PointDiffRoll10 != nil
}

// PriorMeans returns, for each position i, the mean of values over the window
// [max(0, i-window), i-1]. Positions with fewer than minPeriods prior values are nil.
func PriorMeans(values []float64, window, minPeriods int) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		lo := max(0, i-window)
		n := i - lo
		if n == 0 || n < minPeriods {
			continue
		}
		// summed fresh each time so values never carry drift from a running total
		sum := 0.0
		for _, v := range values[lo:i] {
			sum += v
		}
		mean := sum / float64(n)
		out[i] = &mean
	}
	return out
}

// BuildRollingFeatures computes per-team trailing means of point diff, points and
// opponent points. Rows are partitioned by team, each partition is ordered by date,
// and results are written back at each row's original position.
func BuildRollingFeatures(rows []MatchupRow) []RollingFeatureRow {
	window, minPeriods := Config.RollingWindow, Config.RollingMinPeriods

	partitions := make(map[int64][]int)
	var teamOrder []int64
	for i, r := range rows {
		if _, ok := partitions[r.TeamID]; !ok {
			teamOrder = append(teamOrder, r.TeamID)
		}
		partitions[r.TeamID] = append(partitions[r.TeamID], i)
	}

	out := make([]RollingFeatureRow, len(rows))
	for _, teamID := range teamOrder {
		idx := partitions[teamID]
		sort.SliceStable(idx, func(a, b int) bool {
			ra, rb := rows[idx[a]], rows[idx[b]]
			if !ra.GameDate.Equal(rb.GameDate) {
				return ra.GameDate.Before(rb.GameDate)
			}
			return ra.GameID < rb.GameID
		})

		diffs := make([]float64, len(idx))
		pts := make([]float64, len(idx))
		opp := make([]float64, len(idx))
		for k, i := range idx {
			diffs[k] = float64(rows[i].PointDiff)
			pts[k] = float64(rows[i].Points)
			opp[k] = float64(rows[i].OpponentPoints)
		}
		diffRoll := PriorMeans(diffs, window, minPeriods)
		ptsRoll := PriorMeans(pts, window, minPeriods)
		oppRoll := PriorMeans(opp, window, minPeriods)

		for k, i := range idx {
			out[i] = RollingFeatureRow{
				MatchupRow:           rows[i],
				PointDiffRoll10:      diffRoll[k],
				PointsRoll10:         ptsRoll[k],
				OpponentPointsRoll10: oppRoll[k],
			}
		}
	}

	logger.Info("Built rolling features", len(out), "rows for", len(teamOrder), "teams")
	return out
}
