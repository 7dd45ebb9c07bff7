package optimize

import (
	"github.com/voltgrid/voltgrid/pkg/types"
)

const (
	preferenceBoost   = 1.2
	nearbyKm          = 5.0
	reliableFaultProb = 0.1
)

// ApplyPreferences re-weights ranked rows by the user's soft preferences and
// re-ranks when anything changed. The gates have already run; boosts only
// shuffle the surviving order.
func ApplyPreferences(req types.RecommendationRequest, rows []types.RankedStation) []types.RankedStation {
	changed := false
	for i := range rows {
		boost := 1.0
		if req.PreferredChargerType == types.ChargerFast && hasCharger(rows[i].ChargerTypes, types.ChargerFast) {
			boost *= preferenceBoost
		}
		if req.PreferNearby && rows[i].EstimatedDistance < nearbyKm {
			boost *= preferenceBoost
		}
		if req.PreferReliable && rows[i].Fault != nil && rows[i].Fault.FaultProbability < reliableFaultProb {
			boost *= preferenceBoost
		}
		if boost != 1.0 {
			rows[i].Score = types.Round4(rows[i].Score * boost)
			changed = true
		}
	}
	if changed {
		sortAndRank(rows)
	}
	return rows
}

func hasCharger(available types.ChargerTypes, want types.ChargerType) bool {
	for _, ct := range available {
		if ct == want {
			return true
		}
	}
	return false
}
