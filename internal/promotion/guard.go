package promotion

import "landreg-workers/internal/models"

// DistrictGuard decides whether an actor may moderate records of a district.
type DistrictGuard interface {
	MayActOn(actor models.Actor, district int) bool
}

// ClaimsGuard trusts the districts asserted on the actor.
type ClaimsGuard struct{}

func (ClaimsGuard) MayActOn(actor models.Actor, district int) bool {
	if actor.AllDistricts {
		return true
	}
	for _, d := range actor.Districts {
		if d == district {
			return true
		}
	}
	return false
}
