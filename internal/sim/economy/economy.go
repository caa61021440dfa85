// Package economy holds the point economy rules: activity awards, asset
// purchases, military power, and the extended economy's worker units and
// materials. Functions here only mutate the records they are given; locking
// and persistence belong to the caller.
package economy

import (
	"time"

	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
)

// CooldownElapsed reports whether at least cooldown has passed since last.
// A zero last time means the action never happened.
func CooldownElapsed(last, now time.Time, cooldown time.Duration) bool {
	if last.IsZero() || cooldown <= 0 {
		return true
	}
	return now.Sub(last) >= cooldown
}

// AwardActivity adds points for a chat message unless the player is still
// within the activity cooldown. It reports whether points were awarded.
func AwardActivity(p *model.Player, now time.Time, pointsPerMessage int64, cooldown time.Duration) bool {
	if !CooldownElapsed(p.LastActivity, now, cooldown) {
		return false
	}
	p.Points += pointsPerMessage
	p.LastActivity = now
	return true
}

// TotalPower is the sum of count*power over every catalog asset the player
// owns. Counts of assets that are no longer in the catalog do not count.
func TotalPower(p *model.Player, cat *catalogs.Catalog) int64 {
	var total int64
	for id, n := range p.Assets {
		if n <= 0 {
			continue
		}
		def, ok := cat.Assets.ByID[id]
		if !ok {
			continue
		}
		total += n * def.Power
	}
	return total
}

// Purchase buys quantity units of assetID. Nothing is modified unless every
// check passes. mats may be nil for assets that need no materials.
func Purchase(p *model.Player, mats *model.Materials, cat *catalogs.Catalog, assetID string, quantity int64) (int64, error) {
	def, ok := cat.Asset(assetID)
	if !ok {
		return p.Points, errs.ErrInvalidAsset.Withf("unknown asset %q", assetID)
	}
	if quantity <= 0 {
		return p.Points, errs.ErrInvalidQuantity
	}
	if !affordable(p.Points, def.Cost, quantity) {
		return p.Points, errs.ErrInsufficientFunds.Withf("%d x %s costs more than %d points", quantity, def.ID, p.Points)
	}
	if len(def.Materials) > 0 {
		if mats == nil {
			return p.Points, errs.ErrInsufficientMaterials
		}
		for m, per := range def.Materials {
			if !affordable(mats.Items[m], per, quantity) {
				return p.Points, errs.ErrInsufficientMaterials.Withf("need %d %s", per*quantity, m)
			}
		}
		for m, per := range def.Materials {
			mats.Items[m] -= per * quantity
		}
	}
	p.Points -= def.Cost * quantity
	if p.Assets == nil {
		p.Assets = map[string]int64{}
	}
	p.Assets[def.ID] += quantity
	return p.Points, nil
}

// Hire recruits quantity worker units for points.
func Hire(p *model.Player, units *model.Units, cat *catalogs.Catalog, unitID string, quantity int64) (int64, error) {
	def, ok := cat.Unit(unitID)
	if !ok {
		return p.Points, errs.ErrInvalidUnit.Withf("unknown unit %q", unitID)
	}
	if quantity <= 0 {
		return p.Points, errs.ErrInvalidQuantity
	}
	if !affordable(p.Points, def.Cost, quantity) {
		return p.Points, errs.ErrInsufficientFunds.Withf("%d x %s costs more than %d points", quantity, def.ID, p.Points)
	}
	p.Points -= def.Cost * quantity
	units.Counts[def.ID] += quantity
	return p.Points, nil
}

// Harvest collects the yield of every worker unit once per cooldown. It
// returns the materials gained, or nil if the cooldown has not elapsed.
func Harvest(p *model.Player, units *model.Units, mats *model.Materials, cat *catalogs.Catalog, now time.Time, cooldown time.Duration) map[string]int64 {
	if !CooldownElapsed(p.LastHarvest, now, cooldown) {
		return nil
	}
	gained := map[string]int64{}
	for id, n := range units.Counts {
		if n <= 0 {
			continue
		}
		def, ok := cat.Unit(id)
		if !ok {
			continue
		}
		for m, y := range def.Yields {
			gained[m] += n * y
		}
	}
	for m, n := range gained {
		mats.Items[m] += n
	}
	p.LastHarvest = now
	return gained
}

// affordable reports whether balance >= price*quantity without overflowing.
func affordable(balance, price, quantity int64) bool {
	if price <= 0 {
		return true
	}
	if balance < 0 {
		return false
	}
	return quantity <= balance/price
}
