package event

import "eris.ai/internal/sim/catalogs"

// Capabilities is the run-wide progression ledger. Every field only grows.
type Capabilities struct {
	HasBucket          bool `json:"has_bucket"`
	HasFlintAndSteel   bool `json:"has_flint_and_steel"`
	Obsidian           int  `json:"obsidian"`
	BlazeRods          int  `json:"blaze_rods"`
	EnderPearls        int  `json:"ender_pearls"`
	EyesOfEnder        int  `json:"eyes_of_ender"`
	FortressFound      bool `json:"fortress_found"`
	StrongholdFound    bool `json:"stronghold_found"`
	BastionFound       bool `json:"bastion_found"`
	NetherPortalPlaced bool `json:"nether_portal_placed"`
	EndPortalActivated bool `json:"end_portal_activated"`
}

func (c Capabilities) CanEnterNether() bool {
	if c.NetherPortalPlaced {
		return true
	}
	return c.HasFlintAndSteel && (c.Obsidian >= catalogs.ObsidianForPortal || c.HasBucket)
}

func (c Capabilities) CanEnterEnd() bool {
	if c.EndPortalActivated {
		return true
	}
	return c.StrongholdFound && c.EyesOfEnder >= catalogs.EyesForEndPortal
}

// Gate returns a non-empty requirement name when e is not yet permitted by c.
func (c Capabilities) Gate(e Event) string {
	switch ev := e.(type) {
	case Dimension:
		switch ev.To {
		case catalogs.Nether:
			if !c.CanEnterNether() {
				return "can_enter_nether"
			}
		case catalogs.TheEnd:
			if !c.CanEnterEnd() {
				return "can_enter_end"
			}
		}
	case Structure:
		switch catalogs.NormalizeStructure(ev.Structure) {
		case catalogs.StructureFortress, catalogs.StructureBastion:
			if !c.CanEnterNether() {
				return "can_enter_nether"
			}
		case catalogs.StructureStronghold:
			if c.EyesOfEnder < 1 {
				return "eyes_of_ender"
			}
		case catalogs.StructureEndCity:
			if !c.CanEnterEnd() {
				return "can_enter_end"
			}
		}
	}
	return ""
}

// Observe folds e into the ledger.
func (c *Capabilities) Observe(e Event) {
	switch ev := e.(type) {
	case Inventory:
		if ev.Action != InventoryAdd || ev.Count <= 0 {
			return
		}
		c.observeItem(catalogs.NormalizeItem(ev.Item), ev.Count)
	case Structure:
		switch catalogs.NormalizeStructure(ev.Structure) {
		case catalogs.StructureFortress:
			c.FortressFound = true
		case catalogs.StructureStronghold:
			c.StrongholdFound = true
		case catalogs.StructureBastion:
			c.BastionFound = true
		}
	case Dimension:
		switch ev.To {
		case catalogs.Nether:
			c.NetherPortalPlaced = true
		case catalogs.TheEnd:
			c.EndPortalActivated = true
		}
	case Advancement:
		switch catalogs.NormalizeAdvancement(ev.Key) {
		case "minecraft:story/lava_bucket":
			c.HasBucket = true
		case "minecraft:story/enter_the_nether":
			c.NetherPortalPlaced = true
		case "minecraft:nether/obtain_blaze_rod":
			c.BlazeRods = max(c.BlazeRods, 1)
		case "minecraft:story/follow_ender_eye":
			c.StrongholdFound = true
		case "minecraft:story/enter_the_end":
			c.EndPortalActivated = true
		}
	}
}

// ObserveItem records an acquisition that did not come from a scripted event, such as give_item.
func (c *Capabilities) ObserveItem(item string, count int) {
	if count <= 0 {
		return
	}
	c.observeItem(catalogs.NormalizeItem(item), count)
}

func (c *Capabilities) observeItem(item string, count int) {
	switch item {
	case "bucket", "water_bucket", "lava_bucket":
		c.HasBucket = true
	case "flint_and_steel":
		c.HasFlintAndSteel = true
	case "obsidian":
		c.Obsidian += count
	case "blaze_rod":
		c.BlazeRods += count
	case "ender_pearl":
		c.EnderPearls += count
	case "ender_eye", "eye_of_ender":
		c.EyesOfEnder += count
	}
}

// Diff lists the ledger fields that differ between c and next, old then new.
func (c Capabilities) Diff(next Capabilities) []FieldChange {
	var out []FieldChange
	add := func(field string, before, after any) {
		if before != after {
			out = append(out, FieldChange{Field: field, Old: before, New: after})
		}
	}
	add("capabilities.has_bucket", c.HasBucket, next.HasBucket)
	add("capabilities.has_flint_and_steel", c.HasFlintAndSteel, next.HasFlintAndSteel)
	add("capabilities.obsidian", c.Obsidian, next.Obsidian)
	add("capabilities.blaze_rods", c.BlazeRods, next.BlazeRods)
	add("capabilities.ender_pearls", c.EnderPearls, next.EnderPearls)
	add("capabilities.eyes_of_ender", c.EyesOfEnder, next.EyesOfEnder)
	add("capabilities.fortress_found", c.FortressFound, next.FortressFound)
	add("capabilities.stronghold_found", c.StrongholdFound, next.StrongholdFound)
	add("capabilities.bastion_found", c.BastionFound, next.BastionFound)
	add("capabilities.nether_portal_placed", c.NetherPortalPlaced, next.NetherPortalPlaced)
	add("capabilities.end_portal_activated", c.EndPortalActivated, next.EndPortalActivated)
	return out
}

type FieldChange struct {
	Field string
	Old   any
	New   any
}
