package npc

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// DropChance is the independent probability each loot-table item drops.
const DropChance = 0.3

// Drop is the loot left by one NPC kill.
type Drop struct {
	ID       string
	NPCID    uint64
	OwnerID  uint64
	Items    []int
	Position world.Vector3
}

// RollLoot rolls n's loot table for the player ownerID.
//
// Postcondition: Returns nil when nothing dropped; otherwise a Drop with a fresh
// uuid and the items that passed their DropChance roll, in table order.
func RollLoot(n *world.NPC, ownerID uint64, roller *dice.Roller) *Drop {
	var items []int
	for _, item := range n.LootTable {
		if roller.Chance("loot", DropChance) {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return &Drop{
		ID:       uuid.New().String(),
		NPCID:    n.ID(),
		OwnerID:  ownerID,
		Items:    items,
		Position: n.Position(),
	}
}
