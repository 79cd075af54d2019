package model

type LineupSlot struct {
	TeamNo  int    `json:"team_no"`
	SlotKey string `json:"slot_key" validate:"required,max=16"`
	UserID  string `json:"user_id" validate:"required"`
}

type LineupView struct {
	CanEdit   bool           `json:"can_edit"`
	CanLineup bool           `json:"can_lineup"`
	Formation map[int]string `json:"formation"`
	Slots     []*LineupSlot  `json:"slots"`

	// Formations lists the catalog names a team may switch to.
	Formations []string `json:"formations"`
}

type LineupUpdate struct {
	TeamKey   string
	Formation string
	Slots     []*LineupSlot
}
