package model

import "oracleScope/internal/register"

// NanoErg is an amount in the ledger's smallest currency unit.
type NanoErg = uint64

// BlockHeight is a chain height.
type BlockHeight = uint64

// EpochID is the box id of a live-epoch box.
type EpochID = string

// Box is an unspent output returned by a scan. Registers are ordered from R4
// upwards and stay encoded until decoded through the register package.
type Box struct {
	ID             string           `json:"box_id"`
	Value          NanoErg          `json:"value"`
	CreationHeight BlockHeight      `json:"creation_height"`
	Registers      []register.Value `json:"registers"`
}

// Register returns the register at index (0 is R4) if present.
func (b Box) Register(index int) (register.Value, bool) {
	if index < 0 || index >= len(b.Registers) {
		return "", false
	}
	return b.Registers[index], true
}
