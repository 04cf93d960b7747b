// Package archipelago derives each player's private islets from their nick.
// Clients run the same functions to draw the islets, so the results must not
// change for an existing nick.
package archipelago

import (
	"math"
	"unicode/utf16"
)

const (
	MinCount = 2
	MaxCount = 4

	baseDistance = 190
	distanceJit  = 50
	angleJitDeg  = 40
)

// Islet types. Stone islets pay gold.
const (
	TypeWood  = "wood"
	TypeStone = "stone"
	TypeRum   = "rum"
)

var types = [...]string{TypeWood, TypeWood, TypeStone, TypeRum}

type Islet struct {
	Index int     `json:"index"`
	Type  string  `json:"type"`
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
}

// Distance from the home island.
func (i Islet) Distance() float64 { return math.Hypot(i.DX, i.DY) }

// Seed hashes nick over its UTF-16 code units and mixes in i.
func Seed(nick string, i int) uint32 {
	var h uint32
	for _, c := range utf16.Encode([]rune(nick)) {
		h = h*31 + uint32(c)
	}
	return h ^ uint32(uint64(i)*2654435761)
}

func Count(nick string) int {
	return MinCount + int(Seed(nick, 0)%3)
}

func Valid(nick string, idx int) bool {
	return idx >= 0 && idx < Count(nick)
}

// Offset returns the islet position relative to the home island, or zero for
// an index outside the archipelago.
func Offset(nick string, idx int) (dx, dy float64) {
	count := Count(nick)
	if idx < 0 || idx >= count {
		return 0, 0
	}
	s1 := Seed(nick, idx*3+1)
	s2 := Seed(nick, idx*3+2)
	deg := (360/float64(count))*float64(idx) + float64(s1%angleJitDeg) - angleJitDeg/2
	rad := deg * math.Pi / 180
	dist := float64(baseDistance + s2%distanceJit)
	return math.Cos(rad) * dist, math.Sin(rad) * dist
}

func Type(nick string, idx int) string {
	return types[Seed(nick, idx*3+3)%uint32(len(types))]
}

func Get(nick string, idx int) (Islet, bool) {
	if !Valid(nick, idx) {
		return Islet{}, false
	}
	dx, dy := Offset(nick, idx)
	return Islet{Index: idx, Type: Type(nick, idx), DX: dx, DY: dy}, true
}

func Islets(nick string) []Islet {
	n := Count(nick)
	out := make([]Islet, 0, n)
	for i := 0; i < n; i++ {
		it, _ := Get(nick, i)
		out = append(out, it)
	}
	return out
}
