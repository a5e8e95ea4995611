// Package level derives a user's level from cumulative XP. The level is
// never stored; it is recomputed from total XP on every read, so the
// same XP value always maps to the same level.
package level

import "math"

const (
	baseCost = 100
	costStep = 50
)

type Progress struct {
	Level           int `json:"level"`
	XPInLevel       int `json:"xp_in_level"`
	XPForNextLevel  int `json:"xp_for_next_level"`
	ProgressPercent int `json:"progress_percent"`
}

// cost returns the XP needed to clear the given level: 100 for level 1,
// growing by 50 per level.
func cost(lvl int) int {
	return baseCost + costStep*(lvl-1)
}

// Calculate maps cumulative XP to a level and progress within it.
func Calculate(totalXP int) Progress {
	lvl := 1
	remaining := totalXP
	c := cost(lvl)

	for remaining >= c {
		remaining -= c
		lvl++
		c = cost(lvl)
	}

	return Progress{
		Level:           lvl,
		XPInLevel:       remaining,
		XPForNextLevel:  c,
		ProgressPercent: int(math.Round(100 * float64(remaining) / float64(c))),
	}
}
