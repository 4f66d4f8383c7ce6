package state

import (
	"math"
	"sort"
)

const (
	MaxLevel      = 99
	tableMaxLevel = 120
)

// xpTable[l] is the total XP required to reach level l (xpTable[1] == 0).
var xpTable = buildXPTable()

func buildXPTable() []float64 {
	t := make([]float64, tableMaxLevel+1)
	points := 0.0
	for l := 1; l < tableMaxLevel; l++ {
		points += math.Floor(float64(l) + 300*math.Pow(2, float64(l)/7))
		t[l+1] = math.Floor(points / 4)
	}
	return t
}

// XPForLevel returns the XP needed to reach level; levels are clamped to [1,120].
func XPForLevel(level int) float64 {
	if level <= 1 {
		return 0
	}
	if level > tableMaxLevel {
		level = tableMaxLevel
	}
	return xpTable[level]
}

// LevelForXP returns the skill level for xp, capped at MaxLevel.
func LevelForXP(xp float64) int {
	// first index with xpTable[i] > xp, minus one
	i := sort.Search(len(xpTable)-1, func(i int) bool { return xpTable[i+1] > xp })
	level := i
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}
