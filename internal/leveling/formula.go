package leveling

import "math/rand"

// Formula maps XP to levels and levels to coin rewards.
//
// level = max(1, isqrt(xp / base) + 1), so the XP requirement grows
// quadratically: level L starts at (L-1)^2 * base. Integer square root
// keeps LevelForXP(XPForLevel(L)) == L exact at every boundary.
type Formula struct {
	XPPerLevelBase    int64
	BaseCoinsPerLevel int64
}

func (f Formula) LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(isqrt(xp/f.XPPerLevelBase)) + 1
}

// XPForLevel is the inverse: the minimum XP holding the given level.
func (f Formula) XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level - 1)
	return l * l * f.XPPerLevelBase
}

// RewardForLevel is the coin payout for reaching a single level. Milestone
// levels pay more: every 10th level triples the base, every 5th doubles it.
func (f Formula) RewardForLevel(level int) int64 {
	switch {
	case level%10 == 0:
		return f.BaseCoinsPerLevel * 3
	case level%5 == 0:
		return f.BaseCoinsPerLevel * 2
	default:
		return f.BaseCoinsPerLevel
	}
}

// RewardForLevels sums the payout for every level crossed going from
// oldLevel to newLevel, i.e. oldLevel+1 through newLevel inclusive.
func (f Formula) RewardForLevels(oldLevel, newLevel int) int64 {
	var total int64
	for l := oldLevel + 1; l <= newLevel; l++ {
		total += f.RewardForLevel(l)
	}
	return total
}

// isqrt is the integer square root (floor).
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// GainRule computes the XP granted for a single message: a flat base, a
// length bonus (one point per 10 characters, capped), and a uniform random
// bonus. Never less than 1.
type GainRule struct {
	BaseXP         int
	MaxLengthBonus int
	RandomBonus    int
}

func (g GainRule) ForMessage(length int) int {
	bonus := length / 10
	if bonus > g.MaxLengthBonus {
		bonus = g.MaxLengthBonus
	}
	total := g.BaseXP + bonus
	if g.RandomBonus > 0 {
		total += rand.Intn(g.RandomBonus + 1)
	}
	if total < 1 {
		return 1
	}
	return total
}
