package model

import (
	"sort"
	"strconv"
)

// Tier is a subscription level.
type Tier int

const (
	TierChannel     Tier = 1 // private channel
	TierChannelChat Tier = 2 // private channel + curated chat
)

func (t Tier) Valid() bool { return t == TierChannel || t == TierChannelChat }

func (t Tier) String() string { return strconv.Itoa(int(t)) }

// InviteCount is the number of invite links a purchase of this tier issues.
func (t Tier) InviteCount() int {
	switch t {
	case TierChannel:
		return 1
	case TierChannelChat:
		return 2
	default:
		return 0
	}
}

// Currency of every catalogue price.
const Currency = "RUB"

// catalogue maps tier -> months -> price in roubles.
var catalogue = map[Tier]map[int]int64{
	TierChannel:     {1: 1490, 3: 3990, 6: 7490, 12: 14290},
	TierChannelChat: {1: 4990, 3: 13390, 6: 25390, 12: 47890},
}

// Price returns the catalogue price of a tier/duration pair.
func Price(t Tier, months int) (int64, bool) {
	byMonths, ok := catalogue[t]
	if !ok {
		return 0, false
	}
	p, ok := byMonths[months]
	return p, ok
}

// Durations lists the purchasable durations of a tier in ascending order.
func Durations(t Tier) []int {
	out := make([]int, 0, len(catalogue[t]))
	for m := range catalogue[t] {
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

// PlanMonths maps the admin API plan id onto a duration: 1 -> 1, 2 -> 6, anything else -> 12.
func PlanMonths(planID int) int {
	switch planID {
	case 1:
		return 1
	case 2:
		return 6
	default:
		return 12
	}
}
