// Package combat resolves one attack between two players of the same chat.
//
// Each side's power is scaled by an independent uniform roll in
// [VarianceMin, VarianceMax). If the attacker's strength is strictly higher
// it steals a share of the defender's points; otherwise (ties included) the
// defender wins and the attacker loses a share of its own points. The
// share grows with the margin of victory and is capped.
package combat

import (
	"math"
	"math/rand/v2"
	"sync"

	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
)

// Rand is the source of the variance rolls. Float64 returns a value in [0,1).
type Rand interface {
	Float64() float64
}

// LockedRand is a seeded Rand that is safe for concurrent use. Attacks in
// different chats run in parallel and share one source.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand(seed uint64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type Params struct {
	VarianceMin    float64
	VarianceMax    float64
	AttackerCap    float64
	AttackerFactor float64
	DefenderCap    float64
	DefenderFactor float64
}

func DefaultParams() Params {
	return Params{
		VarianceMin:    0.8,
		VarianceMax:    1.2,
		AttackerCap:    0.3,
		AttackerFactor: 0.5,
		DefenderCap:    0.2,
		DefenderFactor: 0.3,
	}
}

type Outcome struct {
	AttackerID  int64 `json:"attacker_id"`
	DefenderID  int64 `json:"defender_id"`
	WinnerID    int64 `json:"winner_id"`
	LoserID     int64 `json:"loser_id"`
	AttackerWon bool  `json:"attacker_won"`
	// Transferred is the number of points taken from the loser.
	Transferred int64 `json:"points_transferred"`

	AttackerPower   int64   `json:"attacker_power"`
	DefenderPower   int64   `json:"defender_power"`
	AttackStrength  float64 `json:"attack_strength"`
	DefenseStrength float64 `json:"defense_strength"`
}

// Check validates the preconditions of an attack without rolling.
func Check(attackerID, defenderID, attackerPower, defenderPower int64) error {
	if attackerID == defenderID {
		return errs.ErrSelfAttack
	}
	if attackerPower <= 0 {
		return errs.ErrAttackerUnarmed
	}
	if defenderPower <= 0 {
		return errs.ErrDefenderUnarmed
	}
	return nil
}

// Resolve rolls the battle and applies the point transfer and battle
// counters to both players. On error neither player is modified.
func Resolve(attacker, defender *model.Player, attackerPower, defenderPower int64, p Params, rng Rand) (Outcome, error) {
	if err := Check(attacker.ID, defender.ID, attackerPower, defenderPower); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		AttackerID:      attacker.ID,
		DefenderID:      defender.ID,
		AttackerPower:   attackerPower,
		DefenderPower:   defenderPower,
		AttackStrength:  float64(attackerPower) * roll(p, rng),
		DefenseStrength: float64(defenderPower) * roll(p, rng),
	}

	if out.AttackStrength > out.DefenseStrength {
		ratio := math.Min(p.AttackerCap, (out.AttackStrength-out.DefenseStrength)/out.AttackStrength*p.AttackerFactor)
		stolen := takeShare(defender, ratio)
		attacker.Points += stolen
		attacker.BattlesWon++
		defender.BattlesLost++
		out.AttackerWon = true
		out.WinnerID, out.LoserID = attacker.ID, defender.ID
		out.Transferred = stolen
		return out, nil
	}

	ratio := math.Min(p.DefenderCap, (out.DefenseStrength-out.AttackStrength)/out.DefenseStrength*p.DefenderFactor)
	lost := takeShare(attacker, ratio)
	attacker.BattlesLost++
	defender.BattlesWon++
	out.WinnerID, out.LoserID = defender.ID, attacker.ID
	out.Transferred = lost
	return out, nil
}

func roll(p Params, rng Rand) float64 {
	return p.VarianceMin + rng.Float64()*(p.VarianceMax-p.VarianceMin)
}

// takeShare removes floor(points*ratio) from the loser, never going below
// zero, and returns the amount actually removed.
func takeShare(loser *model.Player, ratio float64) int64 {
	if ratio <= 0 || loser.Points <= 0 {
		return 0
	}
	n := int64(math.Floor(float64(loser.Points) * ratio))
	if n > loser.Points {
		n = loser.Points
	}
	if n < 0 {
		n = 0
	}
	loser.Points -= n
	return n
}
