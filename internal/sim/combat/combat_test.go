package combat

import (
	"errors"
	"math"
	"testing"

	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
)

// seqRand replays fixed rolls.
type seqRand struct {
	vals []float64
	i    int
}

func (s *seqRand) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func players(attackerPoints, defenderPoints int64) (*model.Player, *model.Player) {
	a := &model.Player{ChatID: 1, ID: 10, Points: attackerPoints, Assets: map[string]int64{}}
	d := &model.Player{ChatID: 1, ID: 20, Points: defenderPoints, Assets: map[string]int64{}}
	return a, d
}

func TestResolve_Preconditions(t *testing.T) {
	a, d := players(100, 100)
	rng := &seqRand{vals: []float64{0.5}}

	if _, err := Resolve(a, a, 100, 100, DefaultParams(), rng); !errors.Is(err, errs.ErrSelfAttack) {
		t.Fatalf("expected self attack, got %v", err)
	}
	if _, err := Resolve(a, d, 0, 100, DefaultParams(), rng); !errors.Is(err, errs.ErrAttackerUnarmed) {
		t.Fatalf("expected attacker unarmed, got %v", err)
	}
	if _, err := Resolve(a, d, 100, 0, DefaultParams(), rng); !errors.Is(err, errs.ErrDefenderUnarmed) {
		t.Fatalf("expected defender unarmed, got %v", err)
	}
	if a.Points != 100 || d.Points != 100 || a.BattlesWon+a.BattlesLost+d.BattlesWon+d.BattlesLost != 0 {
		t.Fatalf("failed attack changed state")
	}
	if rng.i != 0 {
		t.Fatalf("precondition failures should not roll")
	}
}

func TestResolve_AttackerWins(t *testing.T) {
	a, d := players(50, 1000)
	// attack = 200*1.1 = 220, defense = 100*0.8 = 80
	rng := &seqRand{vals: []float64{0.75, 0.0}}
	out, err := Resolve(a, d, 200, 100, DefaultParams(), rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// ratio = min(0.3, 140/220*0.5) = 0.3
	if !out.AttackerWon || out.WinnerID != a.ID || out.LoserID != d.ID {
		t.Fatalf("expected attacker win: %+v", out)
	}
	if out.Transferred != 300 {
		t.Fatalf("transferred=%d", out.Transferred)
	}
	if a.Points != 350 || d.Points != 700 {
		t.Fatalf("points: attacker=%d defender=%d", a.Points, d.Points)
	}
	if a.BattlesWon != 1 || a.BattlesLost != 0 || d.BattlesLost != 1 || d.BattlesWon != 0 {
		t.Fatalf("unexpected counters: %+v %+v", a, d)
	}
}

func TestResolve_AttackerWinsBelowCap(t *testing.T) {
	a, d := players(0, 1000)
	// attack = 100*1.0 = 100, defense = 100*0.9 = 90
	rng := &seqRand{vals: []float64{0.5, 0.25}}
	out, err := Resolve(a, d, 100, 100, DefaultParams(), rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ratio := (out.AttackStrength - out.DefenseStrength) / out.AttackStrength * 0.5
	want := int64(math.Floor(1000 * ratio))
	if !out.AttackerWon || out.Transferred != want {
		t.Fatalf("expected attacker win stealing %d, got %+v", want, out)
	}
	if a.Points != want || d.Points != 1000-want {
		t.Fatalf("points mismatch: attacker=%d defender=%d", a.Points, d.Points)
	}
}

func TestResolve_TieGoesToDefender(t *testing.T) {
	a, d := players(1000, 1000)
	rng := &seqRand{vals: []float64{0.5, 0.5}}
	out, err := Resolve(a, d, 100, 100, DefaultParams(), rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.AttackerWon || out.WinnerID != d.ID {
		t.Fatalf("tie should be a defender win: %+v", out)
	}
	// Zero margin: ratio 0, nothing lost.
	if out.Transferred != 0 || a.Points != 1000 || d.Points != 1000 {
		t.Fatalf("tie should not move points: %+v", out)
	}
	if a.BattlesLost != 1 || d.BattlesWon != 1 {
		t.Fatalf("counters not updated on tie")
	}
}

func TestResolve_DefenderWinsCapped(t *testing.T) {
	a, d := players(999, 10)
	// attack = 10*0.8 = 8, defense = 1000*1.1 = 1100
	rng := &seqRand{vals: []float64{0.0, 0.75}}
	out, err := Resolve(a, d, 10, 1000, DefaultParams(), rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// ratio = min(0.2, ~0.298) = 0.2 -> floor(999*0.2) = 199
	if out.AttackerWon || out.Transferred != 199 {
		t.Fatalf("expected defender win with 199 lost: %+v", out)
	}
	if a.Points != 800 || d.Points != 10 {
		t.Fatalf("defender should not gain; attacker=%d defender=%d", a.Points, d.Points)
	}
}

func TestResolve_NeverNegative(t *testing.T) {
	rng := NewRand(7)
	a, d := players(0, 0)
	for i := 0; i < 1000; i++ {
		if _, err := Resolve(a, d, 50, 60, DefaultParams(), rng); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if a.Points < 0 || d.Points < 0 {
			t.Fatalf("negative points after %d rounds", i)
		}
	}
}

func TestResolve_ZeroSumPerBattle(t *testing.T) {
	rng := NewRand(11)
	for i := 0; i < 500; i++ {
		a, d := players(int64(i*37%1000), int64(i*91%1000))
		beforeA, beforeD := a.Points, d.Points
		out, err := Resolve(a, d, 40, 40, DefaultParams(), rng)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if out.AttackerWon {
			if a.Points-beforeA != out.Transferred || beforeD-d.Points != out.Transferred {
				t.Fatalf("attacker win not zero-sum: %+v", out)
			}
			if a.BattlesWon != 1 || d.BattlesLost != 1 || a.BattlesLost != 0 || d.BattlesWon != 0 {
				t.Fatalf("counters wrong on attacker win")
			}
		} else {
			if beforeA-a.Points != out.Transferred || d.Points != beforeD {
				t.Fatalf("defender win accounting wrong: %+v", out)
			}
			if a.BattlesLost != 1 || d.BattlesWon != 1 || a.BattlesWon != 0 || d.BattlesLost != 0 {
				t.Fatalf("counters wrong on defender win")
			}
		}
	}
}

func TestResolve_EqualPowerIsRoughlySymmetric(t *testing.T) {
	rng := NewRand(42)
	const trials = 20000
	wins := 0
	for i := 0; i < trials; i++ {
		a, d := players(1000, 1000)
		out, err := Resolve(a, d, 100, 100, DefaultParams(), rng)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if out.AttackerWon {
			wins++
		}
	}
	rate := float64(wins) / trials
	if rate < 0.47 || rate > 0.53 {
		t.Fatalf("attacker win rate %.3f is not close to 0.5", rate)
	}
}
