package level

import "testing"

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		totalXP       int
		wantLevel     int
		wantXPInLevel int
		wantXPForNext int
	}{
		{"zero xp", 0, 1, 0, 100},
		{"mid level one", 55, 1, 55, 100},
		{"exactly level two", 100, 2, 0, 150},
		{"one short of level two", 99, 1, 99, 100},
		{"mid level two", 180, 2, 80, 150},
		{"exactly level three", 250, 3, 0, 200},
		{"exactly level four", 450, 4, 0, 250},
		{"exactly level five", 700, 5, 0, 300},
		{"deep in level five", 999, 5, 299, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.totalXP)
			if got.Level != tt.wantLevel {
				t.Errorf("Calculate(%d).Level = %d, want %d", tt.totalXP, got.Level, tt.wantLevel)
			}
			if got.XPInLevel != tt.wantXPInLevel {
				t.Errorf("Calculate(%d).XPInLevel = %d, want %d", tt.totalXP, got.XPInLevel, tt.wantXPInLevel)
			}
			if got.XPForNextLevel != tt.wantXPForNext {
				t.Errorf("Calculate(%d).XPForNextLevel = %d, want %d", tt.totalXP, got.XPForNextLevel, tt.wantXPForNext)
			}
		})
	}
}

func TestCalculateProgressPercent(t *testing.T) {
	got := Calculate(50)
	if got.ProgressPercent != 50 {
		t.Errorf("ProgressPercent at 50/100 = %d, want 50", got.ProgressPercent)
	}

	got = Calculate(100 + 75) // 75 of the 150 needed for level 2
	if got.ProgressPercent != 50 {
		t.Errorf("ProgressPercent at 75/150 = %d, want 50", got.ProgressPercent)
	}

	got = Calculate(99)
	if got.ProgressPercent != 99 {
		t.Errorf("ProgressPercent at 99/100 = %d, want 99", got.ProgressPercent)
	}
}

// Spending XPInLevel plus every earlier level's cost must reproduce the
// input. Guards against off-by-one drift in the subtraction loop.
func TestCalculateRoundTrip(t *testing.T) {
	for _, totalXP := range []int{0, 1, 99, 100, 101, 249, 250, 777, 5000, 123456} {
		p := Calculate(totalXP)

		sum := p.XPInLevel
		for lvl := 1; lvl < p.Level; lvl++ {
			sum += cost(lvl)
		}
		if sum != totalXP {
			t.Errorf("round trip for %d xp: reconstructed %d", totalXP, sum)
		}
		if p.XPInLevel >= p.XPForNextLevel {
			t.Errorf("xp in level %d not below next cost %d for total %d", p.XPInLevel, p.XPForNextLevel, totalXP)
		}
	}
}
