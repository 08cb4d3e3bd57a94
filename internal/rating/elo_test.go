package rating

import "testing"

func TestUpdateKnownValues(t *testing.T) {
	tests := []struct {
		winner, loser       int
		newWinner, newLoser int
	}{
		{1000, 1000, 1016, 984},
		{1200, 1000, 1208, 992},
		{1000, 1200, 1024, 1176},
		{984, 1016, 1001, 999},
	}
	for _, tt := range tests {
		gotW, gotL := Update(tt.winner, tt.loser)
		if gotW != tt.newWinner || gotL != tt.newLoser {
			t.Errorf("Update(%d, %d) = (%d, %d), want (%d, %d)",
				tt.winner, tt.loser, gotW, gotL, tt.newWinner, tt.newLoser)
		}
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	w1, l1 := Update(1100, 950)
	for i := 0; i < 100; i++ {
		w2, l2 := Update(1100, 950)
		if w1 != w2 || l1 != l2 {
			t.Fatalf("Update not deterministic: (%d,%d) vs (%d,%d)", w1, l1, w2, l2)
		}
	}
}

func TestUpdateIsZeroSum(t *testing.T) {
	for winner := 800; winner <= 1600; winner += 37 {
		for loser := 800; loser <= 1600; loser += 53 {
			newWinner, newLoser := Update(winner, loser)
			if (newWinner - winner) != -(newLoser - loser) {
				t.Fatalf("Update(%d, %d) not zero-sum: winner %+d, loser %+d",
					winner, loser, newWinner-winner, newLoser-loser)
			}
			if newWinner < winner {
				t.Fatalf("winner lost points: %d -> %d", winner, newWinner)
			}
		}
	}
}
