package ledger

import (
	"testing"

	"stakerLedger/internal/model"
)

func TestAdvance(t *testing.T) {
	const now = uint64(500)
	staked := model.Position{ID: 1, StakeTimestamp: 100}
	unstaking := model.Position{ID: 1, StakeTimestamp: 100, UnstakeInitiatedAt: 300}
	burned := model.Position{ID: 1, StakeTimestamp: 100, Burned: true}

	cases := []struct {
		name        string
		pos         model.Position
		event       string
		want        model.PositionState
		wantChanged bool
		wantErr     bool
		initiatedAt uint64
	}{
		{"initiate from staked", staked, eventInitiate, model.StateUnstaking, true, false, now},
		{"initiate from unstaking keeps first time", unstaking, eventInitiate, model.StateUnstaking, false, false, 300},
		{"release from staked", staked, eventRelease, model.StateBurned, true, false, 0},
		{"release from unstaking", unstaking, eventRelease, model.StateBurned, true, false, 300},
		{"release from burned", burned, eventRelease, model.StateBurned, false, true, 0},
		{"initiate from burned", burned, eventInitiate, model.StateBurned, false, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed, err := advance(tc.pos, tc.event, now)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got state %s", got.State())
				}
				if got != tc.pos {
					t.Fatalf("position changed on error: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if changed != tc.wantChanged {
				t.Fatalf("changed mismatch: %v != %v", changed, tc.wantChanged)
			}
			if got.State() != tc.want {
				t.Fatalf("state mismatch: %s != %s", got.State(), tc.want)
			}
			if got.UnstakeInitiatedAt != tc.initiatedAt {
				t.Fatalf("initiated at mismatch: %d != %d", got.UnstakeInitiatedAt, tc.initiatedAt)
			}
		})
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	pos := model.Position{ID: 2, StakeTimestamp: 100}
	if _, _, err := advance(pos, eventRelease, 200); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if pos.Burned || pos.UnstakeInitiatedAt != 0 {
		t.Fatalf("input mutated: %+v", pos)
	}
}
