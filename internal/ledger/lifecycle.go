package ledger

import (
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"stakerLedger/internal/model"
)

const (
	eventInitiate = "initiate"
	eventRelease  = "release"
)

// Position lifecycle:
//
//	staked --initiate--> unstaking --release--> burned
//	staked --release--> burned
//
// initiate from unstaking is a self-transition, which fsm reports as
// NoTransitionError; advance turns that into "unchanged".
var lifecycleEvents = fsm.Events{
	{Name: eventInitiate, Src: []string{string(model.StateStaked), string(model.StateUnstaking)}, Dst: string(model.StateUnstaking)},
	{Name: eventRelease, Src: []string{string(model.StateStaked), string(model.StateUnstaking)}, Dst: string(model.StateBurned)},
}

// advance fires event on p and returns the updated copy. The entered state
// stamps the position: unstaking records the initiation time, burned sets
// the burn flag. changed is false when p already sits in the target state.
func advance(p model.Position, event string, now uint64) (next model.Position, changed bool, err error) {
	next = p.Clone()
	machine := fsm.NewFSM(string(p.State()), lifecycleEvents, fsm.Callbacks{
		"enter_" + string(model.StateUnstaking): func(*fsm.Event) {
			next.UnstakeInitiatedAt = now
		},
		"enter_" + string(model.StateBurned): func(*fsm.Event) {
			next.Burned = true
		},
	})

	if err := machine.Event(event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return p, false, nil
		}
		return p, false, fmt.Errorf("position %d: %s from %s: %w", p.ID, event, p.State(), err)
	}
	if got := model.PositionState(machine.Current()); next.State() != got {
		return p, false, fmt.Errorf("position %d: %s left state %s, machine is in %s", p.ID, event, next.State(), got)
	}
	return next, true, nil
}
