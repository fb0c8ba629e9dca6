package startup

import "fmt"

// State is an orchestrator stage.
type State int

const (
	StateInit State = iota
	StateEnsuringHome
	StateEnsuringService
	StateStartingService
	StateVerifyingService
	StateEnsuringData
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StateInit:             "init",
	StateEnsuringHome:     "ensuring_home",
	StateEnsuringService:  "ensuring_service",
	StateStartingService:  "starting_service",
	StateVerifyingService: "verifying_service",
	StateEnsuringData:     "ensuring_data",
	StateReady:            "ready",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further stage will run.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}
