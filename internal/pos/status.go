package pos

// State is the lifecycle of an Engine.
type State string

const (
	StateActive State = "ACTIVE"
	StateHalted State = "HALTED"
	StateClosed State = "CLOSED"
)

var validNext = map[State]map[State]bool{
	StateActive: {StateHalted: true, StateClosed: true},
	StateHalted: {StateClosed: true},
	StateClosed: {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}
