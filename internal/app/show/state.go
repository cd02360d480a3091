package show

type State int

const (
	Offline State = iota
	Connecting
	Ready
	Busy
	ConnectingPlayer
	AssigningPilot
	Playing
	GeneratingCard
)

var stateNames = [...]string{
	Offline:          "OFFLINE",
	Connecting:       "CONNECTING",
	Ready:            "READY",
	Busy:             "BUSY",
	ConnectingPlayer: "CONNECTING_PLAYER",
	AssigningPilot:   "ASSIGNING_PILOT",
	Playing:          "PLAYING",
	GeneratingCard:   "GENERATING_CARD",
}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// notifies reports whether entering s fires the state-change listener.
func (s State) notifies() bool {
	return s == Ready || s == Offline
}

// inRound reports whether s belongs to a participant's round.
func (s State) inRound() bool {
	return s >= Busy && s <= GeneratingCard
}
