package holdem

// InvalidSeat marks "no seat" for dealer/turn cursors.
const InvalidSeat = -1

// Stage 游戏阶段
type Stage byte

const (
	StageWaiting Stage = iota
	StagePreflop
	StageFlop
	StageTurn
	StageRiver
	StageShowdown
)

var StageNames = map[Stage]string{
	StageWaiting:  "waiting",
	StagePreflop:  "preflop",
	StageFlop:     "flop",
	StageTurn:     "turn",
	StageRiver:    "river",
	StageShowdown: "showdown",
}

func (s Stage) String() string {
	if name, ok := StageNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsBetting reports whether the stage is an open betting round.
func (s Stage) IsBetting() bool {
	return s >= StagePreflop && s <= StageRiver
}

// ActionKind 动作类型：0-FOLD 1-CHECK 2-CALL 3-RAISE
type ActionKind byte

const (
	ActionFold ActionKind = iota
	ActionCheck
	ActionCall
	ActionRaise
)

var ActionKindNames = map[ActionKind]string{
	ActionFold:  "fold",
	ActionCheck: "check",
	ActionCall:  "call",
	ActionRaise: "raise",
}

func (a ActionKind) String() string {
	if name, ok := ActionKindNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseActionKind converts a wire action type into an ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	for kind, name := range ActionKindNames {
		if name == s {
			return kind, true
		}
	}
	return 0, false
}
