package domain

// Behavior is a single decided action for an agent, either parsed from LLM
// output or produced by the scripted fallback.
type Behavior struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BehaviorSource records where a behavior came from.
type BehaviorSource string

const (
	BehaviorSourceLLM      BehaviorSource = "llm"
	BehaviorSourceScripted BehaviorSource = "scripted"
)

const (
	ActionEat       = "eat"
	ActionRest      = "rest"
	ActionSocialize = "socialize"
	ActionWork      = "work"
	ActionFarm      = "farm"
	ActionBuild     = "build"
	ActionCraft     = "craft"
	ActionPray      = "pray"
	ActionWander    = "wander"
)

func ValidAction(a string) bool {
	switch a {
	case ActionEat, ActionRest, ActionSocialize, ActionWork, ActionFarm,
		ActionBuild, ActionCraft, ActionPray, ActionWander:
		return true
	}
	return false
}
