package bus

// TargetKind says how an action-bound envelope picks its recipients.
type TargetKind int

const (
	// TargetTopic delivers to every action instance declaring the topic.
	TargetTopic TargetKind = iota
	// TargetAll delivers to every action instance.
	TargetAll
	// TargetContext delivers to the instance bound to one control-context.
	TargetContext
	// TargetAction delivers to every instance of one action UUID.
	TargetAction
)

// Target addresses action instances.
type Target struct {
	Kind TargetKind
	ID   string
}

// ToTopic is the default target used by PublishToActions.
func ToTopic() Target { return Target{Kind: TargetTopic} }

// ToAll targets every action instance.
func ToAll() Target { return Target{Kind: TargetAll} }

// ToContext targets the instance bound to a control-context.
func ToContext(ctxID string) Target { return Target{Kind: TargetContext, ID: ctxID} }

// ToAction targets every instance of an action UUID.
func ToAction(uuid string) Target { return Target{Kind: TargetAction, ID: uuid} }

func (t Target) String() string {
	switch t.Kind {
	case TargetAll:
		return "all"
	case TargetContext:
		return "context:" + t.ID
	case TargetAction:
		return "action:" + t.ID
	default:
		return "topic"
	}
}
