package workflow

// IntentKind is an operator command or button press.
type IntentKind string

const (
	IntentStart         IntentKind = "start"
	IntentApproveAll    IntentKind = "approve_all"
	IntentReview        IntentKind = "review"
	IntentItemOK        IntentKind = "item_ok"
	IntentItemSkip      IntentKind = "item_skip"
	IntentItemNext      IntentKind = "item_next"
	IntentCancel        IntentKind = "cancel"
	IntentJournalCreate IntentKind = "journal_create"
	IntentJournalSkip   IntentKind = "journal_skip"
)

// Intent is one operator input. Index is set for item_* intents.
type Intent struct {
	Kind  IntentKind `json:"kind"`
	Index int        `json:"index,omitempty"`
}

// ControlStyle hints how a front end should render a control.
type ControlStyle string

const (
	StyleDefault ControlStyle = ""
	StylePrimary ControlStyle = "primary"
	StyleDanger  ControlStyle = "danger"
)

// Control is a named button offered with a reply.
type Control struct {
	Label  string       `json:"label"`
	Intent Intent       `json:"intent"`
	Style  ControlStyle `json:"style,omitempty"`
}

// Reply is what the operator sees after a transition.
type Reply struct {
	Text     string    `json:"text"`
	Controls []Control `json:"controls,omitempty"`
}
