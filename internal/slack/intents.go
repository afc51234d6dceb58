package slack

import (
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/reckon/internal/workflow"
)

// Block action ids. Item actions carry the item index after a colon.
const (
	actionApproveAll    = "reckon_approve_all"
	actionReview        = "reckon_review"
	actionCancel        = "reckon_cancel"
	actionItemOK        = "reckon_item_ok"
	actionItemSkip      = "reckon_item_skip"
	actionItemNext      = "reckon_item_next"
	actionJournalCreate = "reckon_journal_create"
	actionJournalSkip   = "reckon_journal_skip"
)

// ActionID returns the block action id for in.
func ActionID(in workflow.Intent) string {
	switch in.Kind {
	case workflow.IntentApproveAll:
		return actionApproveAll
	case workflow.IntentReview:
		return actionReview
	case workflow.IntentCancel:
		return actionCancel
	case workflow.IntentItemOK:
		return actionItemOK + ":" + strconv.Itoa(in.Index)
	case workflow.IntentItemSkip:
		return actionItemSkip + ":" + strconv.Itoa(in.Index)
	case workflow.IntentItemNext:
		return actionItemNext + ":" + strconv.Itoa(in.Index)
	case workflow.IntentJournalCreate:
		return actionJournalCreate
	case workflow.IntentJournalSkip:
		return actionJournalSkip
	}
	return "reckon_" + string(in.Kind)
}

// ParseIntent maps a block action id back to an intent. When the id has no
// index suffix the button value is used instead.
func ParseIntent(actionID, value string) (workflow.Intent, bool) {
	switch {
	case actionID == actionApproveAll:
		return workflow.Intent{Kind: workflow.IntentApproveAll}, true
	case actionID == actionReview:
		return workflow.Intent{Kind: workflow.IntentReview}, true
	case actionID == actionCancel:
		return workflow.Intent{Kind: workflow.IntentCancel}, true
	case actionID == actionJournalCreate:
		return workflow.Intent{Kind: workflow.IntentJournalCreate}, true
	case actionID == actionJournalSkip:
		return workflow.Intent{Kind: workflow.IntentJournalSkip}, true
	case strings.HasPrefix(actionID, actionItemOK):
		return itemIntent(workflow.IntentItemOK, actionID[len(actionItemOK):], value)
	case strings.HasPrefix(actionID, actionItemSkip):
		return itemIntent(workflow.IntentItemSkip, actionID[len(actionItemSkip):], value)
	case strings.HasPrefix(actionID, actionItemNext):
		return itemIntent(workflow.IntentItemNext, actionID[len(actionItemNext):], value)
	}
	return workflow.Intent{}, false
}

func itemIntent(kind workflow.IntentKind, suffix, value string) (workflow.Intent, bool) {
	raw := strings.TrimPrefix(suffix, ":")
	if raw == "" {
		raw = value
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return workflow.Intent{}, false
	}
	return workflow.Intent{Kind: kind, Index: i}, true
}

// ParseCommand maps a typed message to an intent.
func ParseCommand(text string) (workflow.Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "сверка", "reckon", "/reckon", "start":
		return workflow.Intent{Kind: workflow.IntentStart}, true
	case "отмена", "cancel", "/cancel":
		return workflow.Intent{Kind: workflow.IntentCancel}, true
	}
	return workflow.Intent{}, false
}

// ParseReaction maps an emoji reaction on the summary message to an intent.
func ParseReaction(reaction string) (workflow.Intent, bool) {
	switch strings.Trim(reaction, ":") {
	case "+1", "thumbsup", "white_check_mark":
		return workflow.Intent{Kind: workflow.IntentApproveAll}, true
	case "x", "-1", "thumbsdown":
		return workflow.Intent{Kind: workflow.IntentCancel}, true
	}
	return workflow.Intent{}, false
}
