package workflow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/reckon/internal/reconcile"
)

// MaxReportLen caps reply text, in runes.
const MaxReportLen = 3000

const truncatedMarker = "\n… (обрезано)"

// Truncate shortens s to at most limit runes, ending with a marker when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(truncatedMarker)
	if keep < 0 {
		keep = 0
	}
	r := []rune(s)
	return string(r[:keep]) + truncatedMarker
}

func actionLabel(it reconcile.Item) string {
	switch it.Action {
	case reconcile.ActionCloseExisting:
		if m := it.Matched(); m != nil {
			return fmt.Sprintf("закрыть #%d «%s»", m.SequenceID, m.Name)
		}
		return "закрыть"
	case reconcile.ActionCreateDone:
		return "создать и закрыть"
	case reconcile.ActionCreateStarted:
		return "создать, в работу"
	}
	return string(it.Action)
}

func summaryReply(items []reconcile.Item) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Сверка: %d %s\n", len(items), plural(len(items), "предложение", "предложения", "предложений"))
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s · %s → %s", i+1, it.ChatTitle, it.Title, actionLabel(it))
	}
	return Reply{
		Text: Truncate(b.String(), MaxReportLen),
		Controls: []Control{
			{Label: "Подтвердить все", Intent: Intent{Kind: IntentApproveAll}, Style: StylePrimary},
			{Label: "По одному", Intent: Intent{Kind: IntentReview}},
			{Label: "Отмена", Intent: Intent{Kind: IntentCancel}, Style: StyleDanger},
		},
	}
}

func itemReply(st *State) Reply {
	it := st.Items[st.Cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Пункт %d из %d\n\n", st.Cursor+1, len(st.Items))
	fmt.Fprintf(&b, "Чат: %s\nПроект: %s\n", it.ChatTitle, it.ProjectName)
	fmt.Fprintf(&b, "Инцидент: %s\n", it.Title)
	if it.Description != "" {
		fmt.Fprintf(&b, "%s\n", it.Description)
	}
	fmt.Fprintf(&b, "Действие: %s", actionLabel(it))

	i := st.Cursor
	return Reply{
		Text: Truncate(b.String(), MaxReportLen),
		Controls: []Control{
			{Label: "OK", Intent: Intent{Kind: IntentItemOK, Index: i}, Style: StylePrimary},
			{Label: "Пропустить", Intent: Intent{Kind: IntentItemSkip, Index: i}},
			{Label: "Дальше", Intent: Intent{Kind: IntentItemNext, Index: i}},
		},
	}
}

func resultsText(items []reconcile.Item, outcomes []reconcile.Outcome) string {
	var b strings.Builder
	b.WriteString("Результаты:\n")
	okCount := 0
	for i, it := range items {
		mark := "✗"
		msg := ""
		if i < len(outcomes) {
			msg = outcomes[i].Message
			if outcomes[i].OK {
				mark = "✓"
				okCount++
			}
		}
		fmt.Fprintf(&b, "%s %s: %s\n", mark, it.Title, msg)
	}
	fmt.Fprintf(&b, "\nУспешно: %d из %d", okCount, len(items))
	return b.String()
}

func journalControls() []Control {
	return []Control{
		{Label: "Создать записи", Intent: Intent{Kind: IntentJournalCreate}, Style: StylePrimary},
		{Label: "Не нужно", Intent: Intent{Kind: IntentJournalSkip}},
	}
}

func journalResultsText(entries []reconcile.JournalEntry, outcomes []reconcile.Outcome) string {
	var b strings.Builder
	b.WriteString("Журнал:\n")
	for i, e := range entries {
		mark, msg := "✗", ""
		if i < len(outcomes) {
			msg = outcomes[i].Message
			if outcomes[i].OK {
				mark = "✓"
			}
		}
		fmt.Fprintf(&b, "%s %s: %s\n", mark, e.Description, msg)
	}
	return strings.TrimRight(b.String(), "\n")
}

// plural picks the Russian noun form for n.
func plural(n int, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	}
	return many
}
