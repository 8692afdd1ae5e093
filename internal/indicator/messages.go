package indicator

import "strings"

type messages struct {
	listening string
	errorText string
	untitled  string
}

func defaultMessages() messages {
	return messages{
		listening: "Listening…",
		errorText: "Intake error",
		untitled:  "Patient intake",
	}
}

func (m messages) prompt(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return m.untitled
	}
	return m.untitled + ": " + title
}
