package vacancies

import "strings"

// Details renders the vacancy as the fixed-order text block sent to the assistant and
// kept in the transcript.
func Details(v Vacancy) string {
	lines := []string{
		"Name: " + v.Name,
		"Suitability Needed For the Vacancy: " + v.SuitabilityNeeded,
		"Description:",
		bullets(v.Requirements),
		"Would be plus:",
		bullets(v.PlusDetails),
		"Notes: " + v.Notes,
	}
	return strings.Join(lines, "\n")
}

func bullets(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, "- "+item)
	}
	return strings.Join(out, "\n")
}
