package weather

import "unicode/utf8"

// minSearchLength is the shortest text forwarded to the city directory.
const minSearchLength = 4

// DecideSearchText applies the search-input gate: text shorter than
// minSearchLength characters falls back to the unfiltered listing.
func DecideSearchText(text string) string {
	if text == "" || utf8.RuneCountInString(text) < minSearchLength {
		return ""
	}
	return text
}
