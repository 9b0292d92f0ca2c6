// Package roster mirrors the attendance store into the presenter's roster.
package roster

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ashureev/rollcall/internal/domain"
)

// SortEntries orders entries by display name using locale-aware collation,
// breaking ties by attendee ID so equal names sort reproducibly.
func SortEntries(entries []domain.RosterEntry, tag language.Tag) {
	// Collators keep internal buffers and are not safe for concurrent use.
	c := collate.New(tag)
	sort.SliceStable(entries, func(i, j int) bool {
		if cmp := c.CompareString(entries[i].DisplayName, entries[j].DisplayName); cmp != 0 {
			return cmp < 0
		}
		return strings.Compare(entries[i].AttendeeID, entries[j].AttendeeID) < 0
	})
}
