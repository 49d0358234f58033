package engine

import (
	"log"
	"sort"
	"time"

	"karas-agent/internal/models"
)

// Due returns the reminders that are at or past their scheduled instant and
// not yet in the fired set, ascending by due time. A reminder whose instant
// does not parse is never due: nothing the user does locally can fix it, so
// it is logged and skipped rather than surfaced.
//
// Pure with respect to its inputs; any number of triggers may call it
// redundantly, the commit happens in the Coordinator.
func Due(snapshot []models.Reminder, fired map[int64]bool, now time.Time) []models.Reminder {
	type dued struct {
		r  models.Reminder
		at time.Time
	}
	var due []dued
	for _, r := range snapshot {
		if fired[r.ID] {
			continue
		}
		at, err := r.DueAt()
		if err != nil {
			log.Println("due-check:", err)
			continue
		}
		if !at.After(now) {
			due = append(due, dued{r: r, at: at})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	out := make([]models.Reminder, 0, len(due))
	for _, d := range due {
		out = append(out, d.r)
	}
	return out
}

// SortByDueTime orders a reminder list ascending by scheduled instant for
// presentation; unparseable instants sink to the end.
func SortByDueTime(rs []models.Reminder) {
	sort.SliceStable(rs, func(i, j int) bool {
		ti, erri := rs[i].DueAt()
		tj, errj := rs[j].DueAt()
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		return ti.Before(tj)
	})
}
