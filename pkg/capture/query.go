package capture

import (
	"strings"
	"time"
)

// ListFilter narrows a List result. Zero values mean "no filter on this
// dimension." Filters apply as AND, in order: topic index lookup first (the
// cheapest), then time range, then substring — so the most expensive
// string-matching step runs over the smallest candidate set.
type ListFilter struct {
	Topic    string
	Since    time.Time
	Until    time.Time
	Contains string
}

func (f ListFilter) hasTimeRange() bool {
	return !f.Since.IsZero() || !f.Until.IsZero()
}

// List is C6's thin pass-through to the store, combining topic, time-range
// and body-substring filters. An empty ListFilter returns every live
// record via GetAll.
func List(s Interface, f ListFilter) ([]Record, error) {
	var records []Record

	switch {
	case f.Topic != "":
		var err error
		records, err = s.GetByTopic(f.Topic)
		if err != nil {
			return nil, err
		}
	default:
		records = s.GetAll()
	}

	if f.hasTimeRange() {
		since, until := f.Since, f.Until
		if since.IsZero() {
			since = time.Time{}
		}
		if until.IsZero() {
			until = time.Now().Add(24 * 365 * time.Hour)
		}
		records = intersectByTimeRange(records, since, until)
	}

	if f.Contains != "" {
		records = filterContains(records, f.Contains)
	}

	return records, nil
}

func intersectByTimeRange(records []Record, start, end time.Time) []Record {
	if start.After(end) {
		return []Record{}
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r)
		}
	}
	return out
}

func filterContains(records []Record, substr string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.Contains(r.Body, substr) {
			out = append(out, r)
		}
	}
	return out
}
