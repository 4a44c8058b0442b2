package history

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects entries across hosts. Empty fields match everything.
type Filter struct {
	// HostGlob is a doublestar pattern such as "10.0.*" or "db-{1,2}".
	HostGlob string
	// Date is a DateLayout day key.
	Date  string
	Types []string
	Limit int
}

// Validate reports a malformed host pattern.
func (f Filter) Validate() error {
	if f.HostGlob != "" && !doublestar.ValidatePattern(f.HostGlob) {
		return doublestar.ErrBadPattern
	}
	return nil
}

func (f Filter) matchHost(host string) bool {
	if f.HostGlob == "" {
		return true
	}
	ok, _ := doublestar.Match(f.HostGlob, host)
	return ok
}

func (f Filter) matchType(t string) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Search returns the entries matching f, newest first.
func (s *Store) Search(f Filter) ([]Entry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := s.db.Order("seq DESC")
	if f.Date != "" {
		q = q.Where("day = ?", f.Date)
	}
	if len(f.Types) > 0 {
		q = q.Where("execution_type IN ?", f.Types)
	}

	var rows []entryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, storageErr("search", err)
	}

	var out []Entry
	for _, r := range rows {
		if !f.matchHost(r.Host) || !f.matchType(r.ExecutionType) {
			continue
		}
		out = append(out, r.entry())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Days returns the day keys of a ByDate, newest first.
func (b ByDate) Days() []string {
	days := make([]string, 0, len(b))
	for d := range b {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}
