package domain

// Bond is one configured instrument: the identifier used to query the
// terminal and the human label the report sources print.
type Bond struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// BondList is the ordered bond configuration loaded once per run. It is
// immutable for the run's duration; lookups are by terminal identifier or by
// report label.
type BondList struct {
	bonds   []Bond
	byID    map[string]Bond
	byLabel map[string]Bond
}

// NewBondList builds a BondList from the configured bonds, preserving order.
// Later duplicates of an ID or label are ignored.
func NewBondList(bonds []Bond) BondList {
	l := BondList{
		bonds:   make([]Bond, len(bonds)),
		byID:    make(map[string]Bond, len(bonds)),
		byLabel: make(map[string]Bond, len(bonds)),
	}
	copy(l.bonds, bonds)
	for _, b := range bonds {
		if _, ok := l.byID[b.ID]; !ok {
			l.byID[b.ID] = b
		}
		if _, ok := l.byLabel[b.Label]; !ok {
			l.byLabel[b.Label] = b
		}
	}
	return l
}

// All returns the bonds in configuration order.
func (l BondList) All() []Bond {
	out := make([]Bond, len(l.bonds))
	copy(out, l.bonds)
	return out
}

// Len returns the number of configured bonds.
func (l BondList) Len() int { return len(l.bonds) }

// ByID looks up a bond by its terminal identifier.
func (l BondList) ByID(id string) (Bond, bool) {
	b, ok := l.byID[id]
	return b, ok
}

// ByLabel looks up a bond by its report label.
func (l BondList) ByLabel(label string) (Bond, bool) {
	b, ok := l.byLabel[label]
	return b, ok
}

// IDs returns the terminal identifiers in configuration order.
func (l BondList) IDs() []string {
	ids := make([]string, 0, len(l.bonds))
	for _, b := range l.bonds {
		ids = append(ids, b.ID)
	}
	return ids
}
