package match

// Ledger records the phones and canonical records already assigned during a
// run. A worker owns one ledger and passes it to every shard it matches.
type Ledger struct {
	phones  map[string]struct{}
	records map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		phones:  make(map[string]struct{}),
		records: make(map[string]struct{}),
	}
}

// PhoneUsed reports whether phone was already assigned.
func (l *Ledger) PhoneUsed(phone string) bool {
	_, ok := l.phones[phone]
	return ok
}

// RecordUsed reports whether the record already received a value.
func (l *Ledger) RecordUsed(id string) bool {
	_, ok := l.records[id]
	return ok
}

// Mark assigns phone to record id.
func (l *Ledger) Mark(id, phone string) {
	l.records[id] = struct{}{}
	l.phones[phone] = struct{}{}
}

// Len returns the number of assignments.
func (l *Ledger) Len() int { return len(l.records) }
