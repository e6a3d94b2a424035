package schedule

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/samber/lo"
)

type Kind string

const (
	KindPin     Kind = "pin"
	KindRelease Kind = "release" // Drops whatever pin the instance had
)

// OverrideEntry is one immutable record of the override ledger
type OverrideEntry struct {
	Seq       uint64             `json:"seq"`
	Kind      Kind               `json:"kind"`
	Key       model.Key          `json:"key"`
	Slots     []catalog.TimeSlot `json:"slots,omitempty"`
	Room      string             `json:"room,omitempty"`
	Faculty   string             `json:"faculty,omitempty"`
	Forced    bool               `json:"forced"`
	Reason    string             `json:"reason,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (entry OverrideEntry) Pin() model.Pin {
	return model.Pin{
		Seq:     entry.Seq,
		Key:     entry.Key,
		Slots:   slices.Clone(entry.Slots),
		Room:    entry.Room,
		Faculty: entry.Faculty,
		Forced:  entry.Forced,
		Reason:  entry.Reason,
	}
}

func (entry OverrideEntry) String() string {
	if entry.Kind == KindRelease {
		return fmt.Sprintf("#%d release %v", entry.Seq, entry.Key)
	}
	return entry.Pin().String()
}

// Ledger is the append-only override history of a session. Append never touches the receiver, so a ledger
// may be shared freely between readers
type Ledger struct {
	session uuid.UUID
	entries []OverrideEntry
}

func NewLedger(session uuid.UUID) *Ledger {
	return &Ledger{session: session}
}

func (ledger *Ledger) Session() uuid.UUID { return ledger.session }

// Version is the sequence number of the last entry, zero for an empty ledger
func (ledger *Ledger) Version() uint64 { return uint64(len(ledger.entries)) }

func (ledger *Ledger) Len() int { return len(ledger.entries) }

// Append returns a new ledger holding the entry with the next sequence number
func (ledger *Ledger) Append(entry OverrideEntry) (*Ledger, OverrideEntry) {
	entry.Seq = ledger.Version() + 1
	entry.Slots = slices.Clone(entry.Slots)
	if entry.Kind == "" {
		entry.Kind = KindPin
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return &Ledger{
		session: ledger.session,
		entries: append(slices.Clip(ledger.entries), entry),
	}, entry
}

func (ledger *Ledger) Entries() []OverrideEntry {
	return slices.Clone(ledger.entries)
}

func (ledger *Ledger) Entry(seq uint64) (OverrideEntry, bool) {
	if seq == 0 || seq > ledger.Version() {
		return OverrideEntry{}, false
	}
	return ledger.entries[seq-1], true
}

// Last returns the most recent entry of the ledger
func (ledger *Ledger) Last() (OverrideEntry, bool) {
	return ledger.Entry(ledger.Version())
}

// Latest returns the most recent entry targeting the instance, release entries included
func (ledger *Ledger) Latest(key model.Key) (OverrideEntry, bool) {
	for i := len(ledger.entries) - 1; i >= 0; i-- {
		if ledger.entries[i].Key == key {
			return ledger.entries[i], true
		}
	}
	return OverrideEntry{}, false
}

func (ledger *Ledger) History(key model.Key) []OverrideEntry {
	return lo.Filter(ledger.entries, func(entry OverrideEntry, _ int) bool { return entry.Key == key })
}

// Active returns, ordered by key, the latest entry of every instance whose latest entry is a pin
func (ledger *Ledger) Active() []OverrideEntry {
	latest := make(map[model.Key]OverrideEntry)
	for _, entry := range ledger.entries {
		latest[entry.Key] = entry
	}
	active := lo.Filter(lo.Values(latest), func(entry OverrideEntry, _ int) bool { return entry.Kind == KindPin })
	slices.SortFunc(active, func(a, b OverrideEntry) int { return model.CompareKeys(a.Key, b.Key) })
	return active
}

// Pins converts the active entries into solver pins
func (ledger *Ledger) Pins() []model.Pin {
	return lo.Map(ledger.Active(), func(entry OverrideEntry, _ int) model.Pin { return entry.Pin() })
}

func (ledger *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Session string          `json:"session"`
		Version uint64          `json:"version"`
		Entries []OverrideEntry `json:"entries"`
	}{
		Session: ledger.session.String(),
		Version: ledger.Version(),
		Entries: lo.Ternary(ledger.entries == nil, []OverrideEntry{}, ledger.entries),
	})
}
