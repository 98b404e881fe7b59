// Package historian persists the control core's audit trail — alarm
// activations, state transitions, and proving certificates — to a local
// BoltDB file so a custody-transfer dispute can be reconstructed after
// the fact. Live operational state lives entirely in the tag store; this
// package is write-mostly. The scan engine writes to it synchronously from
// the scan cycle, but only on alarm edges, state transitions and completed
// proving sequences.
//
// Schema (BoltDB bucket layout):
//
//	/alarm_events
//	    key:   RFC3339Nano timestamp + "_" + tag   [sortable]
//	    value: JSON-encoded AlarmEvent
//
//	/state_transitions
//	    key:   RFC3339Nano timestamp  [sortable]
//	    value: JSON-encoded StateTransition
//
//	/proving_certificates
//	    key:   RFC3339Nano timestamp  [sortable]
//	    value: JSON-encoded ProvingCertificate
//
// Consistency model: single-process, single-writer (the scan thread);
// every write is its own ACID transaction. Retention is caller-driven —
// PruneOlderThan trims a bucket to a retention window; the historian
// itself runs no background goroutine.
package historian

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketAlarmEvents         = "alarm_events"
	bucketStateTransitions    = "state_transitions"
	bucketProvingCertificates = "proving_certificates"

	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/lactd/lactd.db"
)

// AlarmEvent is one alarm activation or deactivation, recorded for audit.
type AlarmEvent struct {
	Tag         string    `json:"tag"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Active      bool      `json:"active"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// StateTransition is one custody-transfer lifecycle transition.
type StateTransition struct {
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Timestamp  time.Time `json:"timestamp"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parent_hash"`
}

// ProvingCertificate is the outcome of one complete proving sequence,
// the record a custody-transfer dispute would reference.
type ProvingCertificate struct {
	RunResults       []float64 `json:"run_results"`
	AvgMeterFactor   float64   `json:"avg_meter_factor"`
	RepeatabilityPct float64   `json:"repeatability_pct"`
	Passed           bool      `json:"passed"`
	FailReason       string    `json:"fail_reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// DB wraps a BoltDB instance with typed accessors for the LACT audit
// trail.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the BoltDB database at the given path,
// creating the parent directory and all three buckets if needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("historian: create parent directory of %q: %w", path, err)
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("historian: bolt.Open(%q): %w", path, err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketAlarmEvents, bucketStateTransitions, bucketProvingCertificates} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("historian: initialize buckets: %w", err)
	}

	return &DB{db: bdb}, nil
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error { return d.db.Close() }

func timestampKey(t time.Time) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano))
}

// AppendAlarmEvent records one alarm activation or deactivation.
func (d *DB) AppendAlarmEvent(ev AlarmEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("historian: marshal alarm event: %w", err)
	}
	key := append(timestampKey(ev.Timestamp), '_')
	key = append(key, []byte(ev.Tag)...)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAlarmEvents)).Put(key, data)
	})
}

// AppendStateTransition records one custody-transfer state transition.
func (d *DB) AppendStateTransition(tr StateTransition) error {
	if tr.Timestamp.IsZero() {
		tr.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("historian: marshal state transition: %w", err)
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketStateTransitions)).Put(timestampKey(tr.Timestamp), data)
	})
}

// AppendProvingCertificate records the outcome of one proving sequence.
func (d *DB) AppendProvingCertificate(cert ProvingCertificate) error {
	if cert.Timestamp.IsZero() {
		cert.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("historian: marshal proving certificate: %w", err)
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProvingCertificates)).Put(timestampKey(cert.Timestamp), data)
	})
}

// ReadAlarmEvents returns every recorded alarm activation or deactivation
// in chronological order. For operator/CLI inspection; not called on the
// scan-cycle path.
func (d *DB) ReadAlarmEvents() ([]AlarmEvent, error) {
	var out []AlarmEvent
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAlarmEvents)).ForEach(func(_, v []byte) error {
			var ev AlarmEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}

// ReadStateTransitions returns every recorded transition in chronological
// order. For operator/CLI inspection; not called on the scan-cycle path.
func (d *DB) ReadStateTransitions() ([]StateTransition, error) {
	var out []StateTransition
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketStateTransitions)).ForEach(func(_, v []byte) error {
			var tr StateTransition
			if err := json.Unmarshal(v, &tr); err != nil {
				return err
			}
			out = append(out, tr)
			return nil
		})
	})
	return out, err
}

// ReadProvingCertificates returns every recorded proving outcome in
// chronological order.
func (d *DB) ReadProvingCertificates() ([]ProvingCertificate, error) {
	var out []ProvingCertificate
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProvingCertificates)).ForEach(func(_, v []byte) error {
			var cert ProvingCertificate
			if err := json.Unmarshal(v, &cert); err != nil {
				return err
			}
			out = append(out, cert)
			return nil
		})
	})
	return out, err
}

// PruneOlderThan deletes alarm events and state transitions older than
// cutoff. Proving certificates are never automatically pruned — they are
// the custody-transfer record of record.
func (d *DB) PruneOlderThan(cutoff time.Time) (int, error) {
	deleted := 0
	err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketAlarmEvents, bucketStateTransitions} {
			b := tx.Bucket([]byte(name))
			c := b.Cursor()
			cutoffKey := timestampKey(cutoff)
			var toDelete [][]byte
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if string(k) >= string(cutoffKey) {
					break
				}
				keyCopy := make([]byte, len(k))
				copy(keyCopy, k)
				toDelete = append(toDelete, keyCopy)
			}
			for _, k := range toDelete {
				if err := b.Delete(k); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
