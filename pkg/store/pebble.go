// Package store is the document layer over pebble. It provides exactly
// the backend contract the sync core consumes: single-document
// read/write, per-conversation transactional read-modify-write, ordered
// paginated range scans over message keys, and change publication into
// the feed hub. Keys are shaped by pkg/store/keys so lexicographic
// order equals chronological order.
package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/store/locks"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotParticipant is the permission-denied error: the caller is not
	// a member of the conversation. Listeners treat it as terminal-and-silent.
	ErrNotParticipant = errors.New("not a conversation participant")
)

var (
	db        *pebble.DB
	dbPath    string
	convLocks = locks.NewMap()
	hub       *feed.Hub
)

var messagesAppended = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "flock_messages_appended_total",
	Help: "Messages committed to the store.",
})

var votesApplied = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "flock_votes_applied_total",
	Help: "Poll vote transactions committed.",
})

func init() {
	prometheus.MustRegister(messagesAppended)
	prometheus.MustRegister(votesApplied)
}

// Open opens/creates the pebble DB at path.
func Open(path string) error {
	var err error
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	return nil
}

// Ready returns true if the DB is opened.
func Ready() bool {
	return db != nil
}

// SetHub installs the change feed hub that committed mutations publish
// into. Must be called before serving traffic; a nil hub silences
// publication (used by storage-only tests).
func SetHub(h *feed.Hub) {
	hub = h
}

func publish(ev feed.Event) {
	if hub != nil {
		hub.Publish(ev)
	}
}

// writeOpt chooses sync/no-sync WriteOptions.
func writeOpt(requestSync bool) *pebble.WriteOptions {
	if requestSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pebble.ErrNotFound)
}

// GetKey returns the raw value for key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return "", ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// SaveKey stores an arbitrary key/value.
func SaveKey(key string, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Set([]byte(key), value, writeOpt(true)); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(value))
	return nil
}

// DeleteKey removes key.
func DeleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if err := db.Delete([]byte(key), writeOpt(true)); err != nil {
		logger.Error("delete_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("delete_key_ok", "key", key)
	return nil
}

// ListKeys lists all keys for prefix; returns all if prefix empty.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(append([]byte(nil), iter.Key()...)))
		}
		return out, iter.Error()
	}
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}
