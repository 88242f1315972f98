package entries

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

type KVRepository struct {
	store kv.Repository
	log   logging.Logger
}

func NewKVRepository(store kv.Repository, log logging.Logger) *KVRepository {
	if log == nil {
		log = logging.Nop()
	}
	return &KVRepository{store: store, log: log}
}

func (r *KVRepository) Load(ctx context.Context, namespace string) models.EntryMap {
	raw, err := r.store.Get(ctx, namespace)
	if err != nil {
		r.log.Warn(ctx, "load entries failed", "namespace", namespace, "error", err)
		return models.EntryMap{}
	}

	m, err := Decode(raw)
	if err != nil {
		r.log.Warn(ctx, "corrupt entries blob ignored", "namespace", namespace, "error", err)
		return models.EntryMap{}
	}
	return m
}

func (r *KVRepository) Commit(ctx context.Context, namespace string, m models.EntryMap) bool {
	b, err := json.Marshal(m)
	if err != nil {
		r.log.Warn(ctx, "encode entries failed", "namespace", namespace, "error", err)
		return false
	}

	if err := r.store.Set(ctx, namespace, b); err != nil {
		r.log.Warn(ctx, "commit entries failed", "namespace", namespace, "error", err)
		return false
	}
	return true
}

func (r *KVRepository) LoadPending(ctx context.Context, namespace string) []string {
	raw, err := r.store.Get(ctx, namespace)
	if err != nil || raw == nil {
		if err != nil {
			r.log.Warn(ctx, "load pending failed", "namespace", namespace, "error", err)
		}
		return nil
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		r.log.Warn(ctx, "corrupt pending set ignored", "namespace", namespace, "error", err)
		return nil
	}
	return normalizeKeys(keys)
}

func (r *KVRepository) CommitPending(ctx context.Context, namespace string, keys []string) bool {
	b, err := json.Marshal(normalizeKeys(keys))
	if err != nil {
		return false
	}
	if err := r.store.Set(ctx, namespace, b); err != nil {
		r.log.Warn(ctx, "commit pending failed", "namespace", namespace, "error", err)
		return false
	}
	return true
}

// Decode parses a stored entries blob. A nil blob is an empty map. Every entry
// is normalized and keyed by its map key; keys that are not valid dates are
// dropped.
func Decode(raw []byte) (models.EntryMap, error) {
	m := models.EntryMap{}
	if len(raw) == 0 {
		return m, nil
	}

	var blobs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return nil, err
	}

	for key, blob := range blobs {
		if !models.ValidDateKey(key) {
			continue
		}
		e := models.Normalize(blob)
		e.DateKey = key
		m[key] = e
	}
	return m, nil
}

// Get returns the normalized entry for dateKey; unseen dates yield an empty
// entry carrying the key.
func Get(m models.EntryMap, dateKey string) models.Entry {
	e := models.Normalize(m[dateKey])
	e.DateKey = dateKey
	return e
}

// Set returns a copy of m in which the entry for dateKey has p applied.
func Set(m models.EntryMap, dateKey string, p models.Patch) models.EntryMap {
	out := m.Clone()
	out[dateKey] = p.Apply(Get(m, dateKey))
	return out
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if models.ValidDateKey(k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
