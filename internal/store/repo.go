package store

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Persisted keys.
const (
	KeyAdaptiveWeights   = "adaptiveWeights"
	KeySessionSnapshot   = "currentSessionSnapshot"
	KeyGameStateSnapshot = "currentGameStateSnapshot"
	KeyLifetimeStats     = "lifetimeStats"
	KeySessionHistory    = "sessionHistory"
	KeyAudioCalibration  = "audioCalibrationProfile"
)

// AllKeys lists every key the trainer writes.
var AllKeys = []string{
	KeyAdaptiveWeights,
	KeySessionSnapshot,
	KeyGameStateSnapshot,
	KeyLifetimeStats,
	KeySessionHistory,
	KeyAudioCalibration,
}

// Repo reads and writes JSON blobs. Storage failures are logged and
// swallowed; a nil KV behaves as permanently unavailable storage.
type Repo struct {
	kv KV
}

// NewRepo wraps kv, which may be nil.
func NewRepo(kv KV) *Repo {
	return &Repo{kv: kv}
}

// Load decodes the blob at key into v. It returns false when the key is
// missing, unreadable, or malformed; v is left untouched in that case.
func (r *Repo) Load(ctx context.Context, key string, v any) bool {
	if r == nil || r.kv == nil {
		return false
	}
	data, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		logrus.WithField("key", key).Warnf("failed to read persisted state: %v", err)
		return false
	}
	if !ok || len(data) == 0 {
		return false
	}
	if !json.Valid(data) {
		logrus.WithField("key", key).Warn("ignoring malformed persisted state")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logrus.WithField("key", key).Warnf("ignoring malformed persisted state: %v", err)
		return false
	}
	return true
}

// Has reports whether key holds a value.
func (r *Repo) Has(ctx context.Context, key string) bool {
	if r == nil || r.kv == nil {
		return false
	}
	_, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		logrus.WithField("key", key).Warnf("failed to read persisted state: %v", err)
		return false
	}
	return ok
}

// Save encodes v as JSON under key.
func (r *Repo) Save(ctx context.Context, key string, v any) {
	if r == nil || r.kv == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("failed to encode state: %v", err)
		return
	}
	if err := r.kv.Set(ctx, key, data); err != nil {
		logrus.WithField("key", key).Warnf("failed to persist state: %v", err)
	}
}

// Delete removes keys.
func (r *Repo) Delete(ctx context.Context, keys ...string) {
	if r == nil || r.kv == nil {
		return
	}
	if err := r.kv.Delete(ctx, keys...); err != nil {
		logrus.WithField("keys", keys).Warnf("failed to delete persisted state: %v", err)
	}
}
