package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var revokedBucket = []byte("revoked")

// FileRevocations keeps revoked token ids in a bbolt file so logouts survive
// a restart of a single-node deployment.
type FileRevocations struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ RevocationStore = (*FileRevocations)(nil)

// OpenFileRevocations opens or creates the bbolt file at path.
func OpenFileRevocations(path string, now func() time.Time) (*FileRevocations, error) {
	if now == nil {
		now = time.Now
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create revocation directory %s: %w", dir, err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open revocation file %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(revokedBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create revocation bucket: %w", err)
	}
	return &FileRevocations{db: db, now: now}, nil
}

// Revoke stores tokenID with its expiry and drops entries that already expired.
func (f *FileRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	now := f.now()
	if tokenID == "" || !until.After(now) {
		return nil
	}

	err := f.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(revokedBucket)
		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			if !now.Before(decodeExpiry(v)) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, key := range expired {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return bucket.Put([]byte(tokenID), encodeExpiry(until))
	})
	if err != nil {
		return fmt.Errorf("%w: revoke %s: %v", ErrUnavailable, tokenID, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is stored and not yet expired.
func (f *FileRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	var until time.Time
	err := f.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(revokedBucket).Get([]byte(tokenID)); v != nil {
			until = decodeExpiry(v)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %v", ErrUnavailable, tokenID, err)
	}
	return f.now().Before(until), nil
}

// Close releases the file lock.
func (f *FileRevocations) Close() error {
	return f.db.Close()
}

func encodeExpiry(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeExpiry(v []byte) time.Time {
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v)))
}
