package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/capsule"
)

const (
	capsulePrefix = "capsule/"
	ownerPrefix   = "owner/"
)

type capsuleRecord struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Message    string    `json:"message"`
	UnlockAt   time.Time `json:"unlock_at"`
	SecretHash string    `json:"secret_hash"`
	Expired    bool      `json:"is_expired"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toRecord(c *capsule.Capsule) capsuleRecord {
	return capsuleRecord{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Message:    c.Message,
		UnlockAt:   c.UnlockAt,
		SecretHash: c.SecretHash,
		Expired:    c.Expired,
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (r capsuleRecord) toCapsule() *capsule.Capsule {
	return &capsule.Capsule{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Message:    r.Message,
		UnlockAt:   r.UnlockAt,
		SecretHash: r.SecretHash,
		Expired:    r.Expired,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func capsuleKey(id uuid.UUID) []byte {
	return []byte(capsulePrefix + id.String())
}

func ownerIndexPrefix(owner uuid.UUID) []byte {
	return []byte(ownerPrefix + owner.String() + "/")
}

func ownerIndexKey(r capsuleRecord) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", ownerPrefix, r.OwnerID, r.CreatedAt.UnixNano(), r.ID))
}

// Capsules is a capsule.Repository backed by BadgerDB.
type Capsules struct {
	db  *DB
	now func() time.Time
}

func NewCapsules(db *DB) *Capsules {
	return &Capsules{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Capsules) Create(ctx context.Context, c *capsule.Capsule) error {
	now := s.now()
	rec := toRecord(c)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Version = 1

	err := s.db.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(capsuleKey(rec.ID)); err == nil {
			return fmt.Errorf("capsule %s already exists", rec.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := putCapsule(txn, rec); err != nil {
			return err
		}
		return txn.Set(ownerIndexKey(rec), nil)
	})
	if err != nil {
		return fmt.Errorf("badger create capsule: %w", err)
	}

	c.CreatedAt, c.UpdatedAt, c.Version = rec.CreatedAt, rec.UpdatedAt, rec.Version
	return nil
}

func (s *Capsules) GetByID(ctx context.Context, id uuid.UUID) (*capsule.Capsule, error) {
	var rec capsuleRecord
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = getCapsule(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec.toCapsule(), nil
}

func (s *Capsules) FindByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*capsule.Capsule, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}
	out := make([]*capsule.Capsule, 0, limit)
	total := 0

	err := s.db.view(ctx, func(txn *badger.Txn) error {
		prefix := ownerIndexPrefix(ownerID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		var ids []uuid.UUID
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if total >= offset && len(ids) < limit {
				key := it.Item().Key()
				id, err := uuid.ParseBytes(key[len(key)-36:])
				if err != nil {
					return fmt.Errorf("bad owner index key %q: %w", key, err)
				}
				ids = append(ids, id)
			}
			total++
		}

		for _, id := range ids {
			rec, err := getCapsule(txn, id)
			if err != nil {
				return err
			}
			out = append(out, rec.toCapsule())
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("badger list capsules: %w", err)
	}
	return out, total, nil
}

func (s *Capsules) FindExpiringCandidates(ctx context.Context, cutoff time.Time) ([]*capsule.Capsule, error) {
	var out []*capsule.Capsule
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(capsulePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec capsuleRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !rec.Expired && rec.UnlockAt.Before(cutoff) {
				out = append(out, rec.toCapsule())
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger find expiring capsules: %w", err)
	}
	return out, nil
}

func (s *Capsules) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch capsule.Patch) (*capsule.Capsule, error) {
	var rec capsuleRecord
	err := s.db.update(ctx, func(txn *badger.Txn) error {
		var err error
		rec, err = getCapsule(txn, id)
		if err != nil {
			return err
		}
		if rec.Version != expectedVersion {
			return capsule.ErrConflict
		}
		c := rec.toCapsule()
		patch.Apply(c)
		c.Version++
		c.UpdatedAt = s.now()
		rec = toRecord(c)
		return putCapsule(txn, rec)
	})
	if err != nil {
		return nil, mapTxnErr(err)
	}
	return rec.toCapsule(), nil
}

func (s *Capsules) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	err := s.db.update(ctx, func(txn *badger.Txn) error {
		rec, err := getCapsule(txn, id)
		if err != nil {
			return err
		}
		if rec.Version != expectedVersion {
			return capsule.ErrConflict
		}
		if err := txn.Delete(capsuleKey(id)); err != nil {
			return err
		}
		return txn.Delete(ownerIndexKey(rec))
	})
	return mapTxnErr(err)
}

func getCapsule(txn *badger.Txn, id uuid.UUID) (capsuleRecord, error) {
	var rec capsuleRecord
	item, err := txn.Get(capsuleKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, capsule.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

func putCapsule(txn *badger.Txn, rec capsuleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(capsuleKey(rec.ID), data)
}

// mapTxnErr reports badger's optimistic transaction conflicts as capsule
// conflicts.
func mapTxnErr(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return capsule.ErrConflict
	}
	return err
}
