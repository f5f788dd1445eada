package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultKey is the slot the database image is stored under.
const DefaultKey = "db"

type kvEntry struct {
	Data    []byte    `msgpack:"data"`
	SavedAt time.Time `msgpack:"saved_at"`
}

type kvFile struct {
	Entries map[string]kvEntry `msgpack:"entries"`
}

// KVStore is a small durable key-value store: one msgpack file holding every
// key. It is the fallback tier, so it favours simplicity over throughput.
type KVStore struct {
	Path string
	Key  string
}

func (s *KVStore) key() string {
	if s.Key == "" {
		return DefaultKey
	}
	return s.Key
}

func (s *KVStore) LoadBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kf, err := s.load()
	if err != nil {
		return nil, err
	}
	e, ok := kf.Entries[s.key()]
	if !ok {
		return nil, nil
	}
	return e.Data, nil
}

func (s *KVStore) SaveBytes(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kf, err := s.load()
	if err != nil {
		return err
	}
	if kf.Entries == nil {
		kf.Entries = map[string]kvEntry{}
	}
	kf.Entries[s.key()] = kvEntry{Data: data, SavedAt: time.Now().UTC()}
	raw, err := msgpack.Marshal(&kf)
	if err != nil {
		return fmt.Errorf("encode kv: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return writeAtomic(s.Path, raw)
}

// SavedAt reports when the current key was last written.
func (s *KVStore) SavedAt() (time.Time, bool, error) {
	kf, err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}
	e, ok := kf.Entries[s.key()]
	return e.SavedAt, ok, nil
}

func (s *KVStore) load() (kvFile, error) {
	var kf kvFile
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return kvFile{}, nil
		}
		return kf, err
	}
	if err := msgpack.Unmarshal(raw, &kf); err != nil {
		return kf, fmt.Errorf("decode kv: %w", err)
	}
	return kf, nil
}
