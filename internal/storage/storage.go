// Package storage persists the raw database image to durable client storage.
//
// The core only needs "give me the last saved image" and "persist this image".
// Tiered combines a preferred tier with a fallback tier; callers see an error
// only when both tiers fail.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Gateway loads and saves the database image. LoadBytes returns (nil, nil)
// when nothing has been saved yet.
type Gateway interface {
	LoadBytes(ctx context.Context) ([]byte, error)
	SaveBytes(ctx context.Context, data []byte) error
}

// Tiered tries Primary first and falls back to Fallback on load and on save.
type Tiered struct {
	Primary  Gateway
	Fallback Gateway
	Log      zerolog.Logger
}

// NewTiered wires the default file tier in front of the kv tier.
func NewTiered(filePath, kvPath string, log zerolog.Logger) *Tiered {
	return &Tiered{
		Primary:  &FileStore{Path: filePath},
		Fallback: &KVStore{Path: kvPath, Key: DefaultKey},
		Log:      log.With().Str("component", "storage").Logger(),
	}
}

func (t *Tiered) LoadBytes(ctx context.Context) ([]byte, error) {
	data, perr := t.Primary.LoadBytes(ctx)
	if perr == nil && data != nil {
		return data, nil
	}
	if perr != nil {
		t.Log.Warn().Err(perr).Msg("primary load failed, trying fallback")
	}
	data, ferr := t.Fallback.LoadBytes(ctx)
	if ferr == nil {
		return data, nil
	}
	if perr == nil {
		// primary was simply empty
		return nil, fmt.Errorf("load fallback: %w", ferr)
	}
	return nil, fmt.Errorf("load image: %w", errors.Join(perr, ferr))
}

func (t *Tiered) SaveBytes(ctx context.Context, data []byte) error {
	perr := t.Primary.SaveBytes(ctx, data)
	if perr == nil {
		return nil
	}
	t.Log.Warn().Err(perr).Msg("primary save failed, using fallback")
	if ferr := t.Fallback.SaveBytes(ctx, data); ferr != nil {
		return fmt.Errorf("save image: %w", errors.Join(perr, ferr))
	}
	return nil
}
