package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Storage is the device-local key/value store that state containers persist into.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("storage key not found")

// Envelope is the on-disk shape of a persisted state container.
type Envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

func LoadState[T any](ctx context.Context, s Storage, key string) (T, error) {
	var env Envelope[T]

	data, err := s.Get(ctx, key)
	if err != nil {
		return env.State, err
	}

	if err := json.Unmarshal(data, &env); err != nil {
		return env.State, fmt.Errorf("unmarshal state %q failed: %w", key, err)
	}
	return env.State, nil
}

func SaveState[T any](ctx context.Context, s Storage, key string, state T) error {
	data, err := json.Marshal(Envelope[T]{State: state})
	if err != nil {
		return fmt.Errorf("marshal state %q failed: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
