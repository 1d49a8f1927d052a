package redis

import (
	"context"
	"errors"

	"github.com/nexypass/nexypass-backend/internal/store"
)

// KV adapts Client to the record store's persistence interface, so the local
// mirror can live in a redis instance instead of files.
type KV struct {
	client RedisClient
}

func NewKV(client RedisClient) *KV {
	return &KV{client: client}
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := k.client.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", store.ErrKeyNotFound
	}
	return val, err
}

func (k *KV) Set(ctx context.Context, key string, value string) error {
	return k.client.Set(ctx, key, value, 0)
}

func (k *KV) Del(ctx context.Context, key string) error {
	return k.client.Del(ctx, key)
}
