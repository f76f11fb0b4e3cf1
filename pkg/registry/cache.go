/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package registry implements the Redis-backed snapshot cache for the
// active intelligence provider and active notification channels (§9 design
// note: avoid a DB round trip on every stage/node execution). The cache is
// refreshed on a fixed interval and on config-file change events; a request
// that finds no snapshot in Redis loads from the repositories and
// repopulates it.
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

const (
	providerKey = "alertpipe:active_provider"
	channelsKey = "alertpipe:active_channels"
	cacheTTL    = 5 * time.Minute
)

// Cache serves the active provider/channel snapshot from Redis, falling
// back to the backing repositories (and repopulating Redis) on a miss.
type Cache struct {
	Redis     *redis.Client
	Providers repository.ProviderRepository
	Channels  repository.ChannelRepository
	Log       logr.Logger
}

func New(client *redis.Client, providers repository.ProviderRepository, channels repository.ChannelRepository, log logr.Logger) *Cache {
	return &Cache{Redis: client, Providers: providers, Channels: channels, Log: log}
}

// ActiveProvider returns the active intelligence provider, preferring the
// Redis snapshot.
func (c *Cache) ActiveProvider(ctx context.Context) (*types.IntelligenceProvider, error) {
	raw, err := c.Redis.Get(ctx, providerKey).Bytes()
	if err == nil {
		var p types.IntelligenceProvider
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
	}

	p, err := c.Providers.GetActive(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "registry: load active provider").WithRetryable(true)
	}
	if p != nil {
		c.setCached(ctx, providerKey, p)
	}
	return p, nil
}

// ActiveChannels returns the active notification channels, preferring the
// Redis snapshot.
func (c *Cache) ActiveChannels(ctx context.Context) ([]*types.NotificationChannel, error) {
	raw, err := c.Redis.Get(ctx, channelsKey).Bytes()
	if err == nil {
		var chans []*types.NotificationChannel
		if jsonErr := json.Unmarshal(raw, &chans); jsonErr == nil {
			return chans, nil
		}
	}

	chans, err := c.Channels.ListActive(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "registry: load active channels").WithRetryable(true)
	}
	c.setCached(ctx, channelsKey, chans)
	return chans, nil
}

// Refresh forces both snapshots to be recomputed from the repositories and
// rewritten to Redis, regardless of TTL.
func (c *Cache) Refresh(ctx context.Context) error {
	p, err := c.Providers.GetActive(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "registry: refresh active provider").WithRetryable(true)
	}
	if p != nil {
		c.setCached(ctx, providerKey, p)
	}

	chans, err := c.Channels.ListActive(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindTransient, "registry: refresh active channels").WithRetryable(true)
	}
	c.setCached(ctx, channelsKey, chans)
	return nil
}

func (c *Cache) setCached(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.Log.Error(err, "registry: marshal cache value", "key", key)
		return
	}
	if err := c.Redis.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		c.Log.Error(err, "registry: write cache value", "key", key)
	}
}
