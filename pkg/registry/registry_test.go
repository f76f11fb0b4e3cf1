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

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/registry"
	"github.com/jordigilh/alertpipe/pkg/storage/memory"
	"github.com/jordigilh/alertpipe/pkg/types"
)

func newCache(t *testing.T) (*registry.Cache, *memory.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := memory.NewStore()
	c := registry.New(client, memory.ProviderRepo{S: store}, memory.ChannelRepo{S: store}, logr.Discard())
	return c, store
}

func TestActiveProvider_FallsBackToRepositoryOnCacheMiss(t *testing.T) {
	c, store := newCache(t)
	store.PutProvider(&types.IntelligenceProvider{Type: "anthropic", IsActive: true})

	p, err := c.ActiveProvider(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "anthropic", p.Type)
}

func TestActiveProvider_ServesFromCacheAfterFirstLoad(t *testing.T) {
	c, store := newCache(t)
	store.PutProvider(&types.IntelligenceProvider{Type: "anthropic", IsActive: true})

	_, err := c.ActiveProvider(context.Background())
	require.NoError(t, err)

	store.PutProvider(&types.IntelligenceProvider{Type: "bedrock", IsActive: true})

	p, err := c.ActiveProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Type, "stale cached value served until next refresh")
}

func TestRefresh_OverwritesStaleSnapshot(t *testing.T) {
	c, store := newCache(t)
	store.PutProvider(&types.IntelligenceProvider{Type: "anthropic", IsActive: true})
	_, err := c.ActiveProvider(context.Background())
	require.NoError(t, err)

	store.PutProvider(&types.IntelligenceProvider{Type: "bedrock", IsActive: true})
	require.NoError(t, c.Refresh(context.Background()))

	p, err := c.ActiveProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bedrock", p.Type)
}

func TestActiveChannels_FallsBackToRepositoryOnCacheMiss(t *testing.T) {
	c, store := newCache(t)
	store.PutChannel(&types.NotificationChannel{ID: "c1", Name: "chan-1", Driver: "slack", IsActive: true})

	chans, err := c.ActiveChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, chans, 1)
	assert.Equal(t, "chan-1", chans[0].Name)
}

func TestRun_StopsOnContextCancellation(t *testing.T) {
	c, _ := newCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Hour, "") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
