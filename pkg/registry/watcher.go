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

package registry

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Run refreshes the cache on every tick of interval and on any write/create
// event to configPath, until ctx is cancelled. configPath is typically the
// definitions/channels config file an operator edits by hand; an empty
// configPath disables file watching and leaves only the ticker active.
func (c *Cache) Run(ctx context.Context, interval time.Duration, configPath string) error {
	var watcher *fsnotify.Watcher
	if configPath != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Add(configPath); err != nil {
			return err
		}
		watcher = w
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := c.Refresh(ctx); err != nil {
		c.Log.Error(err, "registry: initial refresh failed")
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.Log.Error(err, "registry: periodic refresh failed")
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := c.Refresh(ctx); err != nil {
					c.Log.Error(err, "registry: config-triggered refresh failed")
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.Log.Error(err, "registry: watcher error")
		}
	}
}
