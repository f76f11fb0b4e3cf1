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

package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jordigilh/alertpipe/pkg/storage/repository"
)

// FingerprintLock serializes normalization of alerts sharing a fingerprint
// using a session-level Postgres advisory lock held on a dedicated
// connection, per §5: "never an in-process lock, which would fail under
// multi-worker deployment."
type FingerprintLock struct {
	Pool *pgxpool.Pool
}

var _ repository.FingerprintLocker = FingerprintLock{}

// Lock acquires pg_advisory_lock(key) on a connection checked out of the
// pool for the lock's duration, and returns an unlock func that releases the
// lock and returns the connection.
func (l FingerprintLock) Lock(ctx context.Context, fingerprint string) (func(), error) {
	conn, err := l.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	key := advisoryKey(fingerprint)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, err
	}

	return func() {
		// Best-effort unlock on the same connection the lock was taken on;
		// the connection is released regardless so the pool slot isn't
		// leaked even if the unlock call itself fails.
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key)
		conn.Release()
	}, nil
}

// advisoryKey hashes fingerprint to the int64 key pg_advisory_lock expects.
// Collisions only cost extra serialization between unrelated fingerprints,
// never correctness, since the lock is strictly a throughput optimization
// around the DB-enforced unique constraint.
func advisoryKey(fingerprint string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fingerprint))
	return int64(h.Sum64())
}
