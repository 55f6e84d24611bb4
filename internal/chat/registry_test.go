// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package chat

import (
	"sync"
	"testing"
)

func TestRegistryBindAndGet(t *testing.T) {
	r := NewRegistry()
	a := &Client{id: 1, userID: 7}

	if displaced := r.Bind(7, a); displaced != nil {
		t.Fatalf("first bind should not displace, got %v", displaced)
	}
	if got := r.Get(7); got != a {
		t.Fatalf("expected bound client, got %v", got)
	}
	if !r.IsOnline(7) {
		t.Error("user should be online after bind")
	}
	if r.IsOnline(8) {
		t.Error("unbound user should be offline")
	}
}

func TestRegistryRebindDisplacesOldClient(t *testing.T) {
	r := NewRegistry()
	old := &Client{id: 1, userID: 7}
	fresh := &Client{id: 2, userID: 7}

	r.Bind(7, old)
	displaced := r.Bind(7, fresh)
	if displaced != old {
		t.Fatalf("expected old client displaced, got %v", displaced)
	}
	if got := r.Get(7); got != fresh {
		t.Fatalf("expected fresh client bound, got %v", got)
	}
	if r.Count() != 1 {
		t.Errorf("rebind must not grow the registry, count=%d", r.Count())
	}
}

func TestRegistryReleaseOnlyIfCurrent(t *testing.T) {
	r := NewRegistry()
	old := &Client{id: 1, userID: 7}
	fresh := &Client{id: 2, userID: 7}

	r.Bind(7, old)
	r.Bind(7, fresh)

	// The superseded connection's cleanup must not knock the user offline.
	if r.Release(7, old) {
		t.Fatal("stale release should be refused")
	}
	if !r.IsOnline(7) {
		t.Fatal("user should still be online after stale release")
	}

	if !r.Release(7, fresh) {
		t.Fatal("current release should succeed")
	}
	if r.IsOnline(7) {
		t.Error("user should be offline after release")
	}
}

func TestRegistryOnlineIDsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []int64{42, 3, 17, 99, 1} {
		r.Bind(id, &Client{id: uint64(id), userID: id})
	}

	ids := r.OnlineIDs()
	want := []int64{1, 3, 17, 42, 99}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
	if r.Count() != 5 {
		t.Errorf("expected count 5, got %d", r.Count())
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := &Client{id: uint64(userID), userID: userID}
			r.Bind(userID, c)
			r.Get(userID)
			r.Release(userID, c)
		}(int64(i))
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("expected empty registry after churn, count=%d", r.Count())
	}
}
