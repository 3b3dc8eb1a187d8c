// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/verdantlabs/actionrank/internal/metrics"
	"github.com/verdantlabs/actionrank/internal/persona"
	"github.com/verdantlabs/actionrank/internal/recommend"
)

var fixedNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})

	store := NewFromDB(db, Config{EventRetention: 30 * 24 * time.Hour}, zerolog.Nop())
	store.now = func() time.Time { return fixedNow }
	return store
}

func TestGetState_Unknown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.GetState(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.UserID != "nobody" {
		t.Errorf("UserID = %q, want %q", state.UserID, "nobody")
	}
	if state.Persona != nil || len(state.Events) != 0 {
		t.Errorf("expected zero-valued state, got %+v", state)
	}
}

func TestGetState_EmptyUserID(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetState(context.Background(), ""); err == nil {
		t.Error("expected error for empty user ID")
	}
}

func TestPutState_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := recommend.UserState{
		UserID:    "u1",
		Persona:   &persona.Vector{Carbon: 0.6, Money: 0.4},
		Interests: []string{"cycling", "food"},
		Events: []recommend.Event{
			{ActionID: "bike", Type: recommend.EventShown, Timestamp: fixedNow.Add(-time.Hour)},
		},
	}
	if err := store.PutState(ctx, in); err != nil {
		t.Fatalf("PutState: %v", err)
	}

	out, err := store.GetState(ctx, "u1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if out.Persona == nil || out.Persona.Carbon != 0.6 {
		t.Errorf("Persona = %+v, want Carbon 0.6", out.Persona)
	}
	if len(out.Interests) != 2 || out.Interests[0] != "cycling" {
		t.Errorf("Interests = %v", out.Interests)
	}
	if len(out.Events) != 1 || out.Events[0].ActionID != "bike" {
		t.Errorf("Events = %v", out.Events)
	}
	if !out.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", out.UpdatedAt, fixedNow)
	}
}

func TestAppendEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state, err := store.AppendEvents(ctx, "u1", []recommend.Event{
		{ActionID: "bike", Type: recommend.EventShown, Timestamp: fixedNow.Add(-time.Hour)},
		{ActionID: "bike", Type: recommend.EventDone}, // zero timestamp
	})
	if err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if len(state.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(state.Events))
	}
	if !state.Events[1].Timestamp.Equal(fixedNow) {
		t.Errorf("zero timestamp not defaulted: %v", state.Events[1].Timestamp)
	}

	// Second append accumulates
	state, err = store.AppendEvents(ctx, "u1", []recommend.Event{
		{ActionID: "veg-day", Type: recommend.EventDismissed, Timestamp: fixedNow},
	})
	if err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if len(state.Events) != 3 {
		t.Errorf("len(Events) = %d, want 3", len(state.Events))
	}
}

func TestAppendEvents_InvalidType(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendEvents(context.Background(), "u1", []recommend.Event{
		{ActionID: "bike", Type: "clicked"},
	})
	if err == nil {
		t.Error("expected error for invalid event type")
	}
}

func TestAppendEvents_PrunesOldEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// One event beyond the 30-day retention, one inside it
	_, err := store.AppendEvents(ctx, "u1", []recommend.Event{
		{ActionID: "old", Type: recommend.EventShown, Timestamp: fixedNow.Add(-31 * 24 * time.Hour)},
		{ActionID: "recent", Type: recommend.EventShown, Timestamp: fixedNow.Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	state, err := store.AppendEvents(ctx, "u1", []recommend.Event{
		{ActionID: "newest", Type: recommend.EventShown, Timestamp: fixedNow},
	})
	if err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if len(state.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2 after pruning", len(state.Events))
	}
	for _, ev := range state.Events {
		if ev.ActionID == "old" {
			t.Error("stale event survived pruning")
		}
	}
}

func TestSetPersona_PreservesEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvents(ctx, "u1", []recommend.Event{
		{ActionID: "bike", Type: recommend.EventShown, Timestamp: fixedNow},
	}); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	state, err := store.SetPersona(ctx, "u1", persona.Vector{Social: 0.8}, []string{"community"})
	if err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	if state.Persona == nil || state.Persona.Social != 0.8 {
		t.Errorf("Persona = %+v", state.Persona)
	}
	if len(state.Events) != 1 {
		t.Errorf("events lost: %v", state.Events)
	}
	if len(state.Interests) != 1 || state.Interests[0] != "community" {
		t.Errorf("Interests = %v", state.Interests)
	}
}

func TestSetPersona_NilInterestsKeepsExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SetPersona(ctx, "u1", persona.Vector{Money: 1}, []string{"savings"}); err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	state, err := store.SetPersona(ctx, "u1", persona.Vector{Money: 0.5}, nil)
	if err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	if len(state.Interests) != 1 || state.Interests[0] != "savings" {
		t.Errorf("Interests = %v, want existing preserved", state.Interests)
	}
}

func TestDeleteState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutState(ctx, recommend.UserState{UserID: "u1"}); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	if err := store.DeleteState(ctx, "u1"); err != nil {
		t.Fatalf("DeleteState: %v", err)
	}

	state, err := store.GetState(ctx, "u1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.Persona != nil || len(state.Events) != 0 {
		t.Errorf("state survived deletion: %+v", state)
	}

	// Deleting a missing user is not an error
	if err := store.DeleteState(ctx, "nobody"); err != nil {
		t.Errorf("DeleteState missing user: %v", err)
	}
}

func testActions() []recommend.Action {
	return []recommend.Action{
		{ID: "bike", Title: "Bike to work", Category: "transport", Tags: []string{"cycling"}, Effort: 2},
		{ID: "led-swap", Title: "Swap to LED bulbs", Category: "energy", Effort: 1},
		{ID: "veg-day", Title: "Meat-free day", Category: "food", Effort: 1.5},
	}
}

func TestReplaceCatalog_ListActions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceCatalog(ctx, testActions()); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	actions, err := store.ListActions(ctx)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("len(actions) = %d, want 3", len(actions))
	}
	// Badger iterates keys in order
	if actions[0].ID != "bike" || actions[1].ID != "led-swap" || actions[2].ID != "veg-day" {
		t.Errorf("unexpected order: %v %v %v", actions[0].ID, actions[1].ID, actions[2].ID)
	}
}

func TestReplaceCatalog_RemovesStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceCatalog(ctx, testActions()); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}
	// Replace with a subset
	if err := store.ReplaceCatalog(ctx, testActions()[:1]); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	actions, err := store.ListActions(ctx)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 1 || actions[0].ID != "bike" {
		t.Errorf("stale actions survived: %v", actions)
	}
}

func TestReplaceCatalog_InvalidActionRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceCatalog(ctx, testActions()); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	bad := []recommend.Action{{ID: "", Category: "transport"}}
	if err := store.ReplaceCatalog(ctx, bad); err == nil {
		t.Fatal("expected validation error")
	}

	// Original catalog untouched
	actions, err := store.ListActions(ctx)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 3 {
		t.Errorf("catalog modified by failed replace: %d actions", len(actions))
	}
}

func TestGetAction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceCatalog(ctx, testActions()); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	action, err := store.GetAction(ctx, "veg-day")
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if action.Category != "food" {
		t.Errorf("Category = %q, want food", action.Category)
	}

	if _, err := store.GetAction(ctx, "missing"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("err = %v, want ErrActionNotFound", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := fixedNow.Add(-40 * 24 * time.Hour)
	if _, err := store.AppendEvents(ctx, "fresh", []recommend.Event{
		{ActionID: "bike", Type: recommend.EventShown, Timestamp: fixedNow},
	}); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	// PutState bypasses append-time pruning
	if err := store.PutState(ctx, recommend.UserState{
		UserID: "dusty",
		Events: []recommend.Event{
			{ActionID: "old", Type: recommend.EventShown, Timestamp: stale},
			{ActionID: "recent", Type: recommend.EventDone, Timestamp: fixedNow},
		},
	}); err != nil {
		t.Fatalf("PutState: %v", err)
	}

	pruned, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	state, err := store.GetState(ctx, "dusty")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if len(state.Events) != 1 || state.Events[0].ActionID != "recent" {
		t.Errorf("Events = %v, want only the recent one", state.Events)
	}
}

func TestCountUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.PutState(ctx, recommend.UserState{UserID: id}); err != nil {
			t.Fatalf("PutState: %v", err)
		}
	}
	// Catalog entries must not be counted as users
	if err := store.ReplaceCatalog(ctx, testActions()); err != nil {
		t.Fatalf("ReplaceCatalog: %v", err)
	}

	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestStoreOperationMetrics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	errsBefore := testutil.ToFloat64(metrics.StoreOperationErrors.WithLabelValues("get_state"))
	if _, err := store.GetState(ctx, ""); err == nil {
		t.Fatal("expected error for empty user ID")
	}
	if got := testutil.ToFloat64(metrics.StoreOperationErrors.WithLabelValues("get_state")); got != errsBefore+1 {
		t.Errorf("get_state errors went %v -> %v, want +1", errsBefore, got)
	}

	if err := store.PutState(ctx, recommend.UserState{UserID: "m1"}); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	if testutil.CollectAndCount(metrics.StoreOperationDuration, "store_operation_duration_seconds") == 0 {
		t.Error("expected store operation duration series after a write")
	}

	if _, err := store.CountUsers(ctx); err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if got := testutil.ToFloat64(metrics.StoreUserStates); got != 1 {
		t.Errorf("stored user states gauge = %v, want 1", got)
	}
}
