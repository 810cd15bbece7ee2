package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustSettings(t, db)

	empty, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if empty != (repository.Stats{}) {
		t.Errorf("Stats() on empty db = %+v, want zeros", empty)
	}

	ps, edges := seedRing(t, db, "alice", "bob", "carol")
	at := time.Date(2026, time.December, 1, 12, 0, 0, 0, time.UTC)
	if err := db.CreateGeneration(ctx, edges, at); err != nil {
		t.Fatalf("CreateGeneration() error = %v", err)
	}
	if _, err := db.UpsertGift(ctx, &model.Gift{GiverID: ps[0].ID, Name: "Socks", Message: "Warm", ImageRef: "/uploads/gifts/a.png"}); err != nil {
		t.Fatalf("UpsertGift() error = %v", err)
	}
	if _, err := db.MarkRevealed(ctx, ps[1].ID, at); err != nil {
		t.Fatalf("MarkRevealed() error = %v", err)
	}
	if err := db.RecordLogin(ctx, ps[1].ID, at); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}
	if err := db.RecordLogin(ctx, ps[2].ID, at); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	// Inactive participants drop out of the per-person counters.
	inactive := false
	if _, err := db.UpdateParticipant(ctx, ps[2].ID, repository.ParticipantUpdate{Active: &inactive}); err != nil {
		t.Fatalf("UpdateParticipant() error = %v", err)
	}

	got, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := repository.Stats{
		ActiveParticipants: 2,
		Pairings:           3,
		Gifts:              1,
		Revealed:           1,
		LoggedIn:           1,
	}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}
