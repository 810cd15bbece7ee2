package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
)

func TestGetOrCreateSettings_Defaults(t *testing.T) {
	db := newTestDB(t)
	defaults := defaultSettings()

	s, err := db.GetOrCreateSettings(context.Background(), defaults)
	if err != nil {
		t.Fatalf("GetOrCreateSettings() error = %v", err)
	}
	if s.PairingLocked || !s.RevealLocked {
		t.Errorf("initial locks = (%v, %v), want (false, true)", s.PairingLocked, s.RevealLocked)
	}
	if !s.RevealDate.Equal(defaults.RevealDate) {
		t.Errorf("RevealDate = %v, want %v", s.RevealDate, defaults.RevealDate)
	}
	if s.MaxParticipants != 30 {
		t.Errorf("MaxParticipants = %d, want 30", s.MaxParticipants)
	}
}

func TestGetOrCreateSettings_DefaultsOnlyApplyOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := mustSettings(t, db)

	s.MaxParticipants = 12
	if err := db.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := db.GetOrCreateSettings(ctx, model.Settings{MaxParticipants: 99, RevealLocked: true})
	if err != nil {
		t.Fatalf("GetOrCreateSettings() error = %v", err)
	}
	if got.MaxParticipants != 12 {
		t.Errorf("MaxParticipants = %d, want the saved 12", got.MaxParticipants)
	}
}

func TestSaveSettings_DoesNotTouchPairingLock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := mustSettings(t, db)

	s.PairingLocked = true
	deadline := time.Date(2026, time.December, 18, 23, 59, 0, 0, time.UTC)
	s.GiftSubmissionDeadline = &deadline
	if err := db.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got := mustSettings(t, db)
	if got.PairingLocked {
		t.Error("SaveSettings() wrote pairing_locked")
	}
	if got.GiftSubmissionDeadline == nil || !got.GiftSubmissionDeadline.Equal(deadline) {
		t.Errorf("GiftSubmissionDeadline = %v, want %v", got.GiftSubmissionDeadline, deadline)
	}
}

func TestLoginCodes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestParticipant(t, db, "alice")

	code := model.LoginCode{ParticipantID: p.ID, CodeHash: "hash-1", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := db.SaveLoginCode(ctx, code); err != nil {
		t.Fatalf("SaveLoginCode() error = %v", err)
	}
	if err := db.IncrementLoginCodeAttempts(ctx, p.ID); err != nil {
		t.Fatalf("IncrementLoginCodeAttempts() error = %v", err)
	}

	got, err := db.GetLoginCode(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetLoginCode() error = %v", err)
	}
	if got.CodeHash != "hash-1" || got.Attempts != 1 {
		t.Errorf("code = %+v", got)
	}

	// A new code replaces the old one and resets attempts.
	code.CodeHash = "hash-2"
	if err := db.SaveLoginCode(ctx, code); err != nil {
		t.Fatalf("SaveLoginCode() replace error = %v", err)
	}
	got, _ = db.GetLoginCode(ctx, p.ID)
	if got.CodeHash != "hash-2" || got.Attempts != 0 {
		t.Errorf("replaced code = %+v", got)
	}

	if err := db.DeleteLoginCode(ctx, p.ID); err != nil {
		t.Fatalf("DeleteLoginCode() error = %v", err)
	}
	if _, err := db.GetLoginCode(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetLoginCode() after delete error = %v, want ErrNotFound", err)
	}
}

func TestConsumeLoginCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestParticipant(t, db, "alice")

	code := model.LoginCode{ParticipantID: p.ID, CodeHash: "hash-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.SaveLoginCode(ctx, code); err != nil {
		t.Fatalf("SaveLoginCode() error = %v", err)
	}

	// A code replaced in the meantime is not consumed.
	ok, err := db.ConsumeLoginCode(ctx, p.ID, "stale-hash")
	if err != nil || ok {
		t.Fatalf("ConsumeLoginCode(stale) = %v, %v; want false, nil", ok, err)
	}

	ok, err = db.ConsumeLoginCode(ctx, p.ID, "hash-1")
	if err != nil || !ok {
		t.Fatalf("ConsumeLoginCode() = %v, %v; want true, nil", ok, err)
	}

	ok, err = db.ConsumeLoginCode(ctx, p.ID, "hash-1")
	if err != nil || ok {
		t.Errorf("second ConsumeLoginCode() = %v, %v; want false, nil", ok, err)
	}
	if _, err := db.GetLoginCode(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetLoginCode() after consume error = %v, want ErrNotFound", err)
	}
}

func TestStats_AfterGenerationAndReveal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustSettings(t, db)
	ps, edges := seedRing(t, db, "alice", "bob", "carol")

	if err := db.CreateGeneration(ctx, edges, time.Now().UTC()); err != nil {
		t.Fatalf("CreateGeneration() error = %v", err)
	}
	if err := db.RecordLogin(ctx, ps[0].ID, time.Now().UTC()); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}
	if _, err := db.MarkRevealed(ctx, ps[0].ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkRevealed() error = %v", err)
	}
	if _, err := db.UpsertGift(ctx, &model.Gift{GiverID: ps[1].ID, Name: "Tea", ImageRef: "/uploads/gifts/t.png"}); err != nil {
		t.Fatalf("UpsertGift() error = %v", err)
	}

	s, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.ActiveParticipants != 3 || s.Pairings != 3 || s.Gifts != 1 || s.Revealed != 1 || s.LoggedIn != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}
