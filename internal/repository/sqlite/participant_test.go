package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

func TestCreateParticipant(t *testing.T) {
	db := newTestDB(t)

	p := &model.Participant{Name: "Alice", Email: "  Alice@Example.COM ", Active: true}
	if err := db.CreateParticipant(context.Background(), p); err != nil {
		t.Fatalf("CreateParticipant() error = %v", err)
	}

	if p.ID == "" {
		t.Error("CreateParticipant() did not set ID")
	}
	if p.Email != "alice@example.com" {
		t.Errorf("Email = %q, want lower-cased and trimmed", p.Email)
	}
	if p.Role != model.RoleParticipant {
		t.Errorf("Role = %q, want default %q", p.Role, model.RoleParticipant)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreateParticipant() did not set CreatedAt")
	}
}

func TestCreateParticipant_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestParticipant(t, db, "alice")

	dup := &model.Participant{Name: "Other Alice", Email: "ALICE@example.com", Active: true}
	err := db.CreateParticipant(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateParticipant() error = %v, want ErrConflict", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "email" {
		t.Errorf("expected AppError on field email, got %#v", err)
	}
}

func TestGetParticipant_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetParticipant(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetParticipant() error = %v, want ErrNotFound", err)
	}
}

func TestGetParticipantByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	want := createTestParticipant(t, db, "bob")

	got, err := db.GetParticipantByEmail(context.Background(), "BOB@Example.com")
	if err != nil {
		t.Fatalf("GetParticipantByEmail() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
}

func TestListActiveParticipants_FiltersInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestParticipant(t, db, "carol")
	dave := createTestParticipant(t, db, "dave")
	createTestParticipant(t, db, "alice")

	inactive := false
	if _, err := db.UpdateParticipant(ctx, dave.ID, repository.ParticipantUpdate{Active: &inactive}); err != nil {
		t.Fatalf("UpdateParticipant() error = %v", err)
	}

	active, err := db.ListActiveParticipants(ctx)
	if err != nil {
		t.Fatalf("ListActiveParticipants() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active participants, want 2", len(active))
	}
	if active[0].Name != "alice" || active[1].Name != "carol" {
		t.Errorf("order = [%s %s], want [alice carol]", active[0].Name, active[1].Name)
	}

	all, err := db.ListParticipants(ctx)
	if err != nil {
		t.Fatalf("ListParticipants() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d participants, want 3 (deactivation is soft)", len(all))
	}

	n, err := db.CountActiveParticipants(ctx)
	if err != nil {
		t.Fatalf("CountActiveParticipants() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountActiveParticipants() = %d, want 2", n)
	}
}

func TestUpdateParticipant_Partial(t *testing.T) {
	db := newTestDB(t)
	p := createTestParticipant(t, db, "erin")

	name := "Erin K."
	admin := model.RoleAdmin
	got, err := db.UpdateParticipant(context.Background(), p.ID, repository.ParticipantUpdate{
		Name: &name,
		Role: &admin,
	})
	if err != nil {
		t.Fatalf("UpdateParticipant() error = %v", err)
	}
	if got.Name != name || got.Role != model.RoleAdmin {
		t.Errorf("got name=%q role=%q", got.Name, got.Role)
	}
	if got.Email != p.Email || got.Department != p.Department {
		t.Error("UpdateParticipant() changed fields that were not set")
	}
}

func TestUpdateParticipant_NotFound(t *testing.T) {
	db := newTestDB(t)
	name := "x"
	_, err := db.UpdateParticipant(context.Background(), "missing", repository.ParticipantUpdate{Name: &name})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateParticipant() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateParticipant_EmailConflict(t *testing.T) {
	db := newTestDB(t)
	createTestParticipant(t, db, "frank")
	grace := createTestParticipant(t, db, "grace")

	email := "FRANK@example.com"
	_, err := db.UpdateParticipant(context.Background(), grace.ID, repository.ParticipantUpdate{Email: &email})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateParticipant() error = %v, want ErrConflict", err)
	}
}

func TestRecordLogin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestParticipant(t, db, "heidi")

	at := time.Date(2026, time.December, 1, 9, 30, 0, 0, time.UTC)
	if err := db.RecordLogin(ctx, p.ID, at); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	got, err := db.GetParticipant(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetParticipant() error = %v", err)
	}
	if !got.HasLoggedIn || got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("HasLoggedIn=%v LastLogin=%v, want true %v", got.HasLoggedIn, got.LastLogin, at)
	}
}

func TestMarkRevealed_OnlyOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestParticipant(t, db, "ivan")

	first := time.Date(2026, time.December, 20, 17, 0, 0, 0, time.UTC)
	stamped, err := db.MarkRevealed(ctx, p.ID, first)
	if err != nil || !stamped {
		t.Fatalf("first MarkRevealed() = %v, %v; want true, nil", stamped, err)
	}

	stamped, err = db.MarkRevealed(ctx, p.ID, first.Add(time.Hour))
	if err != nil || stamped {
		t.Fatalf("second MarkRevealed() = %v, %v; want false, nil", stamped, err)
	}

	got, err := db.GetParticipant(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetParticipant() error = %v", err)
	}
	if got.RevealedAt == nil || !got.RevealedAt.Equal(first) {
		t.Errorf("RevealedAt = %v, want first stamp %v", got.RevealedAt, first)
	}
}

func TestMarkRevealed_ConcurrentExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	p := createTestParticipant(t, db, "judy")

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stamped, err := db.MarkRevealed(context.Background(), p.ID, time.Now().UTC())
			if err != nil {
				t.Errorf("MarkRevealed() error = %v", err)
				return
			}
			if stamped {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d calls stamped the reveal, want exactly 1", wins)
	}
}
