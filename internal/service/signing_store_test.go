package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"legaldesk/internal/models"
	"legaldesk/pkg/accesstoken"

	"github.com/google/uuid"
)

func TestCreateUploadsBeforeInsert(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	if req.Status != models.StatusDraft {
		t.Fatalf("new request must be a draft, got %s", req.Status)
	}
	if len(req.AccessToken) != accesstoken.DefaultLength {
		t.Fatalf("unexpected token length %d", len(req.AccessToken))
	}
	if want := f.now.Add(30 * 24 * time.Hour); !req.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", req.ExpiresAt, want)
	}
	prefix := f.company.String() + "/" + req.ID.String() + "/"
	if !strings.HasPrefix(req.FileURL, prefix) || !strings.HasSuffix(req.FileURL, ".pdf") {
		t.Fatalf("unexpected storage path %q", req.FileURL)
	}
	if _, ok := f.storage.objects[req.FileURL]; !ok {
		t.Fatalf("document was not uploaded")
	}
	if f.repo.row(req.ID) == nil {
		t.Fatalf("record was not inserted")
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != models.AuditCreated {
		t.Fatalf("unexpected audit trail %v", got)
	}
}

func TestCreateUploadFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.storage.uploadErr = errBoom

	_, err := f.svc.Create(context.Background(), CreateParams{
		CompanyID: f.company, CreatedBy: f.owner, FileName: "a.pdf", Data: []byte("x"), RecipientPhone: "0501234567",
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if len(f.repo.rows) != 0 {
		t.Fatalf("no record may exist after a failed upload")
	}
}

func TestCreateInsertFailureKeepsUploadedObject(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errBoom

	_, err := f.svc.Create(context.Background(), CreateParams{
		CompanyID: f.company, CreatedBy: f.owner, FileName: "a.pdf", Data: []byte("x"), RecipientPhone: "0501234567",
	})
	if !errors.Is(err, ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
	if f.storage.count() != 1 {
		t.Fatalf("uploaded object is not cleaned up automatically, expected 1 object, got %d", f.storage.count())
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	base := CreateParams{CompanyID: f.company, CreatedBy: f.owner, FileName: "a.pdf", Data: []byte("x"), RecipientPhone: "0501234567"}

	cases := map[string]func(p *CreateParams){
		"missing phone": func(p *CreateParams) { p.RecipientPhone = "  " },
		"missing file":  func(p *CreateParams) { p.Data = nil },
		"bad email":     func(p *CreateParams) { p.RecipientEmail = "not-an-email" },
		"unknown type": func(p *CreateParams) {
			p.Fields = []models.SigningField{{ID: "f1", Type: "stamp", X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}}
		},
		"off page": func(p *CreateParams) {
			p.Fields = []models.SigningField{{ID: "f1", Type: models.FieldSignature, X: 0.95, Y: 0.1, Width: 0.2, Height: 0.1}}
		},
		"duplicate ids": func(p *CreateParams) {
			fld := models.SigningField{ID: "f1", Type: models.FieldText, X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}
			p.Fields = []models.SigningField{fld, fld}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			if _, err := f.svc.Create(context.Background(), p); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if f.storage.count() != 0 {
		t.Fatalf("invalid input must not reach storage")
	}
}

func TestGetIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	if _, err := f.svc.Get(context.Background(), uuid.New(), req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("another company must not see the request, got %v", err)
	}
}

func TestDeleteByNonCreatorTouchesNothing(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	err := f.svc.Delete(context.Background(), f.company, req.ID, uuid.New())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.repo.row(req.ID) == nil {
		t.Fatalf("record must survive a rejected delete")
	}
	if f.storage.count() != 1 || len(f.storage.removed) != 0 {
		t.Fatalf("storage must be untouched")
	}
	if len(f.audit.deleted) != 0 {
		t.Fatalf("audit rows must be untouched")
	}
}

func TestDeleteByCreatorWithoutSignedFile(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)

	if err := f.svc.Delete(context.Background(), f.company, req.ID, f.owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.repo.row(req.ID) != nil {
		t.Fatalf("record still present")
	}
	if len(f.storage.removed) != 1 || f.storage.removed[0] != req.FileURL {
		t.Fatalf("expected only the original to be removed, got %v", f.storage.removed)
	}
	if len(f.audit.deleted) != 1 {
		t.Fatalf("audit rows were not deleted")
	}
}

func TestDeleteByCreatorRemovesSignedFile(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	signed := req.CompanyID.String() + "/" + req.ID.String() + "/signed.pdf"
	f.storage.objects[signed] = []byte("signed")
	f.repo.rows[req.ID].SignedFileURL = &signed

	if err := f.svc.Delete(context.Background(), f.company, req.ID, f.owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.storage.count() != 0 {
		t.Fatalf("both objects must be removed, %d left", f.storage.count())
	}
}

func TestDeleteStorageFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.storage.removeErr = errBoom

	if err := f.svc.Delete(context.Background(), f.company, req.ID, f.owner); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if f.repo.row(req.ID) == nil {
		t.Fatalf("record must remain when storage cleanup fails")
	}
}

func TestSignedDownloadURL(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	ctx := context.Background()

	url, err := f.svc.DownloadURL(ctx, f.company, req.ID, DownloadOriginal)
	if err != nil {
		t.Fatalf("original: %v", err)
	}
	if !strings.Contains(url, req.FileURL) || !strings.Contains(url, "expires=3600") {
		t.Fatalf("unexpected url %q", url)
	}

	if _, err := f.svc.DownloadURL(ctx, f.company, req.ID, DownloadSigned); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing signed file, got %v", err)
	}
	if _, err := f.svc.DownloadURL(ctx, f.company, req.ID, "thumbnail"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for an unknown variant, got %v", err)
	}
}

func TestUpdateMergesSuppliedFields(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.now = f.now.Add(48 * time.Hour)

	name := "Dana Cohen"
	days := 7
	updated, err := f.svc.Update(context.Background(), f.company, f.owner, req.ID, UpdateParams{
		RecipientName: &name,
		ExpiryDays:    &days,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RecipientName == nil || *updated.RecipientName != name {
		t.Fatalf("name not updated")
	}
	if updated.RecipientPhone != req.RecipientPhone {
		t.Fatalf("phone must be left unchanged")
	}
	if want := f.now.Add(7 * 24 * time.Hour); !updated.ExpiresAt.Equal(want) {
		t.Fatalf("expiry counts from now: got %v want %v", updated.ExpiresAt, want)
	}
	if updated.Status != models.StatusDraft {
		t.Fatalf("update must not change status")
	}
}

func TestUpdateRejectedOnceExpired(t *testing.T) {
	f := newFixture(t)
	req := f.create(t)
	f.now = req.ExpiresAt.Add(time.Minute)

	name := "late"
	_, err := f.svc.Update(context.Background(), f.company, f.owner, req.ID, UpdateParams{RecipientName: &name})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListFiltersByEffectiveStatus(t *testing.T) {
	f := newFixture(t)
	live := f.create(t)
	stale := f.create(t)
	f.repo.rows[stale.ID].ExpiresAt = f.now.Add(-time.Hour)

	expired := models.StatusExpired
	got, err := f.svc.List(context.Background(), f.company, &expired, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("expected only the stale draft, got %d rows", len(got))
	}
	if got[0].ID == live.ID {
		t.Fatalf("live request listed as expired")
	}
}

func TestAuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.audit.createErr = errBoom

	f.create(t)
}
