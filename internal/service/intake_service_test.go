package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"legaldesk/internal/dto"
	"legaldesk/internal/models"
	"legaldesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type fakeIntakeRepo struct {
	created   []*models.IntakeMessage
	createErr error
	lookupErr error
	// missFirstLookup hides existing rows from the first lookup, as when a
	// concurrent delivery inserts between lookup and insert.
	missFirstLookup bool
	lookups         int
}

func (f *fakeIntakeRepo) Create(_ context.Context, msg *models.IntakeMessage) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	for _, m := range f.created {
		if m.ProviderMessageID == msg.ProviderMessageID {
			return false, nil
		}
	}
	f.created = append(f.created, msg)
	return true, nil
}

func (f *fakeIntakeRepo) GetByProviderMessageID(_ context.Context, id string) (*models.IntakeMessage, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.missFirstLookup && f.lookups == 1 {
		return nil, repository.ErrNotFound
	}
	for _, m := range f.created {
		if m.ProviderMessageID == id {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeIntakeRepo) ListByCompanyID(_ context.Context, companyID uuid.UUID, _, _ int) ([]*models.IntakeMessage, error) {
	var out []*models.IntakeMessage
	for _, m := range f.created {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeDownloader struct {
	data        []byte
	contentType string
	err         error
	urls        []string
}

func (f *fakeDownloader) DownloadFile(_ context.Context, url string, _ int64) ([]byte, string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.contentType, nil
}

func documentEvent() *dto.WebhookEvent {
	return &dto.WebhookEvent{
		TypeWebhook: "incomingMessageReceived",
		IDMessage:   "BAE5F4886F6F2D05",
		Timestamp:   1767225600,
		SenderData: dto.WebhookSenderData{
			ChatID:     "972501234567@c.us",
			SenderName: "Dana",
		},
		MessageData: dto.WebhookMessageData{
			TypeMessage: "documentMessage",
			FileMessageData: &dto.WebhookFileMessage{
				DownloadURL: "https://media.example/file/abc",
				Caption:     "ת.ז. מצורפת",
				FileName:    "id-card.pdf",
				MimeType:    "application/pdf",
			},
		},
	}
}

func newIntakeFixture(t *testing.T, company uuid.UUID) (*IntakeService, *fakeIntakeRepo, *fakeStorage, *fakeDownloader) {
	t.Helper()
	repo := &fakeIntakeRepo{}
	objects := newFakeStorage()
	dl := &fakeDownloader{data: []byte("%PDF"), contentType: "application/octet-stream"}
	svc := NewIntakeService(repo, objects, dl, company, 0, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, objects, dl
}

func TestHandleIncomingStoresDocument(t *testing.T) {
	company := uuid.New()
	svc, repo, objects, dl := newIntakeFixture(t, company)

	msg, err := svc.HandleIncoming(context.Background(), documentEvent())
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if msg == nil || len(repo.created) != 1 {
		t.Fatalf("expected one stored message")
	}
	if len(dl.urls) != 1 || dl.urls[0] != "https://media.example/file/abc" {
		t.Fatalf("unexpected downloads %v", dl.urls)
	}
	if msg.FileURL == nil || !strings.HasPrefix(*msg.FileURL, company.String()+"/intake/") {
		t.Fatalf("unexpected storage path %v", msg.FileURL)
	}
	if _, ok := objects.objects[*msg.FileURL]; !ok {
		t.Fatalf("media was not uploaded")
	}
	if msg.SenderChatID != "972501234567@c.us" || msg.FileName != "id-card.pdf" || msg.Caption != "ת.ז. מצורפת" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.ReceivedAt.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("provider timestamp not used: %v", msg.ReceivedAt)
	}
}

func TestHandleIncomingIgnoresOtherEvents(t *testing.T) {
	svc, repo, _, dl := newIntakeFixture(t, uuid.New())

	status := documentEvent()
	status.TypeWebhook = "outgoingMessageStatus"
	text := documentEvent()
	text.MessageData.TypeMessage = "textMessage"
	text.MessageData.FileMessageData = nil

	for _, ev := range []*dto.WebhookEvent{status, text} {
		msg, err := svc.HandleIncoming(context.Background(), ev)
		if err != nil || msg != nil {
			t.Fatalf("expected event to be ignored, got %v %v", msg, err)
		}
	}
	if len(repo.created) != 0 || len(dl.urls) != 0 {
		t.Fatalf("ignored events must not be processed")
	}
}

func TestHandleIncomingWithoutCompany(t *testing.T) {
	svc, repo, _, dl := newIntakeFixture(t, uuid.Nil)

	msg, err := svc.HandleIncoming(context.Background(), documentEvent())
	if err != nil || msg != nil {
		t.Fatalf("expected drop, got %v %v", msg, err)
	}
	if len(repo.created) != 0 || len(dl.urls) != 0 {
		t.Fatalf("nothing may be stored without an intake company")
	}
}

func TestHandleIncomingFailures(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		svc, _, _, _ := newIntakeFixture(t, uuid.New())
		ev := documentEvent()
		ev.MessageData.FileMessageData.DownloadURL = ""
		if _, err := svc.HandleIncoming(context.Background(), ev); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("download", func(t *testing.T) {
		svc, _, _, dl := newIntakeFixture(t, uuid.New())
		dl.err = errBoom
		if _, err := svc.HandleIncoming(context.Background(), documentEvent()); !errors.Is(err, ErrProvider) {
			t.Fatalf("expected ErrProvider, got %v", err)
		}
	})

	t.Run("upload", func(t *testing.T) {
		svc, repo, objects, _ := newIntakeFixture(t, uuid.New())
		objects.uploadErr = errBoom
		if _, err := svc.HandleIncoming(context.Background(), documentEvent()); !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if len(repo.created) != 0 {
			t.Fatalf("no row may be written after a failed upload")
		}
	})

	t.Run("insert", func(t *testing.T) {
		svc, repo, objects, _ := newIntakeFixture(t, uuid.New())
		repo.createErr = errBoom
		if _, err := svc.HandleIncoming(context.Background(), documentEvent()); !errors.Is(err, ErrDatabase) {
			t.Fatalf("expected ErrDatabase, got %v", err)
		}
		if objects.count() != 0 {
			t.Fatalf("media of an unrecorded message must be removed")
		}
	})

	t.Run("lookup", func(t *testing.T) {
		svc, repo, objects, dl := newIntakeFixture(t, uuid.New())
		repo.lookupErr = errBoom
		if _, err := svc.HandleIncoming(context.Background(), documentEvent()); !errors.Is(err, ErrDatabase) {
			t.Fatalf("expected ErrDatabase, got %v", err)
		}
		if len(dl.urls) != 0 || objects.count() != 0 {
			t.Fatalf("nothing may be downloaded when the lookup fails")
		}
	})
}

func TestHandleIncomingRedelivery(t *testing.T) {
	svc, repo, objects, dl := newIntakeFixture(t, uuid.New())
	ctx := context.Background()

	first, err := svc.HandleIncoming(ctx, documentEvent())
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	again, err := svc.HandleIncoming(ctx, documentEvent())
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if again == nil || again.ID != first.ID {
		t.Fatalf("redelivery must return the stored row %s, got %+v", first.ID, again)
	}
	if len(repo.created) != 1 || objects.count() != 1 || len(dl.urls) != 1 {
		t.Fatalf("expected one row, one object and one download, got %d, %d, %d",
			len(repo.created), objects.count(), len(dl.urls))
	}
}

func TestHandleIncomingConcurrentDuplicate(t *testing.T) {
	svc, repo, objects, _ := newIntakeFixture(t, uuid.New())
	ctx := context.Background()

	first, err := svc.HandleIncoming(ctx, documentEvent())
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	repo.lookups = 0
	repo.missFirstLookup = true

	again, err := svc.HandleIncoming(ctx, documentEvent())
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if again == nil || again.ID != first.ID {
		t.Fatalf("expected the stored row %s, got %+v", first.ID, again)
	}
	if len(repo.created) != 1 || objects.count() != 1 || len(objects.removed) != 1 {
		t.Fatalf("the duplicate upload must be removed, objects %d removed %v", objects.count(), objects.removed)
	}
	if _, ok := objects.objects[*first.FileURL]; !ok {
		t.Fatalf("the first upload must survive")
	}
}

func TestHandleIncomingFallsBackToMessageID(t *testing.T) {
	svc, _, _, _ := newIntakeFixture(t, uuid.New())
	ev := documentEvent()
	ev.MessageData.TypeMessage = "imageMessage"
	ev.MessageData.FileMessageData.FileName = "  "

	msg, err := svc.HandleIncoming(context.Background(), ev)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if msg.FileName != ev.IDMessage {
		t.Fatalf("expected message id as file name, got %q", msg.FileName)
	}
}

func TestCleanProviderText(t *testing.T) {
	tests := map[string]string{
		"clean":              "clean",
		"ok\xffדוד":          "okדוד",
		"nul\x00byte":        "nulbyte",
		"  line\r\nbreak  ": "line \nbreak",
		"tab\there\x07":      "tab\there",
	}
	for in, want := range tests {
		if got := cleanProviderText(in); got != want {
			t.Fatalf("cleanProviderText(%q) = %q, want %q", in, got, want)
		}
	}
}
