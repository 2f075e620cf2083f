package blob

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("%PDF-1.4 lab report")
	if err := store.Put(ctx, "patients/p1/doc.pdf", "application/pdf", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data[0] = 'X'

	obj, err := store.Get(ctx, "patients/p1/doc.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer obj.Body.Close()
	got, _ := io.ReadAll(obj.Body)
	if string(got) != "%PDF-1.4 lab report" {
		t.Errorf("content = %q", got)
	}
	if obj.ContentType != "application/pdf" || obj.Size != int64(len(got)) {
		t.Errorf("object = %+v", obj)
	}

	if err := store.Delete(ctx, "patients/p1/doc.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "patients/p1/doc.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v", err)
	}
}

func TestS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(S3Config{Region: "us-east-1"}, nil); err == nil {
		t.Error("expected error without bucket")
	}
}
