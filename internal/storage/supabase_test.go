package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSupabaseUploadSendsExpectedRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotUpsert, gotType string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	store := NewSupabase(ts.URL, "secret-key", "product-images")
	err := store.Upload(context.Background(), "products/1_tusker.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/storage/v1/object/product-images/products/1_tusker.png" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotUpsert != "false" {
		t.Fatalf("expected x-upsert false, got %q", gotUpsert)
	}
	if gotType != "image/png" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if string(gotBody) != "png-bytes" {
		t.Fatalf("body not forwarded, got %q", gotBody)
	}
}

func TestSupabaseUploadConflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()

	store := NewSupabase(ts.URL, "key", "bucket")
	err := store.Upload(context.Background(), "products/x.png", "image/png", []byte("x"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on 409, got %v", err)
	}
}

func TestSupabaseRemoveNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	store := NewSupabase(ts.URL, "key", "bucket")
	err := store.Remove(context.Background(), "products/missing.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on 404, got %v", err)
	}
}

func TestSupabasePublicURL(t *testing.T) {
	store := NewSupabase("https://proj.supabase.co/", "key", "product-images")
	got := store.PublicURL("products/1_tusker.png")
	want := "https://proj.supabase.co/storage/v1/object/public/product-images/products/1_tusker.png"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMemoryStoreNeverOverwrites(t *testing.T) {
	store := NewMemory("")
	ctx := context.Background()

	if err := store.Upload(ctx, "products/a.png", "image/png", []byte("one")); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := store.Upload(ctx, "products/a.png", "image/png", []byte("two")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := store.Remove(ctx, "products/a.png"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "products/a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
