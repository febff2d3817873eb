package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"actionfigure/internal/storage"
)

type fakeDownloader struct {
	types map[string]string
	fail  string
	calls []string
}

func (f *fakeDownloader) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	f.calls = append(f.calls, imageURL)
	if imageURL == f.fail {
		return nil, "", errors.New("boom")
	}
	return []byte("img:" + imageURL), f.types[imageURL], nil
}

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	return store
}

func TestSaveOrdersAndNamesVersions(t *testing.T) {
	dl := &fakeDownloader{types: map[string]string{
		"https://cdn/a": "image/jpeg",
		"https://cdn/b": "image/png; charset=binary",
	}}
	store := newStore(t)
	exp := New(dl, store, nil)

	files, err := exp.Save(context.Background(), "run-1", map[string]string{
		"original": "https://cdn/b",
		"640x640":  "https://cdn/a",
		"zz":       "https://cdn/c.webp",
		"empty":    " ",
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	var keys []string
	for _, f := range files {
		keys = append(keys, f.Key)
	}
	want := "run-1/640x640.jpg,run-1/original.png,run-1/zz.webp"
	if strings.Join(keys, ",") != want {
		t.Fatalf("keys = %v, want %s", keys, want)
	}
	data, err := store.Read(context.Background(), "run-1/original.png")
	if err != nil || string(data) != "img:https://cdn/b" {
		t.Fatalf("stored data = %q, %v", data, err)
	}
}

func TestSaveStopsOnFirstFailure(t *testing.T) {
	dl := &fakeDownloader{fail: "https://cdn/b"}
	exp := New(dl, newStore(t), nil)

	files, err := exp.Save(context.Background(), "run", map[string]string{
		"640x640":  "https://cdn/a",
		"original": "https://cdn/b",
		"96x96":    "https://cdn/c",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(files) != 1 || len(dl.calls) != 2 {
		t.Fatalf("files=%d calls=%d", len(files), len(dl.calls))
	}
}

func TestSaveRequiresVersions(t *testing.T) {
	if _, err := New(&fakeDownloader{}, newStore(t), nil).Save(context.Background(), "run", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestArchive(t *testing.T) {
	store := newStore(t)
	exp := New(&fakeDownloader{}, store, nil)
	exp.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	files, err := exp.Save(context.Background(), "run", map[string]string{"640x640": "https://cdn/a.jpg"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	key, err := exp.Archive(context.Background(), "run", files)
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	if key != "run.zip" {
		t.Fatalf("key = %q", key)
	}
	raw, _ := store.Read(context.Background(), key)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "640x640.jpg" {
		t.Fatalf("unexpected entries %v", zr.File)
	}
}

func TestExtension(t *testing.T) {
	cases := []struct{ ct, url, want string }{
		{"image/jpeg", "", ".jpg"},
		{"", "https://cdn/x/y.PNG?sig=1", ".png"},
		{"application/octet-stream", "https://cdn/x", ".img"},
	}
	for _, c := range cases {
		if got := extension(c.ct, c.url); got != c.want {
			t.Errorf("extension(%q, %q) = %q, want %q", c.ct, c.url, got, c.want)
		}
	}
}
