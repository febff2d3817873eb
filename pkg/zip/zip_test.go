package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchive(t *testing.T) {
	raw, err := Archive([]Entry{
		{Name: "640x640.jpg", Data: []byte("small")},
		{Name: "original.png", Data: []byte("big")},
	})
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "640x640.jpg" {
		t.Fatalf("unexpected entries %v", zr.File)
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "big" {
		t.Fatalf("entry data = %q", data)
	}
}

func TestArchiveRejectsDuplicates(t *testing.T) {
	if _, err := Archive([]Entry{{Name: "a"}, {Name: "a"}}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := Archive([]Entry{{Name: ""}}); err == nil {
		t.Fatal("expected empty name error")
	}
}
