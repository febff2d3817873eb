// Package export downloads the image versions of a finished job into local
// storage, optionally bundling them into one archive.
package export

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"actionfigure/internal/infra"
	"actionfigure/internal/pipeline"
	"actionfigure/internal/storage"
	"actionfigure/pkg/zip"
)

// Downloader fetches one image and reports its content type.
type Downloader interface {
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// File is one saved version.
type File struct {
	Resolution  string
	Key         string
	ContentType string
	Size        int
}

type Exporter struct {
	downloader Downloader
	store      *storage.FileStore
	logger     *infra.Logger
	now        func() time.Time
}

func New(downloader Downloader, store *storage.FileStore, logger *infra.Logger) *Exporter {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Exporter{downloader: downloader, store: store, logger: logger, now: time.Now}
}

// Save downloads every version under "<prefix>/<resolution><ext>". Display
// resolutions come first in preference order, the rest alphabetically. The
// first failed download aborts the export; files already written stay.
func (e *Exporter) Save(ctx context.Context, prefix string, versions map[string]string) ([]File, error) {
	if len(versions) == 0 {
		return nil, fmt.Errorf("export: no image versions")
	}
	var files []File
	for _, res := range orderResolutions(versions) {
		data, contentType, err := e.downloader.Download(ctx, versions[res])
		if err != nil {
			return files, fmt.Errorf("export: download %s: %w", res, err)
		}
		key, err := e.store.Write(ctx, path.Join(prefix, sanitizeName(res)+extension(contentType, versions[res])), data)
		if err != nil {
			return files, fmt.Errorf("export: %w", err)
		}
		e.logger.Debug().Str("resolution", res).Str("key", key).Int("bytes", len(data)).Msg("export: saved version")
		files = append(files, File{Resolution: res, Key: key, ContentType: contentType, Size: len(data)})
	}
	return files, nil
}

// Archive bundles saved files into "<prefix>.zip" and returns its key.
func (e *Exporter) Archive(ctx context.Context, prefix string, files []File) (string, error) {
	entries := make([]zip.Entry, 0, len(files))
	modified := e.now()
	for _, f := range files {
		data, err := e.store.Read(ctx, f.Key)
		if err != nil {
			return "", fmt.Errorf("export: %w", err)
		}
		entries = append(entries, zip.Entry{Name: path.Base(f.Key), Data: data, Modified: modified})
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	key, err := e.store.Write(ctx, strings.TrimSuffix(prefix, "/")+".zip", archive)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return key, nil
}

func orderResolutions(versions map[string]string) []string {
	out := make([]string, 0, len(versions))
	seen := make(map[string]bool, len(versions))
	for _, res := range pipeline.DisplayResolutions {
		if u := strings.TrimSpace(versions[res]); u != "" {
			out = append(out, res)
			seen[res] = true
		}
	}
	var rest []string
	for res, u := range versions {
		if !seen[res] && strings.TrimSpace(u) != "" {
			rest = append(rest, res)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

var knownExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// extension prefers the content type and falls back to the URL path.
func extension(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := knownExtensions[mt]; ok {
			return ext
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".img"
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
