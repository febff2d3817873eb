package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"actionfigure/internal/domain"
)

const (
	attachmentField = "attachments"
	dataField       = "data"
	analysisTrailer = "X-Analysis-Error"
)

type promptData struct {
	Prompt string `json:"prompt"`
}

// readAttachment pulls the first image from the multipart form plus an
// optional custom instruction from the "data" JSON field. An unparseable data
// field is ignored and the default instruction used.
func readAttachment(w http.ResponseWriter, r *http.Request) (domain.Attachment, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxAttachmentBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Attachment{}, "", domain.Errorf(domain.KindInvalidAttachment, "attachment exceeds %d bytes", domain.MaxAttachmentBytes)
		}
		return domain.Attachment{}, "", domain.Wrap(domain.KindInvalidAttachment, "image attachment is required", err)
	}
	files := r.MultipartForm.File[attachmentField]
	if len(files) == 0 {
		return domain.Attachment{}, "", domain.Errorf(domain.KindInvalidAttachment, "image attachment is required")
	}
	header := files[0]
	if header.Size > domain.MaxAttachmentBytes {
		return domain.Attachment{}, "", domain.Errorf(domain.KindInvalidAttachment, "attachment is %d bytes, limit is %d", header.Size, domain.MaxAttachmentBytes)
	}
	f, err := header.Open()
	if err != nil {
		return domain.Attachment{}, "", domain.Wrap(domain.KindInvalidAttachment, "attachment unreadable", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, domain.MaxAttachmentBytes+1))
	if err != nil {
		return domain.Attachment{}, "", domain.Wrap(domain.KindInvalidAttachment, "attachment unreadable", err)
	}

	att := domain.NewAttachment(header.Filename, header.Header.Get("Content-Type"), data)
	if err := att.Validate(); err != nil {
		return domain.Attachment{}, "", err
	}

	var instruction string
	if raw := strings.TrimSpace(r.FormValue(dataField)); raw != "" {
		var pd promptData
		if err := json.Unmarshal([]byte(raw), &pd); err == nil {
			instruction = strings.TrimSpace(pd.Prompt)
		}
	}
	return att, instruction, nil
}

// Analyze streams the vision analysis of the uploaded photo as plain text.
// Errors before the first fragment get a JSON error response; later errors
// are reported in the X-Analysis-Error trailer.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	att, instruction, err := readAttachment(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	_, err = a.Analyzer.Extract(r.Context(), att, instruction, func(fragment string) {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Trailer", analysisTrailer)
			w.WriteHeader(http.StatusOK)
		}
		if _, werr := io.WriteString(w, fragment); werr != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err == nil {
		return
	}
	if domain.KindOf(err) == domain.KindCancelled {
		a.Logger.Debug().Str("path", r.URL.Path).Msg("analysis cancelled by client")
		return
	}
	if !started {
		a.fail(w, r, err)
		return
	}
	a.Logger.Warn().Err(err).Str("kind", string(domain.KindOf(err))).Msg("analysis failed mid-stream")
	w.Header().Set(analysisTrailer, string(domain.KindOf(err)))
}
