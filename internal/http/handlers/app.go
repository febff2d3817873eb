package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"actionfigure/internal/domain"
	"actionfigure/internal/meme"
	"actionfigure/internal/middleware"
	"actionfigure/internal/pipeline"
	"actionfigure/internal/traits"
)

// App carries the pipeline components shared by every handler.
type App struct {
	Analyzer   pipeline.Analyzer
	Submitter  pipeline.Submitter
	Poller     *pipeline.Poller
	Vocabulary *traits.Vocabulary
	Sessions   *pipeline.Registry
	Logger     zerolog.Logger

	Memes         *meme.Catalog
	MemeSubmitter MemeSubmitter

	upgrader websocket.Upgrader
}

type Options struct {
	Analyzer       pipeline.Analyzer
	Submitter      pipeline.Submitter
	Poller         *pipeline.Poller
	Vocabulary     *traits.Vocabulary
	Sessions       *pipeline.Registry
	Logger         zerolog.Logger
	AllowedOrigins []string
	Memes          *meme.Catalog
	MemeSubmitter  MemeSubmitter
}

func NewApp(opts Options) *App {
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = traits.DefaultVocabulary()
	}
	memes := opts.Memes
	if memes == nil {
		memes = meme.DefaultCatalog()
	}
	return &App{
		Analyzer:   opts.Analyzer,
		Submitter:  opts.Submitter,
		Poller:     opts.Poller,
		Vocabulary: vocab,
		Sessions:   opts.Sessions,
		Logger:     opts.Logger,

		Memes:         memes,
		MemeSubmitter: opts.MemeSubmitter,
		upgrader:   newUpgrader(opts.AllowedOrigins),
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// fail writes err using its pipeline kind.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	ev := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = a.Logger.Error()
	}
	ev.Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Str("path", r.URL.Path).Str("kind", string(kind)).Msg("request failed")
	msg := domain.Message(err)
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	a.error(w, status, string(kind), msg)
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidAttachment:
		return http.StatusBadRequest
	case domain.KindMissingCredentials:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCancelled:
		// nginx's "client closed request"; nobody reads it.
		return 499
	case domain.KindProviderRejected, domain.KindMalformedResponse, domain.KindNetworkFailure, domain.KindEmptyResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
