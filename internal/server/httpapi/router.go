package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

// NewRouter builds the REST handler tree.
func NewRouter(l logging.Logger, secretKey string, js JournalService, as AssessmentService, es ExportService) http.Handler {
	h := &handler{
		journal:     js,
		assessments: as,
		exports:     es,
		logger:      l,
		secret:      []byte(secretKey),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /journal/entries", h.authenticate(h.listEntries))
	mux.HandleFunc("PUT /journal/entries/{dateKey}", h.authenticate(h.putEntry))
	mux.HandleFunc("POST /journal/sync", h.authenticate(h.syncEntries))
	mux.HandleFunc("POST /journal/export", h.authenticate(h.export))
	mux.HandleFunc("POST /assessments", h.authenticate(h.submitAssessment))
	mux.HandleFunc("GET /assessments/latest", h.authenticate(h.latestAssessment))

	return withRequestID(h.accessLog(mux))
}
