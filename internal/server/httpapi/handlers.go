package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
	"github.com/dmitrijs2005/journalkeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

type JournalService interface {
	Upsert(ctx context.Context, userID string, in models.EntryInput) (models.Entry, error)
	Sync(ctx context.Context, userID string, batch []models.EntryInput) ([]models.Entry, error)
	Range(ctx context.Context, userID, from, to string) ([]models.Entry, error)
}

type AssessmentService interface {
	Submit(ctx context.Context, userID string, answers []int) (models.Assessment, error)
	Latest(ctx context.Context, userID string) (models.Assessment, error)
}

type ExportService interface {
	Export(ctx context.Context, userID string) (services.ExportLink, error)
}

type handler struct {
	journal     JournalService
	assessments AssessmentService
	exports     ExportService
	logger      logging.Logger
	secret      []byte
}

type entriesEnvelope struct {
	Entries []models.Entry `json:"entries"`
}

type syncRequest struct {
	Entries []models.EntryInput `json:"entries"`
}

type assessmentRequest struct {
	Answers []int `json:"answers"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.journal.Range(r.Context(), userID(r.Context()), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesEnvelope{Entries: list})
}

func (h *handler) putEntry(w http.ResponseWriter, r *http.Request) {
	var in models.EntryInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.DateKey = r.PathValue("dateKey")

	e, err := h.journal.Upsert(r.Context(), userID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handler) syncEntries(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.journal.Sync(r.Context(), userID(r.Context()), req.Entries)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesEnvelope{Entries: list})
}

func (h *handler) submitAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.assessments.Submit(r.Context(), userID(r.Context()), req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handler) latestAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.assessments.Latest(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	link, err := h.exports.Export(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}
