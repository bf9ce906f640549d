package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canny86/FilaCore/internal/command"
	"github.com/canny86/FilaCore/internal/filament"
)

// setSlotRequest is the request body for POST /filaments/slot.
type setSlotRequest struct {
	Slot flexInt `json:"slot"`
	FCID string  `json:"fcid"`
}

// flexInt accepts a JSON number or a numeric string. Anything else decodes
// to -1 so slot validation rejects it.
type flexInt int

func (v *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		*v = -1
		return nil //nolint:nilerr // invalid slots are reported by validation
	}
	*v = flexInt(n)
	return nil
}

// handleListFilaments returns the spool catalogue.
func (s *Server) handleListFilaments(w http.ResponseWriter, _ *http.Request) {
	filaments := s.filaments.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"filaments": filaments,
		"count":     len(filaments),
	})
}

// handleSaveFilament creates a filament, or replaces the one with the same fcid.
func (s *Server) handleSaveFilament(w http.ResponseWriter, r *http.Request) {
	var f filament.Filament
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	saved, err := s.filaments.Save(r.Context(), f)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"fcid":     saved.FCID,
		"filament": saved,
	})
}

// handleDeleteFilament removes a filament.
func (s *Server) handleDeleteFilament(w http.ResponseWriter, r *http.Request) {
	if err := s.filaments.Delete(r.Context(), chi.URLParam(r, "fcid")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateFCID returns a fresh short id for labelling a spool.
func (s *Server) handleGenerateFCID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"fcid": s.filaments.GenerateFCID()})
}

// handleSetFilamentSlot loads a filament into an AMS slot of the active printer.
func (s *Server) handleSetFilamentSlot(w http.ResponseWriter, r *http.Request) {
	req := setSlotRequest{Slot: -1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := command.ValidateSlot(int(req.Slot)); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.FCID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "fcid is required")
		return
	}

	reply, err := s.commands.SetActiveFilamentSlot(r.Context(), int(req.Slot), req.FCID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"response": reply,
	})
}

// handlePrintProfiles returns the print profile catalogue verbatim.
func (s *Server) handlePrintProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.filaments.PrintProfiles(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
