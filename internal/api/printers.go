package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canny86/FilaCore/internal/printer"
)

// addPrinterRequest is the request body for POST /printers.
type addPrinterRequest struct {
	Serial     string `json:"serial"`
	AccessCode string `json:"access_code"`
	IP         string `json:"ip"`
	Name       string `json:"name"`
}

// activateResponse is the response body for POST /printers/{serial}/activate.
type activateResponse struct {
	Printer            printer.Printer `json:"printer"`
	CertificatePresent bool            `json:"certificate_present"`
	Message            string          `json:"message"`
}

// handleListPrinters returns every registered printer.
func (s *Server) handleListPrinters(w http.ResponseWriter, _ *http.Request) {
	printers := s.printers.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"printers": printers,
		"count":    len(printers),
	})
}

// handleAddPrinter registers a printer. Certificate provisioning starts in
// the background; the response does not wait for it.
func (s *Server) handleAddPrinter(w http.ResponseWriter, r *http.Request) {
	var req addPrinterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := s.printers.Add(r.Context(), printer.Printer{
		Serial:     req.Serial,
		AccessCode: req.AccessCode,
		IP:         req.IP,
		Name:       req.Name,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("printer registered", "serial", p.Serial, "name", p.Name, "ip", p.IP)
	writeJSON(w, http.StatusCreated, map[string]any{
		"printer": p,
		"message": "printer added, certificate is being fetched",
	})
}

// handleRemovePrinter deletes a printer and its certificate directory.
func (s *Server) handleRemovePrinter(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	if err := s.printers.Remove(r.Context(), serial); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("printer removed", "serial", serial)
	w.WriteHeader(http.StatusNoContent)
}

// handleActivatePrinter makes one printer the active one.
func (s *Server) handleActivatePrinter(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	res, err := s.printers.SetActive(r.Context(), serial)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	msg := "active printer set, certificate present"
	if !res.CertificatePresent {
		msg = "active printer set, certificate is being fetched"
	}
	writeJSON(w, http.StatusOK, activateResponse{
		Printer:            res.Printer,
		CertificatePresent: res.CertificatePresent,
		Message:            msg,
	})
}

// handleActiveState asks the active printer for a full state report.
func (s *Server) handleActiveState(w http.ResponseWriter, r *http.Request) {
	reply, err := s.commands.QueryActiveState(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": reply})
}
