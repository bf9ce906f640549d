package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCertificateStatus reports whether a bundle is stored for a printer.
func (s *Server) handleCertificateStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := s.certs.Store().Path(name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	present := s.certs.Exists(name)
	resp := map[string]any{
		"name":    name,
		"present": present,
	}
	if present {
		resp["path"] = path
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateCertificate fetches the certificate of a registered printer
// synchronously and stores it, replacing any earlier bundle.
func (s *Server) handleCreateCertificate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := s.printers.GetByName(name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.certs.EnsureDir(p.Name); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.certs.Provision(r.Context(), p.IP, p.Name); err != nil {
		s.logger.Warn("certificate provisioning failed", "printer", p.Name, "ip", p.IP, "error", err)
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"name":    p.Name,
		"present": true,
		"message": "certificate created",
	})
}
