package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"flowledger/internal/core"
)

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		invoices []core.Invoice
		err      error
	)

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status, parseErr := core.ParseInvoiceStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "unknown status "+statusParam)
			return
		}
		invoices, err = s.invoices.ListInvoicesByStatus(r.Context(), status)
	} else {
		invoices, err = s.invoices.ListInvoices(r.Context())
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	inv, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := s.invoices.CreateInvoice(r.Context(), inv)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(r.Context(), "Invoice created",
		"id", saved.ID,
		"number", saved.Number,
		"total", saved.Total.String())
	writeJSON(w, http.StatusCreated, toInvoiceResponse(saved))
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	inv, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	inv.ID = r.PathValue("id")

	// An omitted tax rate keeps the stored one
	if req.TaxRate == nil {
		existing, err := s.invoices.GetInvoice(r.Context(), inv.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		inv.TaxRate = existing.TaxRate
	}

	updated, err := s.invoices.UpdateInvoice(r.Context(), inv)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	writeJSON(w, http.StatusOK, toInvoiceResponse(updated))
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.invoices.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateDashboard()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status, err := core.ParseInvoiceStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown status "+req.Status)
		return
	}

	paidDate, err := parseOptionalDatePtr(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid paid date")
		return
	}

	updated, err := s.invoices.SetStatus(r.Context(), r.PathValue("id"), status, paidDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(r.Context(), "Invoice status changed",
		"id", updated.ID,
		"status", updated.Status)
	writeJSON(w, http.StatusOK, toInvoiceResponse(updated))
}
