package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscriptions.ListSubscriptions(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := s.subscriptions.CreateSubscription(r.Context(), sub)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(r.Context(), "Subscription created",
		"id", saved.ID,
		"name", saved.Name,
		"cadence", saved.Cadence)
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(saved))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.GetSubscription(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sub.ID = r.PathValue("id")

	if err := s.subscriptions.UpdateSubscription(r.Context(), sub); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subscriptions.DeleteSubscription(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateDashboard()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseSubscription(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := s.subscriptions.SetPaused(r.Context(), r.PathValue("id"), req.Paused)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(r.Context(), "Subscription pause toggled",
		"id", sub.ID,
		"paused", sub.Paused)
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handlePaySubscription(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	var paidAt time.Time
	if req.PaidDate != "" {
		parsed, err := time.Parse(dateLayout, req.PaidDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid paid date")
			return
		}
		paidAt = parsed
	}

	payment, err := s.subscriptions.MarkPaid(r.Context(), r.PathValue("id"), paidAt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateDashboard()
	slog.InfoContext(r.Context(), "Subscription paid",
		"subscription_id", payment.SubscriptionID,
		"payment_id", payment.ID,
		"amount", payment.Amount.String())
	writeJSON(w, http.StatusCreated, toBillPaymentResponse(payment))
}

func (s *Server) handleListBillPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.subscriptions.ListBillPayments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]billPaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toBillPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}
