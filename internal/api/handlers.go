package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/service"
)

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.svc.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleAddCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.CustomerInput

	// Parse JSON body
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	customer, err := s.svc.AddCustomer(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.CustomerSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.CustomerPatch
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	customer, err := s.svc.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCustomerTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.CustomerTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req service.TransactionInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	// The path decides the owner.
	req.CustomerID = chi.URLParam(r, "id")

	// Call domain logic
	tx, customer, err := s.svc.AddTransaction(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": tx,
		"customer":    customer,
	})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Statement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCheckBalance(w http.ResponseWriter, r *http.Request) {
	check, err := s.svc.CheckBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleRecomputeBalance(w http.ResponseWriter, r *http.Request) {
	customer, err := s.svc.RecomputeBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListOrders(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	order, err := s.svc.AddOrder(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderPatch
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	order, err := s.svc.UpdateOrder(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mismatches, err := s.svc.VerifyBalances(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consistent": len(mismatches) == 0,
		"mismatches": mismatches,
	})
}
