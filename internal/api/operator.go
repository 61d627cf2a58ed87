package api

import "net/http"

// OperatorHeader names the person issuing a command. It is recorded as the
// technician on maintenance records when the body names none.
const OperatorHeader = "X-Operator"

func operator(r *http.Request) string {
	return r.Header.Get(OperatorHeader)
}

// requireOperator rejects the request when operators must identify
// themselves and the header is missing.
func (h *Handler) requireOperator(w http.ResponseWriter, r *http.Request) bool {
	if h.RequireOperator && operator(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": OperatorHeader + " header required"})
		return false
	}
	return true
}
