package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// PathID reads a numeric route variable.
func PathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// QueryLimit reads the "limit" query parameter, falling back to def and
// capping at max.
func QueryLimit(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// SplitList turns "a,b,c" into a slice, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OrderClause converts a "-field" style sort parameter into an ORDER BY
// clause, accepting only whitelisted columns.
func OrderClause(sort string, allowed map[string]bool, def string) string {
	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")
	if !allowed[field] {
		return def
	}
	if desc {
		return field + " DESC"
	}
	return field + " ASC"
}
