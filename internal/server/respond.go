package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/agencyhq/agencyapi/internal/repository"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondRepositoryError maps lookup failures to 404 and everything else to a
// 500 without leaking internals to the client.
func respondRepositoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Not Found")
		return
	}
	log.Printf("server: request failed: %v", err)
	respondError(w, http.StatusInternalServerError, "Internal Server Error")
}

// decodeJSONBody reads the request body into a generic map so handlers can
// distinguish absent keys from zero values when building partial updates.
func decodeJSONBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
