package api

import (
	"encoding/json"
	"net/http"
)

// problemTypeBase prefixes the type URI of every problem document.
const problemTypeBase = "urn:nearp:problem:"

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemKind is one class of failure the API reports. Clients switch on
// the type URI; title and status are fixed per kind.
type problemKind struct {
	name   string
	status int
	title  string
}

func (k problemKind) typeURI() string { return problemTypeBase + k.name }

var (
	probBadJSON     = problemKind{"bad-json", http.StatusBadRequest, "Invalid JSON"}
	probBadRequest  = problemKind{"bad-request", http.StatusBadRequest, "Invalid request"}
	probBadInstance = problemKind{"bad-instance", http.StatusBadRequest, "Invalid instance"}
	probBadConfig   = problemKind{"bad-solver-config", http.StatusBadRequest, "Invalid solver config"}
	probBadLimit    = problemKind{"bad-limit", http.StatusBadRequest, "Invalid limit"}
	probTooLarge    = problemKind{"network-too-large", http.StatusRequestEntityTooLarge, "Network too large"}
	probInfeasible  = problemKind{"infeasible-network", http.StatusUnprocessableEntity, "Unsolvable network"}
	probRunNotFound = problemKind{"run-not-found", http.StatusNotFound, "Run not found"}
	probNoSolution  = problemKind{"no-solution", http.StatusConflict, "No solution"}
	probRateLimited = problemKind{"rate-limited", http.StatusTooManyRequests, "Too Many Requests"}
	probBusy        = problemKind{"solver-busy", http.StatusServiceUnavailable, "Solver busy"}
	probNotReady    = problemKind{"not-ready", http.StatusServiceUnavailable, "Not Ready"}
	probStore       = problemKind{"run-store", http.StatusInternalServerError, "Run store failed"}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeDocument(w, "application/json", status, v)
}

func writeDocument(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, kind problemKind, detail string) {
	writeDocument(w, "application/problem+json", kind.status, Problem{
		Type:     kind.typeURI(),
		Title:    kind.title,
		Status:   kind.status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}
