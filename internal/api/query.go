package api

import (
    "encoding/json"
    "net/http"
    "strings"

    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
    "github.com/ArvsGastardo/VWT-DLSU/internal/store"
)

// QueryHandler answers a small GraphQL-shaped query surface over
// scenarios and plans, enough for dashboards without a second client
// stack. Selection sets are matched by name, not parsed.
func (s *Server) QueryHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    var body struct {
        Query     string         `json:"query"`
        Variables map[string]any `json:"variables"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
        return
    }
    q := strings.ToLower(body.Query)
    varStr := func(key string) string {
        v, _ := body.Variables[key].(string)
        return v
    }
    switch {
    case strings.Contains(q, "scenario("):
        sc, err := s.Store.GetScenario(r.Context(), p.Tenant, varStr("id"))
        if err == store.ErrNotFound {
            writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"scenario": nil}})
            return
        }
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"scenario": sc}})
    case strings.Contains(q, "scenarios"):
        items, _, err := s.Store.ListScenarios(r.Context(), p.Tenant, "", 100)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if items == nil { items = []model.Scenario{} }
        writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"scenarios": items}})
    case strings.Contains(q, "plan("):
        pl, err := s.Store.GetPlan(r.Context(), p.Tenant, varStr("id"))
        if err == store.ErrNotFound {
            writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"plan": nil}})
            return
        }
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"plan": pl}})
    case strings.Contains(q, "plans"):
        items, _, err := s.Store.ListPlans(r.Context(), p.Tenant, varStr("scenarioId"), varStr("status"), "", 100)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if items == nil { items = []model.Plan{} }
        writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"plans": items}})
    default:
        writeJSON(w, http.StatusOK, map[string]any{
            "errors": []map[string]any{{"message": "unsupported query; use scenario(id), scenarios, plan(id) or plans"}},
        })
    }
}
