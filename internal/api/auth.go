// Package api implements the HTTP surface of the turbine siting
// service: scenario and plan resources, live event streams, webhook
// administration and the operator consoles.
package api

import (
    "net/http"
    "strings"
)

// Principal is the authenticated caller of one request.
type Principal struct {
    Tenant  string
    Role    string // admin, planner, viewer
    Subject string
}

// getPrincipal extracts tenant and role from the request.
// - If Authorization: Bearer is present, the configured verifier
//   (dev/hmac/jwks) decides.
// - Else headers steer it, which keeps local development tokenless.
func (s *Server) getPrincipal(r *http.Request) Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            return Principal{Tenant: s.normalizeTenantID(pr.Tenant), Role: pr.Role, Subject: pr.Subject}
        }
    }
    tenant := r.Header.Get("X-Tenant-Id")
    role := r.Header.Get("X-Role")
    subject := r.Header.Get("X-Subject")
    if tenant == "" {
        tenant = "t_demo"
    }
    tenant = s.normalizeTenantID(tenant)
    if role == "" {
        role = "admin"
    }
    return Principal{Tenant: tenant, Role: strings.ToLower(role), Subject: subject}
}

// normalizeTenantID maps token tenant claims onto store tenant ids.
// Issuers disagree on case and padding; the store compares ids
// byte-for-byte.
func (s *Server) normalizeTenantID(tenant string) string {
    tenant = strings.ToLower(strings.TrimSpace(tenant))
    if tenant == "" {
        return "t_demo"
    }
    return tenant
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanPlan reports whether the principal may create scenarios and run
// solves. Viewers read, planners and admins write.
func (p Principal) CanPlan() bool { return p.Role == "admin" || p.Role == "planner" }
