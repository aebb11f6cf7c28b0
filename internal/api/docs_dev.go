//go:build !embed_openapi

package api

import "os"

// openAPILoad reads the OpenAPI description from the repo path.
func openAPILoad() ([]byte, error) { return os.ReadFile("openapi/openapi.yaml") }
