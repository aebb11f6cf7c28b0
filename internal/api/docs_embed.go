//go:build embed_openapi

package api

import "github.com/ArvsGastardo/VWT-DLSU/openapi"

// openAPILoad returns the copy compiled into the binary.
func openAPILoad() ([]byte, error) { return openapi.Spec, nil }
