// Package openapi embeds the API description so release builds can
// serve /openapi.yaml without the repository checkout on disk.
package openapi

import _ "embed"

//go:embed openapi.yaml
var Spec []byte
