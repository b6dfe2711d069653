// Package spec embeds the OpenAPI description of the trip ledger HTTP API.
// It is served at /openapi.yaml by the handler package.
package spec

import _ "embed"

// OpenAPI contains the raw bytes of openapi.yaml, embedded at compile time.
//
//go:embed openapi.yaml
var OpenAPI []byte
