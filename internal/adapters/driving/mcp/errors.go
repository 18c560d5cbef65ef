// Package mcp exposes ragline to AI assistants over the Model Context Protocol.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
