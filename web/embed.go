// Package web provides the embedded response templates of the simulator.
package web

import "embed"

// TemplatesDir is the root of the embedded templates inside TemplatesFS.
const TemplatesDir = "templates"

// TemplatesFS embeds the response templates rendered for simulated requests.
//
//go:embed templates
var TemplatesFS embed.FS
