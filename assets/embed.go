// Package assets embeds the browser client: the page template and its static
// files.
package assets

import "embed"

//go:embed index.html static
var FS embed.FS
