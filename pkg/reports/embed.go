// Package reports carries the report definitions compiled into the
// binary. Bundled templates are always available; a writable directory
// shadows them by file name.
package reports

import "embed"

//go:embed *.jrxml
var Bundle embed.FS
