// Package scripts holds the Risor report scripts shipped with svtree.
// Reports import shared helpers by module name, e.g. `import fmtutil`.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
