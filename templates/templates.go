// Package templates embeds the default invoice layout.
package templates

import _ "embed"

//go:embed invoice-template.html
var InvoiceHTML string
