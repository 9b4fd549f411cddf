// Package naming converts internal entity names into the human-readable
// module/sub-module labels written to audit rows and shown in reports.
package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Finance entities audit under the "Financing" module; everything else keys
// off its own label.
var moduleByEntity = map[string]string{
	"financing-terms":    "Financing",
	"lender-commitments": "Financing",
	"letter-credit":      "Financing",
	"dscr":               "Financing",
	"tax-equity":         "Financing",
	"asset-co":           "Financing",
	"corporate-debt":     "Financing",
	"parties":            "Financing",
	"swaps-summary":      "Financing",
	"amort-schedule":     "Financing",
	"debt-vs-swaps":      "Financing",
	"milestones":         "Milestones",
}

// Acronyms kept upper-case in labels.
var acronyms = map[string]string{
	"dscr": "DSCR",
	"lc":   "LC",
	"vs":   "vs",
}

// ModuleLabel returns the top-level module label for an entity name.
func ModuleLabel(entityName string) string {
	if m, ok := moduleByEntity[entityName]; ok {
		return m
	}
	return SubModuleLabel(entityName)
}

// SubModuleLabel formats an internal entity name ("lender-commitments") into
// a singular, title-cased label ("Lender Commitment").
func SubModuleLabel(entityName string) string {
	parts := strings.Split(entityName, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if a, ok := acronyms[p]; ok {
			parts[i] = a
			continue
		}
		if i == len(parts)-1 {
			p = inflection.Singular(p)
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// FieldLabel formats a snake_case field key ("as_of_date") into a display
// label ("As Of Date"); used as a fallback when the catalog has no label.
func FieldLabel(fieldKey string) string {
	parts := strings.Split(fieldKey, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if a, ok := acronyms[p]; ok {
			parts[i] = a
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
