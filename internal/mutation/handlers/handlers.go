// Package handlers registers the mutation handler for every entity group.
// Most entities are config-driven instances of mutation.EntityHandler; the
// catalog supplies field types at registration so the handlers coerce incoming
// values the same way the editing surface does.
package handlers

import (
	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/mutation"
)

type entityDef struct {
	name       string
	table      string
	columns    map[string]string
	lookups    []mutation.LookupRef
	naturalKey []string
	instance   *mutation.InstanceSpec
}

// Identity column mappings: payload field key == table column.
func same(keys ...string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[k] = k
	}
	return m
}

var defs = []entityDef{
	{
		name:    "financing-terms",
		table:   "financing_terms",
		columns: same("amount", "rate_pct", "start_date", "end_date"),
		lookups: []mutation.LookupRef{{Field: "loan_type", Table: "loan_types", Column: "loan_type_id"}},
	},
	{
		name:       "lender-commitments",
		table:      "lender_commitments",
		columns:    same("lender_name", "instance_no", "commitment_amount", "as_of_date"),
		lookups:    []mutation.LookupRef{{Field: "loan_type", Table: "loan_types", Column: "loan_type_id"}},
		naturalKey: []string{"loan_type", "instance_no"},
		instance:   &mutation.InstanceSpec{Column: "instance_no", GroupBy: "loan_type_id"},
	},
	{
		name:    "letter-credit",
		table:   "letters_credit",
		columns: same("lc_number", "amount", "issue_date", "expiry_date"),
		lookups: []mutation.LookupRef{{Field: "counterparty_type", Table: "counterparty_types", Column: "counterparty_type_id"}},
	},
	{
		name:       "dscr",
		table:      "dscr_records",
		columns:    same("value", "as_of_date", "scenario"),
		naturalKey: []string{"scenario", "as_of_date"},
	},
	{
		name:    "tax-equity",
		table:   "tax_equity_terms",
		columns: same("structure", "investor_name", "commitment_amount", "flip_date"),
	},
	{
		name:    "asset-co",
		table:   "asset_co_records",
		columns: same("name", "ownership_pct", "formation_date"),
	},
	{
		name:    "corporate-debt",
		table:   "corporate_debt",
		columns: same("facility_name", "amount", "rate_pct", "maturity_date"),
	},
	{
		name:    "parties",
		table:   "parties",
		columns: same("name", "contact_email", "phone"),
		lookups: []mutation.LookupRef{{Field: "counterparty_type", Table: "counterparty_types", Column: "counterparty_type_id"}},
	},
	{
		name:    "swaps-summary",
		table:   "swaps_summary",
		columns: same("notional", "fixed_rate_pct", "effective_date", "termination_date"),
		lookups: []mutation.LookupRef{{Field: "swap_parameter", Table: "swap_parameters", Column: "swap_parameter_id"}},
	},
	{
		name:       "amort-schedule",
		table:      "amort_schedule",
		columns:    same("period_no", "payment_date", "principal", "interest", "balance"),
		naturalKey: []string{"period_no"},
	},
	{
		name:    "debt-vs-swaps",
		table:   "debt_vs_swaps",
		columns: same("as_of_date", "debt_outstanding", "swap_notional", "coverage_pct"),
	},
}

// Register builds and registers a handler for every entity group. catalog maps
// entity names to their field descriptors, used to wire data types into the
// handlers' coercion step.
func Register(reg *mutation.Registry, catalog map[string][]models.FieldDescriptor, resolver mutation.Resolver) {
	for _, d := range defs {
		reg.Register(mutation.NewEntityHandler(mutation.EntityConfig{
			Name:       d.name,
			Table:      d.table,
			Columns:    d.columns,
			Types:      typesFor(catalog[d.name]),
			Lookups:    d.lookups,
			NaturalKey: d.naturalKey,
			Instance:   d.instance,
		}, resolver))
	}
	reg.Register(newMilestoneHandler(typesFor(catalog["milestones"]), resolver))
}

func typesFor(descriptors []models.FieldDescriptor) map[string]string {
	types := make(map[string]string, len(descriptors))
	for _, fd := range descriptors {
		types[fd.FieldKey] = fd.DataType
	}
	return types
}
