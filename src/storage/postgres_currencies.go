package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// currencyRefPattern matches a schema.table.field reference to a column of currencies.
var currencyRefPattern = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// CurrencyRef points at a Postgres column listing currencies to track.
type CurrencyRef struct {
	Schema string
	Table  string
	Field  string
}

// ParseCurrencyRef reports whether entry is a schema.table.field reference.
func ParseCurrencyRef(entry string) (CurrencyRef, bool) {
	m := currencyRefPattern.FindStringSubmatch(entry)
	if len(m) != 4 {
		return CurrencyRef{}, false
	}
	return CurrencyRef{Schema: m[1], Table: m[2], Field: m[3]}, true
}

// -----------------------------------------------------------------------------

// ResolveAndRegisterCurrencies expands references, registers the result and
// returns plain upper-case currencies in first-seen order.
func (d *PostgresDB) ResolveAndRegisterCurrencies(sourceName string, entries []string) ([]string, error) {
	seen := make(map[string]bool)
	var currencies []string
	add := func(cur string) {
		cur = strings.ToUpper(strings.TrimSpace(cur))
		if cur != "" && !seen[cur] {
			seen[cur] = true
			currencies = append(currencies, cur)
		}
	}

	for _, entry := range entries {
		ref, ok := ParseCurrencyRef(entry)
		if !ok {
			add(entry)
			continue
		}

		loaded, err := d.GetCurrenciesFromTable(ref)
		if err != nil {
			return currencies, fmt.Errorf("failed to load currencies from %s: %w", entry, err)
		}
		for _, cur := range loaded {
			add(cur)
		}
	}

	if err := d.RegisterCurrencies(sourceName, currencies); err != nil {
		return currencies, fmt.Errorf("failed to register currencies: %w", err)
	}

	return currencies, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetCurrenciesFromTable(ref CurrencyRef) ([]string, error) {
	// Identifiers are restricted to \w+ by the pattern and quoted here
	query := fmt.Sprintf(`SELECT DISTINCT "%s" FROM "%s"."%s"`, ref.Field, ref.Schema, ref.Table)

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			currencies = append(currencies, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return currencies, nil
}
