package beancount

import (
	"fmt"
	"regexp"
	"strings"
)

// Root account types accepted by Beancount.
var RootAccounts = []string{"Assets", "Liabilities", "Equity", "Income", "Expenses"}

var accountComponent = regexp.MustCompile(`^[\p{Lu}\p{N}][\p{L}\p{N}-]*$`)

// ValidateAccount checks that name is a colon-delimited account under one of
// the five root types, e.g. "Expenses:Food:Groceries".
func ValidateAccount(name string) error {
	parts := strings.Split(name, ":")
	if len(parts) < 2 {
		return fmt.Errorf("invalid account %q: expected Root:Name", name)
	}

	rootOK := false
	for _, root := range RootAccounts {
		if parts[0] == root {
			rootOK = true
			break
		}
	}
	if !rootOK {
		return fmt.Errorf("invalid account %q: root must be one of %s", name, strings.Join(RootAccounts, ", "))
	}

	for _, p := range parts[1:] {
		if !accountComponent.MatchString(p) {
			return fmt.Errorf("invalid account %q: bad component %q", name, p)
		}
	}
	return nil
}

// IsBalanceSheet reports whether account is under Assets or Liabilities.
func IsBalanceSheet(account string) bool {
	return strings.HasPrefix(account, "Assets:") || strings.HasPrefix(account, "Liabilities:")
}

var metadataKey = regexp.MustCompile(`^[a-z][a-zA-Z0-9_-]*$`)

// ValidateMetadataKey checks that key can be written as entry metadata:
// a lowercase letter followed by letters, digits, '_' or '-'.
func ValidateMetadataKey(key string) error {
	if !metadataKey.MatchString(key) {
		return fmt.Errorf("invalid metadata key %q: must match %s", key, metadataKey)
	}
	return nil
}
