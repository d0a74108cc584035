package core

import "strings"

// Domain identifies a category of record with its own cache prefix and
// remote sub-collection.
type Domain string

const (
	DomainExpenses      Domain = "expenses"
	DomainTags          Domain = "tags"
	DomainBudget        Domain = "budget"
	DomainGoals         Domain = "goals"
	DomainBills         Domain = "bills"
	DomainNotifications Domain = "notifications"
	DomainIncome        Domain = "income"
	DomainInvestments   Domain = "investments"
)

// Domains returns every known domain. The order is stable so owner-wide
// cache resets are deterministic.
func Domains() []Domain {
	return []Domain{
		DomainExpenses,
		DomainTags,
		DomainBudget,
		DomainGoals,
		DomainBills,
		DomainNotifications,
		DomainIncome,
		DomainInvestments,
	}
}

// String implements fmt.Stringer
func (d Domain) String() string {
	return string(d)
}

// IsValid returns true if the domain is one of the known record domains.
func (d Domain) IsValid() bool {
	switch d {
	case DomainExpenses, DomainTags, DomainBudget, DomainGoals,
		DomainBills, DomainNotifications, DomainIncome, DomainInvestments:
		return true
	default:
		return false
	}
}

// Collection is a remote sub-collection path relative to an owner, e.g.
// "expenses" or "goals/G1/contributions" for nested sub-resources.
type Collection string

// Domain returns the root domain segment of the collection path. Cache
// namespacing always happens at this granularity, regardless of nesting.
func (c Collection) Domain() Domain {
	s := string(c)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return Domain(s)
}

// Validate checks that the path is non-empty, rooted in a known domain and
// has the collection/id/collection alternation expected by the remote store.
func (c Collection) Validate() error {
	if c == "" {
		return ErrEmptyCollection
	}
	segments := strings.Split(string(c), "/")
	// A collection path always has an odd number of segments.
	if len(segments)%2 == 0 {
		return ErrInvalidCollection
	}
	for _, s := range segments {
		if s == "" {
			return ErrInvalidCollection
		}
	}
	if !c.Domain().IsValid() {
		return ErrUnknownDomain
	}
	return nil
}

func (c Collection) String() string {
	return string(c)
}
