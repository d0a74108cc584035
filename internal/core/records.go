package core

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyName          = errors.New("empty name")
	ErrNegativeUsageCount = errors.New("negative usage count")
	ErrEmptyCollection    = errors.New("empty collection path")
	ErrInvalidCollection  = errors.New("invalid collection path")
	ErrUnknownDomain      = errors.New("unknown domain")
)

// Field names shared between records, queries and store adapters.
const (
	FieldDate     = "date"
	FieldCategory = "category"
)

type (
	// Expense is a shared or personal expense line.
	Expense struct {
		ID          string
		Date        Date
		Description string
		Amount      Money
		Category    string
	}

	// Goal is a savings goal. SavedCents is maintained through atomic
	// increments, never through read-modify-write.
	Goal struct {
		ID         string
		Name       string
		Target     Money
		SavedCents int64
		TargetDate Date
	}

	// Tag labels expenses. UsageCount is incremented atomically every time
	// the tag is applied.
	Tag struct {
		ID         string
		Name       string
		UsageCount int64
	}
)

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Fields returns the document representation written to the remote store.
func (e Expense) Fields() map[string]any {
	return map[string]any{
		FieldDate:     e.Date.ISO(),
		"description": e.Description,
		"amountCents": e.Amount.Cents,
		FieldCategory: e.Category,
	}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if g.SavedCents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (g Goal) Fields() map[string]any {
	fields := map[string]any{
		"name":        g.Name,
		"targetCents": g.Target.Cents,
		"savedCents":  g.SavedCents,
	}
	if !g.TargetDate.IsZero() {
		fields[FieldDate] = g.TargetDate.ISO()
	}
	return fields
}

func (t Tag) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.UsageCount < 0 {
		return ErrNegativeUsageCount
	}
	return nil
}

func (t Tag) Fields() map[string]any {
	return map[string]any{
		"name":       t.Name,
		"usageCount": t.UsageCount,
	}
}

// ExpenseFromFields maps a raw document onto the typed record. Missing or
// mistyped fields come out as zero values, which Validate rejects.
func ExpenseFromFields(id string, fields map[string]any) Expense {
	date, _ := ParseDate(stringField(fields, FieldDate))
	return Expense{
		ID:          id,
		Date:        date,
		Description: stringField(fields, "description"),
		Amount:      Money{Cents: int64Field(fields, "amountCents")},
		Category:    stringField(fields, FieldCategory),
	}
}

// GoalFromFields maps a raw document onto the typed record.
func GoalFromFields(id string, fields map[string]any) Goal {
	g := Goal{
		ID:         id,
		Name:       stringField(fields, "name"),
		Target:     Money{Cents: int64Field(fields, "targetCents")},
		SavedCents: int64Field(fields, "savedCents"),
	}
	if s := stringField(fields, FieldDate); s != "" {
		g.TargetDate, _ = ParseDate(s)
	}
	return g
}

// TagFromFields maps a raw document onto the typed record.
func TagFromFields(id string, fields map[string]any) Tag {
	return Tag{
		ID:         id,
		Name:       stringField(fields, "name"),
		UsageCount: int64Field(fields, "usageCount"),
	}
}

// ValidateRecord checks an incoming document against the typed schema of the
// collection's domain. Nested sub-resources and domains without a typed
// record are schema-free and pass.
func ValidateRecord(col Collection, id string, fields map[string]any) error {
	if strings.IndexByte(string(col), '/') >= 0 {
		return nil
	}
	switch col.Domain() {
	case DomainExpenses:
		return ExpenseFromFields(id, fields).Validate()
	case DomainGoals:
		return GoalFromFields(id, fields).Validate()
	case DomainTags:
		return TagFromFields(id, fields).Validate()
	default:
		return nil
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// int64Field tolerates the numeric types a field takes depending on whether
// it arrived through JSON decoding or was built in process.
func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
