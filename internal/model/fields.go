package model

// EntityFields is the whitelist of identity-bearing fields on business
// entities that scope definitions and source-info recipients may read.
var EntityFields = []string{
	"uzivatel_id",
	"uzivatel_akt_id",
	"garant_uzivatel_id",
	"objednatel_id",
	"schvalovatel_id",
	"prikazce_id",
	"zamek_uzivatel_id",
	"vytvoril_uzivatel_id",
	"aktualizoval_uzivatel_id",
	"potvrdil_dodavatel_id",
	"prikazce_fakturace_id",
	"created_by_user_id",
	"approver_user_id",
	"accountant_user_id",
	"fakturant_id",
}

// ParticipantFields are the identity fields that make a user a participant
// of an order or invoice.
var ParticipantFields = []string{
	// orders
	"uzivatel_id",
	"objednatel_id",
	"garant_uzivatel_id",
	"schvalovatel_id",
	"prikazce_id",
	// invoices
	"created_by_user_id",
	"approver_user_id",
	"accountant_user_id",
}

// DefaultSourceInfoFields are read when a source-info block names no fields.
var DefaultSourceInfoFields = []string{"uzivatel_id", "garant_uzivatel_id", "objednatel_id"}

// author and owner lookups for generic recipients, in preference order.
var (
	AuthorFields = []string{"uzivatel_id", "created_by_user_id", "vytvoril_uzivatel_id"}
	OwnerFields  = []string{"prikazce_id", "garant_uzivatel_id"}
)

var entityFieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EntityFields))
	for _, f := range EntityFields {
		m[f] = struct{}{}
	}
	return m
}()

// IsEntityField reports whether name is on the whitelist.
func IsEntityField(name string) bool {
	_, ok := entityFieldSet[name]
	return ok
}

// FilterEntityFields returns the whitelisted names of fields in their
// original order, without duplicates, and the number of values dropped.
// The returned slice is nil when nothing survives.
func FilterEntityFields(fields []string) ([]string, int) {
	var out []string
	dropped := 0
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if !IsEntityField(f) {
			dropped++
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, dropped
}
