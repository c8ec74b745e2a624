package models

// ViewMode is the sub-view a screen is showing.
type ViewMode string

const (
	ViewList   ViewMode = "list"
	ViewDetail ViewMode = "detail"
	ViewEdit   ViewMode = "edit"
	ViewCreate ViewMode = "create"
)

// Operation is a mutation a screen may dispatch.
type Operation string

const (
	OpVerify     Operation = "verify"
	OpActivate   Operation = "activate"
	OpDeactivate Operation = "deactivate"
	OpDelete     Operation = "delete"
	OpSave       Operation = "save"
	OpCreate     Operation = "create"
)

// RowOperations are the operations addressable on a single list row.
var RowOperations = []Operation{OpVerify, OpActivate, OpDeactivate, OpDelete}

// ParseRowOperation validates an operation name taken from a route.
func ParseRowOperation(raw string) (Operation, bool) {
	for _, op := range RowOperations {
		if string(op) == raw {
			return op, true
		}
	}
	return "", false
}

// ScreenKind names an entry in the screen catalogue.
type ScreenKind string

const (
	KindCharities     ScreenKind = "charities"
	KindAgencies      ScreenKind = "agencies"
	KindUsers         ScreenKind = "users"
	KindIncidents     ScreenKind = "incidents"
	KindCampaigns     ScreenKind = "campaigns"
	KindAnnouncements ScreenKind = "announcements"
	KindNews          ScreenKind = "news"
)
