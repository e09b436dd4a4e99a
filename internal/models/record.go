package models

// Column names of the credential record table. These are the only names the
// tool layer accepts in data and conditions objects.
const (
	ColumnID              = "id"
	ColumnOwner           = "created_by_user_id"
	ColumnCompanyName     = "companyName"
	ColumnCompanyPassword = "companyPassword"
	ColumnCompanyUserName = "companyUserName"
	ColumnNote            = "note"
	ColumnArchived        = "archived"
)

// RecordColumns lists every column of the credential record table in schema order.
var RecordColumns = []string{
	ColumnID,
	ColumnOwner,
	ColumnCompanyName,
	ColumnCompanyPassword,
	ColumnCompanyUserName,
	ColumnNote,
	ColumnArchived,
}

// IsRecordColumn reports whether name is a column of the credential record table.
func IsRecordColumn(name string) bool {
	for _, c := range RecordColumns {
		if c == name {
			return true
		}
	}
	return false
}

// CredentialRecord is one stored secret. OwnerID is set once on insert and
// never changed.
type CredentialRecord struct {
	CompanyName     string `json:"companyName"`
	CompanyPassword string `json:"companyPassword"`
	CompanyUserName string `json:"companyUserName"`
	Note            string `json:"note"`
	ID              int64  `json:"id"`
	OwnerID         int64  `json:"created_by_user_id"`
	Archived        bool   `json:"archived"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Default  string `json:"default,omitempty"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary_key"`
}
