package models

// Versioned is the row_version column shared by properties, bills and
// payments. Every conditional update bumps it by one.
type Versioned struct {
	RowVersion int64 `json:"rowVersion"`
}

func (v *Versioned) GetRowVersion() int64  { return v.RowVersion }
func (v *Versioned) SetRowVersion(n int64) { v.RowVersion = n }
