package dto

// ImportProblem flags one rejected row. Row is 1-based and counts the header row.
type ImportProblem struct {
	Row     int    `json:"row"`
	Roll    string `json:"roll,omitempty"`
	Message string `json:"message"`
}

// ImportedStudent is a parsed, valid row.
type ImportedStudent struct {
	Row           int     `json:"row"`
	Roll          string  `json:"roll"`
	Name          string  `json:"name"`
	Subject       string  `json:"subject"`
	PreferredRoom *string `json:"preferred_room,omitempty"`
}

// ImportResult summarises a roster upload.
type ImportResult struct {
	DryRun   bool              `json:"dryRun"`
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Problems []ImportProblem   `json:"problems"`
	Rows     []ImportedStudent `json:"rows,omitempty"`
}
