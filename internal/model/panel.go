package model

// Row is one observation of one subject at one measurement wave.
type Row struct {
	SubjectID string `json:"subject_id"`
	// Wave is the measurement occasion (2 = spring K, 4 = spring 1st,
	// 9 = spring 5th in the ECLS-K panel).
	Wave int `json:"wave"`
	// Values holds the numeric measures keyed by column name. An absent key
	// is the explicit missing marker; loaders never store NaN or sentinels.
	Values map[string]float64 `json:"values"`
}

// Value returns the named measure and whether it is present.
func (r Row) Value(col string) (float64, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	values := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{SubjectID: r.SubjectID, Wave: r.Wave, Values: values}
}

// Dataset is an in-memory panel table: one Row per (subject, wave) in input
// arrival order, plus the ordered list of numeric measure columns. It is
// built once by the loader and never mutated in place by the pipeline stages;
// each stage returns a new Dataset.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([]Row, len(d.Rows)),
	}
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// HasColumn reports whether the dataset carries the named measure column.
func (d *Dataset) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// SubjectCount returns the number of distinct subjects in the dataset.
func (d *Dataset) SubjectCount() int {
	seen := make(map[string]bool, len(d.Rows))
	for _, r := range d.Rows {
		seen[r.SubjectID] = true
	}
	return len(seen)
}
