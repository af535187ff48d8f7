package model

import "sort"

// Matrix maps donor id -> cause id -> proposed amount.
type Matrix map[string]map[string]float64

// Cell identifies one donor-cause pair and its amount.
type Cell struct {
	DonorID string
	CauseID string
	Amount  float64
}

// Set stores an amount, allocating the inner map on first use.
func (m Matrix) Set(donorID, causeID string, amount float64) {
	row, ok := m[donorID]
	if !ok {
		row = make(map[string]float64)
		m[donorID] = row
	}
	row[causeID] = amount
}

// Get returns the amount for a cell and whether it is present.
func (m Matrix) Get(donorID, causeID string) (float64, bool) {
	row, ok := m[donorID]
	if !ok {
		return 0, false
	}
	v, ok := row[causeID]
	return v, ok
}

// Cells returns every cell in deterministic donor, cause order.
func (m Matrix) Cells() []Cell {
	donors := make([]string, 0, len(m))
	for d := range m {
		donors = append(donors, d)
	}
	sort.Strings(donors)

	var cells []Cell
	for _, d := range donors {
		causes := make([]string, 0, len(m[d]))
		for c := range m[d] {
			causes = append(causes, c)
		}
		sort.Strings(causes)
		for _, c := range causes {
			cells = append(cells, Cell{DonorID: d, CauseID: c, Amount: m[d][c]})
		}
	}
	return cells
}

// Total sums every amount in the matrix.
func (m Matrix) Total() float64 {
	var total float64
	for _, row := range m {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for d, row := range m {
		r := make(map[string]float64, len(row))
		for c, v := range row {
			r[c] = v
		}
		out[d] = r
	}
	return out
}

// Equal reports whether two matrices hold exactly the same cells.
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for d, row := range m {
		otherRow, ok := other[d]
		if !ok || len(row) != len(otherRow) {
			return false
		}
		for c, v := range row {
			ov, ok := otherRow[c]
			if !ok || ov != v {
				return false
			}
		}
	}
	return true
}
