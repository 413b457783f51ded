package batch

import "prodfetch/pkg/items"

// filtered is the input list split by what the run has to do with each row
type filtered struct {
	pending []items.Row
	// blank holds rows without an item code; they never count as work
	blank   []items.Row
	already int
}

// filterPending keeps the rows still to process in input order. A code
// repeated in the input is processed once.
func filterPending(rows []items.Row, processed map[string]bool) filtered {
	f := filtered{pending: make([]items.Row, 0, len(rows))}
	seen := make(map[string]bool)

	for _, row := range rows {
		switch {
		case row.Code == "":
			f.blank = append(f.blank, row)
		case processed[row.Code]:
			f.already++
		case seen[row.Code]:
		default:
			seen[row.Code] = true
			f.pending = append(f.pending, row)
		}
	}

	return f
}
