package mapping

import "leadboard-engine/internal/domain"

// RowWidth is the number of cells written per lead row.
const RowWidth = 32

// RowValues lays a lead out in the column order of the leads sheet. Columns
// the engine does not own (source id, member id, class type, channel and the
// reporting columns after status) are written blank.
func RowValues(l domain.Lead) []any {
	row := make([]any, 0, RowWidth)
	row = append(row,
		l.ID,
		l.FullName,
		l.Phone,
		l.Email,
		l.CreatedAt,
		"", // source id
		l.Source,
		"", // member id
		"", // converted at
		l.Stage,
		l.Associate,
		l.Remarks,
	)
	for _, f := range l.FollowUps {
		row = append(row, f.Date, f.Comments)
	}
	row = append(row,
		l.Center,
		"", // class type
		"", // host id
		l.Status,
	)
	for len(row) < RowWidth {
		row = append(row, "")
	}
	return row
}
