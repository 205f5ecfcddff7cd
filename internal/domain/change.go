package domain

type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// RowChange announces a row-level mutation to the realtime bridge. Changes
// carry no ordering guarantee beyond the order the transport delivers them.
type RowChange struct {
	Table  string      `json:"table"`
	Op     ChangeOp    `json:"op"`
	UserID string      `json:"user_id,omitempty"`
	Row    interface{} `json:"row,omitempty"`
	RowID  int64       `json:"row_id,omitempty"`
}
