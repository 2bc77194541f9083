package types

// CommentTimeLayout formats comment timestamps as local time with
// microseconds and no zone, the format existing comment logs use.
const CommentTimeLayout = "2006-01-02T15:04:05.000000"

// Comment is one entry of a follow-up comment log.
type Comment struct {
	Fecha      string `json:"fecha"`
	Usuario    string `json:"usuario"`
	Comentario string `json:"comentario"`
}
