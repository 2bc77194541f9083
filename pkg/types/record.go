package types

import "encoding/json"

// Commitment is an action item agreed during a follow-up.
type Commitment struct {
	Descripcion       string `json:"descripcion"`
	Responsable       string `json:"responsable"`
	FechaCumplimiento string `json:"fecha_cumplimiento"`
}

// UnmarshalJSON accepts the canonical "fecha_cumplimiento" key and the legacy
// "fecha" and "fecha_cumplimiement" keys found in older data files.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Descripcion        string `json:"descripcion"`
		Responsable        string `json:"responsable"`
		FechaCumplimiento  string `json:"fecha_cumplimiento"`
		FechaCumplimiement string `json:"fecha_cumplimiement"`
		Fecha              string `json:"fecha"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Descripcion = raw.Descripcion
	c.Responsable = raw.Responsable
	switch {
	case raw.FechaCumplimiento != "":
		c.FechaCumplimiento = raw.FechaCumplimiento
	case raw.FechaCumplimiement != "":
		c.FechaCumplimiento = raw.FechaCumplimiement
	default:
		c.FechaCumplimiento = raw.Fecha
	}
	return nil
}

// Participant is a named attendee of a follow-up.
type Participant struct {
	Nombre string `json:"nombre"`
	Rol    string `json:"rol"`
	Firma  string `json:"firma,omitempty"`
}

// Record is the structured payload stored in seguimiento.json.
type Record struct {
	Dimensiones       []string      `json:"dimensiones"`
	Fecha             string        `json:"fecha"`
	Hora              string        `json:"hora"`
	Objetivo          string        `json:"objetivo"`
	AspectosAbordados string        `json:"aspectos_abordados"`
	Avances           string        `json:"avances"`
	Retos             string        `json:"retos"`
	Oportunidades     string        `json:"oportunidades"`
	Compromisos       []Commitment  `json:"compromisos"`
	Participantes     []Participant `json:"participantes"`

	// Comentarios holds comments embedded by older versions of the data
	// file. New comments go to the comment log.
	Comentarios []Comment `json:"comentarios,omitempty"`
}

// Normalize replaces nil lists with empty ones so the JSON form always
// carries arrays, and drops an empty embedded comment list.
func (r Record) Normalize() Record {
	if r.Dimensiones == nil {
		r.Dimensiones = []string{}
	}
	if r.Compromisos == nil {
		r.Compromisos = []Commitment{}
	}
	if r.Participantes == nil {
		r.Participantes = []Participant{}
	}
	if len(r.Comentarios) == 0 {
		r.Comentarios = nil
	}
	return r
}

// EmptyRecord returns the record of a follow-up that was never submitted.
func EmptyRecord() Record {
	return Record{}.Normalize()
}
