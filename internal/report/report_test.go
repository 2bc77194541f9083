package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

var generated = time.Date(2024, 3, 15, 14, 5, 9, 0, time.UTC)

func TestFilename(t *testing.T) {
	tests := []struct {
		fecha string
		want  string
	}{
		{"2024-03-15", "reporte_20240315_140509.pdf"},
		{"", "reporte__140509.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Filename(types.Record{Fecha: tt.fecha}, generated))
	}
}

func TestRender(t *testing.T) {
	header := Header{Document: types.DocumentID{Number: "2024-01", Owner: "user7"}, Family: "Pérez", FollowUp: 3}

	tests := []struct {
		name   string
		record types.Record
	}{
		{name: "empty record", record: types.EmptyRecord()},
		{
			name: "full record",
			record: types.Record{
				Dimensiones:       []string{"Educación", "Salud"},
				Fecha:             "2024-03-15",
				Hora:              "10:30",
				Objetivo:          "Reducir la deserción escolar",
				AspectosAbordados: "Asistencia",
				Avances:           "Matrícula completa",
				Retos:             "Transporte",
				Oportunidades:     "Beca",
				Compromisos: []types.Commitment{
					{Descripcion: strings.Repeat("Visitar el colegio y hablar con la docente. ", 8), Responsable: "Madre", FechaCumplimiento: "2024-04-01"},
				},
				Participantes: []types.Participant{{Nombre: "Ana", Rol: "Madre"}, {Nombre: "Luis", Rol: "Asesor"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, header, tt.record, generated))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
			assert.Contains(t, buf.String(), "%%EOF")
		})
	}
}

func TestRenderBreaksLongTablesAcrossPages(t *testing.T) {
	r := types.Record{Fecha: "2024-03-15"}
	for i := 0; i < 120; i++ {
		r.Compromisos = append(r.Compromisos, types.Commitment{
			Descripcion:       fmt.Sprintf("Compromiso %d", i),
			Responsable:       "Equipo",
			FechaCumplimiento: "2024-04-01",
		})
	}

	var one, many bytes.Buffer
	require.NoError(t, Render(&one, Header{FollowUp: 1}, types.Record{Fecha: "2024-03-15"}, generated))
	require.NoError(t, Render(&many, Header{FollowUp: 1}, r, generated))

	assert.Equal(t, 1, bytes.Count(one.Bytes(), []byte("/Type /Page\n")))
	assert.Greater(t, bytes.Count(many.Bytes(), []byte("/Type /Page\n")), 1)
}
