package server

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// maxFormBytes caps form and JSON bodies other than uploads.
const maxFormBytes = 1 << 20

// isJSON reports whether the request body is JSON.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeJSON decodes a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", types.ErrInvalidInput, err)
	}
	return nil
}

// parseForm parses a urlencoded or multipart form.
func parseForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed form: %v", types.ErrInvalidInput, err)
	}
	return r.PostForm, nil
}

// recordFromForm builds a record from the follow-up form. The commitment
// and participant columns are zipped up to the shortest column; rows with
// an empty description or name are dropped.
func recordFromForm(form url.Values) types.Record {
	r := types.Record{
		Dimensiones:       form["dimensiones"],
		Fecha:             form.Get("fecha"),
		Hora:              form.Get("hora"),
		Objetivo:          form.Get("objetivo"),
		AspectosAbordados: form.Get("aspectos_abordados"),
		Avances:           form.Get("avances"),
		Retos:             form.Get("retos"),
		Oportunidades:     form.Get("oportunidades"),
	}

	desc, resp, due := form["compromisos_desc"], form["compromisos_resp"], form["compromisos_fecha"]
	for i := 0; i < min(len(desc), len(resp), len(due)); i++ {
		if strings.TrimSpace(desc[i]) == "" {
			continue
		}
		r.Compromisos = append(r.Compromisos, types.Commitment{
			Descripcion:       desc[i],
			Responsable:       resp[i],
			FechaCumplimiento: due[i],
		})
	}

	names, roles, signatures := form["participantes_nombre"], form["participantes_rol"], form["participantes_firma"]
	for i := 0; i < min(len(names), len(roles)); i++ {
		if strings.TrimSpace(names[i]) == "" {
			continue
		}
		p := types.Participant{Nombre: names[i], Rol: roles[i]}
		if i < len(signatures) {
			p.Firma = signatures[i]
		}
		r.Participantes = append(r.Participantes, p)
	}
	return r.Normalize()
}
