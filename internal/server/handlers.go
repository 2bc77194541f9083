package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/mesh-intelligence/seguimientos/internal/service"
	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err == nil {
		http.Redirect(w, r, s.path("/dashboard"), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "seguimientos",
		"login":   s.path("/login"),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "seguimientos"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if isJSON(r) {
		if err := decodeJSON(w, r, &creds); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		form, err := parseForm(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		creds.Username, creds.Password = form.Get("username"), form.Get("password")
	}

	who, err := s.authn.Authenticate(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, types.ErrNotAuthenticated) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "Credenciales incorrectas"})
			return
		}
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Create(who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(sess.Token, int(s.sessions.TTL()/time.Second)))
	http.Redirect(w, r, s.path("/dashboard"), http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, who types.Identity) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.sessions.Delete(c.Value); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	http.Redirect(w, r, s.path("/"), http.StatusFound)
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	path := s.base
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

type dashboardBody struct {
	User       types.Identity   `json:"user"`
	Elevated   bool             `json:"is_superadmin"`
	Documentos []types.Document `json:"documentos"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, who types.Identity) {
	docs, err := s.svc.ListVisible(r.Context(), who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardBody{
		User:       who,
		Elevated:   s.svc.Policy().Elevated(who.Role),
		Documentos: docs,
	})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request, who types.Identity) {
	var req struct {
		DocNumber string `json:"doc_number"`
		Apellido  string `json:"apellido"`
	}
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		form, err := parseForm(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.DocNumber, req.Apellido = form.Get("doc_number"), form.Get("apellido")
	}

	doc, err := s.svc.CreateDocument(r.Context(), who, req.DocNumber, req.Apellido)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, s.path("/document/"+doc.Folder+"/"+types.FollowUpName(1)), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, err := types.ParseDocumentID(r.PathValue("folder"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteDocument(r.Context(), who, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Documento eliminado", Folder: id.String()})
}

// target parses the {folder} and follow-up path values of a request.
func target(r *http.Request, key string) (types.DocumentID, int, error) {
	id, err := types.ParseDocumentID(r.PathValue("folder"))
	if err != nil {
		return types.DocumentID{}, 0, err
	}
	n, err := types.ParseFollowUp(r.PathValue(key))
	if err != nil {
		return types.DocumentID{}, 0, err
	}
	return id, n, nil
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "follow_up")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.FollowUp(r.Context(), who, id, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type recordBody struct {
	types.Record
	Submitted bool `json:"enviado"`
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "follow_up")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, submitted, err := s.svc.Record(r.Context(), who, id, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordBody{Record: record, Submitted: submitted})
}

func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "follow_up")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var record types.Record
	if isJSON(r) {
		if err := decodeJSON(w, r, &record); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		form, err := parseForm(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		record = recordFromForm(form)
	}

	if err := s.svc.SaveFollowUp(r.Context(), who, id, n, record); err != nil {
		s.writeError(w, r, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, s.path("/document/"+id.String()+"/"+types.FollowUpName(n)), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Seguimiento guardado", Folder: id.String()})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "n")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var text string
	if isJSON(r) {
		var req struct {
			Comentario string `json:"comentario"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		text = req.Comentario
	} else {
		form, err := parseForm(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		text = form.Get("comentario")
	}

	c, err := s.svc.AddComment(r.Context(), who, id, n, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, s.path("/document/"+id.String()+"/"+types.FollowUpName(n)), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "n")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed upload: %v", types.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	uploads := make([]service.Upload, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: reading %s: %v", types.ErrInvalidInput, fh.Filename, err))
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{Name: fh.Filename, Content: f})
	}

	names, err := s.svc.UploadImages(r.Context(), who, id, n, uploads)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{
		Message: strconv.Itoa(len(names)) + " archivos subidos",
		Files:   names,
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "follow_up")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := r.PathValue("filename")
	rc, err := s.svc.OpenImage(r.Context(), who, id, n, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, who types.Identity) {
	id, n, err := target(r, "follow_up")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	name, err := s.svc.RenderReport(r.Context(), who, id, n, &buf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
