// Package gitlabfake is an in-process fake of the GitLab project export API,
// scriptable per project so export flows can be tested end to end.
package gitlabfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// Project is a project served by the fake and how its export behaves.
type Project struct {
	ID             int64
	Name           string
	Path           string
	PathNamespaced string

	// FinishAfter is the number of status queries answered as in progress
	// before the export is reported as finished.
	FinishAfter int
	// ScheduleError rejects the export request with this message when set.
	ScheduleError string
	// ArchiveFilename is advertised on the download, empty sends no Content-Disposition.
	ArchiveFilename string
	// Archive is the downloaded content, defaults to a text with the project path.
	Archive []byte
}

// Config is the fake configuration.
type Config struct {
	// Token is the expected bearer token, empty accepts any request.
	Token    string
	Projects []Project
	// NoPaginationHeaders omits the pagination headers like some proxies do.
	NoPaginationHeaders bool
	// TransientErrors is the number of first requests answered with a 502.
	TransientErrors int
}

type projectState struct {
	Project
	scheduled     bool
	statusQueries int
}

// Server is the fake GitLab server, it implements http.Handler.
type Server struct {
	mu       sync.Mutex
	cfg      Config
	projects map[int64]*projectState
	requests []string
	failures int
	mux      *http.ServeMux
}

// New returns a new fake GitLab server.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		projects: map[int64]*projectState{},
		mux:      http.NewServeMux(),
	}
	for _, p := range cfg.Projects {
		s.projects[p.ID] = &projectState{Project: p}
	}

	s.mux.HandleFunc("GET /api/v4/projects", s.listProjects)
	s.mux.HandleFunc("POST /api/v4/projects/{id}/export", s.startExport)
	s.mux.HandleFunc("GET /api/v4/projects/{id}/export", s.exportStatus)
	s.mux.HandleFunc("GET /api/v4/projects/{id}/export/download", s.download)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	transient := s.failures < s.cfg.TransientErrors
	if transient {
		s.failures++
	}
	s.mu.Unlock()

	if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
		writeMessage(w, http.StatusUnauthorized, "401 Unauthorized")
		return
	}

	if transient {
		writeMessage(w, http.StatusBadGateway, "502 Bad Gateway")
		return
	}

	s.mux.ServeHTTP(w, r)
}

// Requests returns the `METHOD path` of every request received in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests returns the number of received requests with the method and path.
func (s *Server) CountRequests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

// StatusQueries returns the number of export status queries received for a project.
func (s *Server) StatusQueries(projectID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return 0
	}
	return p.statusQueries
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	perPage := queryInt(q.Get("per_page"), 20)

	all := s.cfg.Projects
	total := len(all)
	totalPages := max(1, (total+perPage-1)/perPage)

	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	type projectJSON struct {
		ID                int64  `json:"id"`
		Name              string `json:"name"`
		Path              string `json:"path"`
		PathWithNamespace string `json:"path_with_namespace"`
	}
	res := make([]projectJSON, 0, end-start)
	for _, p := range all[start:end] {
		res = append(res, projectJSON{
			ID:                p.ID,
			Name:              p.Name,
			Path:              p.Path,
			PathWithNamespace: p.PathNamespaced,
		})
	}

	if !s.cfg.NoPaginationHeaders {
		next := ""
		if page < totalPages {
			next = strconv.Itoa(page + 1)
		}
		w.Header().Set("X-Page", strconv.Itoa(page))
		w.Header().Set("X-Per-Page", strconv.Itoa(perPage))
		w.Header().Set("X-Total", strconv.Itoa(total))
		w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages))
		w.Header()["X-Next-Page"] = []string{next}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) startExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.project(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "404 Project Not Found")
		return
	}

	if p.ScheduleError != "" {
		writeMessage(w, http.StatusBadRequest, p.ScheduleError)
		return
	}

	p.scheduled = true
	p.statusQueries = 0
	writeMessage(w, http.StatusAccepted, "202 Accepted")
}

func (s *Server) exportStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.project(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "404 Project Not Found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  p.ID,
		"name":                p.Name,
		"path_with_namespace": p.PathNamespaced,
		"export_status":       s.nextStatus(p),
	})
}

func (s *Server) nextStatus(p *projectState) string {
	if !p.scheduled {
		return "none"
	}

	p.statusQueries++
	switch {
	case p.statusQueries > p.FinishAfter:
		return "finished"
	case p.statusQueries == 1:
		return "queued"
	default:
		return "started"
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.project(r)
	if !ok || !p.scheduled || p.statusQueries <= p.FinishAfter {
		writeMessage(w, http.StatusNotFound, "404 Not Found")
		return
	}

	archive := p.Archive
	if archive == nil {
		archive = []byte(fmt.Sprintf("export archive of %s", p.PathNamespaced))
	}

	if p.ArchiveFilename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.ArchiveFilename))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (s *Server) project(r *http.Request) (*projectState, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, false
	}
	p, ok := s.projects[id]
	return p, ok
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
