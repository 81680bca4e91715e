package gitlab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/slok/glexport/internal/model"
)

// --- JSON wire types (private, GitLab API responses) ---

type projectJSON struct {
	ID                *int64  `json:"id"`
	Name              string  `json:"name"`
	Path              *string `json:"path"`
	PathWithNamespace *string `json:"path_with_namespace"`
}

func (p projectJSON) toModel() (model.Project, error) {
	const kind = "project"

	if p.ID == nil {
		return model.Project{}, &model.DecodeError{Kind: kind, Field: "id"}
	}
	if p.Path == nil || *p.Path == "" {
		return model.Project{}, &model.DecodeError{Kind: kind, Field: "path"}
	}
	if p.PathWithNamespace == nil || *p.PathWithNamespace == "" {
		return model.Project{}, &model.DecodeError{Kind: kind, Field: "path_with_namespace"}
	}

	// The namespaced path is used as a directory on disk, it can't escape the run directory.
	pwn := *p.PathWithNamespace
	if !filepath.IsLocal(filepath.FromSlash(pwn)) {
		return model.Project{}, &model.DecodeError{
			Kind:  kind,
			Field: "path_with_namespace",
			Err:   fmt.Errorf("%q is not a local relative path: %w", pwn, model.ErrNotValid),
		}
	}

	name := p.Name
	if name == "" {
		name = *p.Path
	}

	return model.Project{
		ID:             *p.ID,
		Name:           name,
		Path:           *p.Path,
		PathNamespaced: pwn,
	}, nil
}

type exportStatusJSON struct {
	ID           int64   `json:"id"`
	ExportStatus *string `json:"export_status"`
}

func (e exportStatusJSON) toModel(projectID int64) (*model.ExportStatus, error) {
	if e.ExportStatus == nil {
		return nil, &model.DecodeError{Kind: "export status", Field: "export_status"}
	}

	return &model.ExportStatus{
		ProjectID: projectID,
		State:     model.ExportState(*e.ExportStatus),
	}, nil
}

type errorJSON struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// errorMessage extracts the reason of a failed request. GitLab sends the reason
// on the `message` field, as a string or as an object for validation errors.
func errorMessage(statusCode int, body []byte) string {
	var e errorJSON
	if err := json.Unmarshal(body, &e); err == nil {
		if len(e.Message) > 0 && string(e.Message) != "null" {
			var msg string
			if err := json.Unmarshal(e.Message, &msg); err == nil {
				return msg
			}

			var buf bytes.Buffer
			if err := json.Compact(&buf, e.Message); err == nil {
				return buf.String()
			}
		}
		if e.Error != "" {
			return e.Error
		}
	}

	return http.StatusText(statusCode)
}

// pageHeader returns the int value of a pagination header, nil if missing.
// Empty values return 0 (GitLab sends empty `X-Next-Page` on the last page).
func pageHeader(h http.Header, key string) (*int, error) {
	values, ok := h[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return nil, nil
	}

	v := values[0]
	if v == "" {
		zero := 0
		return &zero, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, &model.DecodeError{Kind: "pagination", Field: key, Err: fmt.Errorf("invalid value %q", v)}
	}

	return &n, nil
}
