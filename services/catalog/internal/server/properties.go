package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"smartimmo/pkg/domain"
	"smartimmo/services/catalog/internal/app"
)

const (
	multipartMemory    = 8 << 20
	multipartOverhead  = 1 << 20
	defaultUploadBytes = 10 << 20
)

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
		return
	}
	props, err := s.app.ListProperties(r.Context(), criteria)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in domain.PropertyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	created, err := s.app.CreateProperty(r.Context(), user, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.GetProperty(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	var patch domain.PropertyPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	id := r.PathValue("id")
	updated, err := s.app.UpdateProperty(r.Context(), user, id, patch)
	if err != nil {
		s.auditMutation(r, "catalog.property.update", user, id, err)
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := r.PathValue("id")
	if err := s.app.DeleteProperty(r.Context(), user, id); err != nil {
		s.auditMutation(r, "catalog.property.delete", user, id, err)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "catalog.property.delete", "success", "user_id", user.ID, "property_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) auditMutation(r *http.Request, event string, user domain.User, id string, err error) {
	if statusFor(err) != http.StatusForbidden {
		return
	}
	s.audit(r, event, "denied", "user_id", user.ID, "property_id", id)
}

// parseCriteria reads listing filters from the query string. Absent or empty
// parameters impose no constraint. bedrooms and bathrooms are lower bounds;
// min_bedrooms and min_bathrooms are accepted as aliases.
func parseCriteria(q url.Values) (domain.Criteria, error) {
	var c domain.Criteria
	if v := strings.TrimSpace(q.Get("city")); v != "" {
		c.City = &v
	}
	if v := q.Get("property_type"); v != "" {
		t := domain.PropertyType(v)
		if !t.Valid() {
			return domain.Criteria{}, fmt.Errorf("property_type: unknown value %q", v)
		}
		c.PropertyType = &t
	}
	if v := q.Get("status"); v != "" {
		st := domain.PropertyStatus(v)
		if !st.Valid() {
			return domain.Criteria{}, fmt.Errorf("status: unknown value %q", v)
		}
		c.Status = &st
	}
	var err error
	if c.MinPrice, err = decimalParam(q, "min_price"); err != nil {
		return domain.Criteria{}, err
	}
	if c.MaxPrice, err = decimalParam(q, "max_price"); err != nil {
		return domain.Criteria{}, err
	}
	if c.MinBedrooms, err = intParam(q, "bedrooms", "min_bedrooms"); err != nil {
		return domain.Criteria{}, err
	}
	if c.MinBathrooms, err = intParam(q, "bathrooms", "min_bathrooms"); err != nil {
		return domain.Criteria{}, err
	}
	if c.Limit, err = intParam(q, "limit"); err != nil {
		return domain.Criteria{}, err
	}
	if c.Offset, err = intParam(q, "offset"); err != nil {
		return domain.Criteria{}, err
	}
	if v := q.Get("is_featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.Criteria{}, fmt.Errorf("is_featured: invalid boolean %q", v)
		}
		c.Featured = &b
	}
	return c, nil
}

// intParam parses the first non-empty parameter among names.
func intParam(q url.Values, names ...string) (*int, error) {
	for _, name := range names {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", name, v)
		}
		return &n, nil
	}
	return nil, nil
}

func decimalParam(q url.Values, name string) (*decimal.Decimal, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid number %q", name, v)
	}
	return &d, nil
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file is required (field: file)")
		return
	}
	defer file.Close()
	primary, _ := strconv.ParseBool(r.FormValue("is_primary"))
	id := r.PathValue("id")
	updated, err := s.app.UploadPropertyImage(r.Context(), user, id, app.ImageUpload{
		Filename:  header.Filename,
		Size:      header.Size,
		Body:      file,
		IsPrimary: primary,
	})
	if err != nil {
		s.auditMutation(r, "catalog.property.image", user, id, err)
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}
