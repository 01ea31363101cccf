package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"community-subscription-bot/internal/domain/model"
)

// listMaterialsParams are the query parameters of GET /api/content/materials.
type listMaterialsParams struct {
	Format   *string
	Category *string
	Search   *string
	Sort     *string
	Order    *string
	Limit    *int
	Offset   *int
}

type materialRequest struct {
	Title       string  `json:"title" validate:"required,max=300"`
	Description string  `json:"description" validate:"max=5000"`
	Content     string  `json:"content"`
	Format      string  `json:"format" validate:"max=50"`
	Category    string  `json:"category" validate:"max=100"`
	VideoURL    *string `json:"video_url" validate:"omitempty,url"`
}

func (m materialRequest) toModel(id int64) *model.Material {
	return &model.Material{
		ID:          id,
		Title:       m.Title,
		Description: m.Description,
		Content:     m.Content,
		Format:      m.Format,
		Category:    m.Category,
		VideoURL:    m.VideoURL,
	}
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	var p listMaterialsParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"format", &p.Format},
		{"category", &p.Category},
		{"search", &p.Search},
		{"sort", &p.Sort},
		{"order", &p.Order},
		{"limit", &p.Limit},
		{"offset", &p.Offset},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			fail(w, r, http.StatusBadRequest, "invalid parameter "+b.name)
			return
		}
	}

	f := model.MaterialFilter{
		Format:   deref(p.Format),
		Category: deref(p.Category),
		Search:   deref(p.Search),
		Sort:     deref(p.Sort),
		Desc:     deref(p.Order) == "desc",
	}
	if p.Limit != nil {
		f.Limit = *p.Limit
	}
	if p.Offset != nil {
		f.Offset = *p.Offset
	}

	items, err := s.deps.Materials.List(r.Context(), f)
	if err != nil {
		failErr(w, r, s.log, "materials.list", err)
		return
	}
	if items == nil {
		items = []*model.Material{}
	}
	respond(w, r, http.StatusOK, items)
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.materialID(w, r)
	if !ok {
		return
	}
	m, err := s.deps.Materials.Get(r.Context(), id)
	if err != nil {
		failErr(w, r, s.log, "materials.get", err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	m, err := s.deps.Materials.Create(r.Context(), req.toModel(0))
	if err != nil {
		failErr(w, r, s.log, "materials.create", err)
		return
	}
	respond(w, r, http.StatusCreated, m)
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.materialID(w, r)
	if !ok {
		return
	}
	var req materialRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	m, err := s.deps.Materials.Update(r.Context(), req.toModel(id))
	if err != nil {
		failErr(w, r, s.log, "materials.update", err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.materialID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Materials.Delete(r.Context(), id); err != nil {
		failErr(w, r, s.log, "materials.delete", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) materialID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id <= 0 {
		fail(w, r, http.StatusBadRequest, "invalid parameter id")
		return 0, false
	}
	return id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
