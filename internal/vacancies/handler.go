package vacancies

import (
	"github.com/gin-gonic/gin"

	"applicant-interview/internal/shared/server/respond"
)

// Handler exposes the catalog to the web form.
type Handler struct {
	Catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{Catalog: catalog}
}

// RegisterRoutes attaches vacancy routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/vacancies", h.list)
}

type vacancyResponse struct {
	Name              string   `json:"name"`
	SuitabilityNeeded string   `json:"suitabilityNeeded"`
	Requirements      []string `json:"requirements"`
	PlusDetails       []string `json:"plusDetails"`
	Notes             string   `json:"notes"`
}

func (h *Handler) list(c *gin.Context) {
	items := h.Catalog.All()
	resp := make([]vacancyResponse, 0, len(items))
	for _, v := range items {
		resp = append(resp, vacancyResponse{
			Name:              v.Name,
			SuitabilityNeeded: v.SuitabilityNeeded,
			Requirements:      nonNil(v.Requirements),
			PlusDetails:       nonNil(v.PlusDetails),
			Notes:             v.Notes,
		})
	}
	respond.OK(c, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
