package http

import (
	"github.com/cipherstudio/ide-backend/internal/projects/domain"
	"github.com/cipherstudio/ide-backend/internal/projects/service"
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

type createReq struct {
	Name     string            `json:"name"`
	Files    map[string]string `json:"files"`
	Metadata *domain.Metadata  `json:"metadata"`
}

// updateReq fields are pointers so absent keys stay untouched.
type updateReq struct {
	Name     *string            `json:"name"`
	Files    *map[string]string `json:"files"`
	Metadata *domain.Metadata   `json:"metadata"`
}

type messageResp struct {
	Message string          `json:"message"`
	Project *domain.Project `json:"project,omitempty"`
}
