package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/auth"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/db/models"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/repository"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/server/response"
	"github.com/tiendafacil/tienda/cmd/tiendaapi/internal/services/iam"
)

// MeResponse describes the caller.
type MeResponse struct {
	PrincipalID string   `json:"principal_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
}

// ClienteResponse is the admin view of a principal.
type ClienteResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	MiddleName    string    `json:"middle_name,omitempty"`
	Surname       string    `json:"surname"`
	SecondSurname string    `json:"second_surname,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Roles         []string  `json:"roles"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registered_at"`
}

func toClienteResponse(p *models.Principal) ClienteResponse {
	return ClienteResponse{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		MiddleName:    p.MiddleName,
		Surname:       p.Surname,
		SecondSurname: p.SecondSurname,
		Phone:         p.Phone,
		Roles:         auth.Authorities(p.RoleSet()),
		Status:        string(p.Status),
		RegisteredAt:  p.RegisteredAt,
	}
}

// HandleMe returns the security context of the caller.
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := auth.FromContext(r.Context())
		if !ok {
			response.Unauthorized(w)
			return
		}
		response.OK(w, MeResponse{
			PrincipalID: sc.PrincipalID,
			Email:       sc.Identifier,
			Name:        sc.Name,
			Roles:       sc.Authorities(),
		})
	}
}

// HandleWelcome greets the caller by name.
func HandleWelcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := auth.FromContext(r.Context())
		if !ok {
			response.Unauthorized(w)
			return
		}
		response.OK(w, "Welcome to tienda facil, "+sc.Name)
	}
}

// HandleListClientes lists every principal.
func HandleListClientes(principals repository.PrincipalRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := principals.List(r.Context())
		if err != nil {
			response.Error(w, r, err)
			return
		}
		out := make([]ClienteResponse, 0, len(list))
		for i := range list {
			out = append(out, toClienteResponse(&list[i]))
		}
		response.OK(w, out)
	}
}

// HandleGetCliente returns one principal by id.
func HandleGetCliente(principals repository.PrincipalRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			response.Error(w, r, iam.NotFound(iam.MsgPrincipalNotFound))
			return
		}
		p, err := principals.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				response.Error(w, r, iam.NotFound(iam.MsgPrincipalNotFound))
				return
			}
			response.Error(w, r, err)
			return
		}
		response.OK(w, toClienteResponse(p))
	}
}
