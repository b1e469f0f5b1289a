package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/rideshare-booking/internal/domain"
	"github.com/pkordes/rideshare-booking/internal/middleware"
)

var errNoUser = errors.New("handler: no acting user in request context")

// pathID binds the {id} path parameter as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	return id, err
}

// queryParam binds an optional form-style query parameter into dest,
// which must be a pointer to a pointer so an absent value stays nil.
func queryParam(r *http.Request, name string, dest any) error {
	return runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest)
}

// pagination reads ?page= and ?limit=.
func pagination(r *http.Request) (domain.PaginationParams, error) {
	var page, limit *int
	if err := queryParam(r, "page", &page); err != nil {
		return domain.PaginationParams{}, err
	}
	if err := queryParam(r, "limit", &limit); err != nil {
		return domain.PaginationParams{}, err
	}
	return domain.NewPaginationParams(page, limit), nil
}

// actingUser returns the id the auth middleware stored for this request.
// A missing id is a wiring bug, so it surfaces as an internal error.
func actingUser(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		return uuid.Nil, errNoUser
	}
	return id, nil
}

// resolve gathers the acting user and the {id} path parameter shared by
// every authenticated route, writing the failure response itself when
// either is missing.
func resolve(w http.ResponseWriter, r *http.Request) (user, id uuid.UUID, ok bool) {
	user, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err = pathID(r)
	if err != nil {
		requestError(w, "invalid id: "+err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return user, id, true
}
