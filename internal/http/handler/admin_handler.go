package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librasys/admin-portal/internal/config"
	"github.com/librasys/admin-portal/internal/http/flash"
	"github.com/librasys/admin-portal/internal/http/render"
	"github.com/librasys/admin-portal/internal/http/response"
	"github.com/librasys/admin-portal/internal/observability"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/service"
)

// sortableUserFields is the allow-list for the listing sort parameter. The
// field name reaches the ordering clause, so nothing outside this set may
// pass.
var sortableUserFields = map[string]struct{}{
	"id":         {},
	"library_id": {},
	"first_name": {},
	"last_name":  {},
	"email":      {},
	"sex":        {},
	"created_at": {},
}

// listingQueryKeys are the parameters echoed on the post-delete redirect so
// the caller lands back on the same filtered page.
var listingQueryKeys = []string{"per_page", "sort_field", "sort_direction", "user_type_id", "search", "page"}

type AdminHandler struct {
	svc      service.AdminServiceInterface
	renderer *render.Renderer
	cfg      *config.Config
}

func NewAdminHandler(svc service.AdminServiceInterface, renderer *render.Renderer, cfg *config.Config) *AdminHandler {
	return &AdminHandler{svc: svc, renderer: renderer, cfg: cfg}
}

// List shows the filtered, sorted, paginated admin listing.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params, err := h.parseListParams(r)
	if err != nil {
		observability.RecordAdminListRequest(r.Context(), "bad_request", 0, time.Since(start))
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	result, err := h.svc.ListAdmins(r.Context(), params)
	if err != nil {
		observability.RecordAdminListRequest(r.Context(), "error", params.PageSize, time.Since(start))
		slog.ErrorContext(r.Context(), "failed to list admins", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list admins", nil)
		return
	}

	observability.RecordAdminListRequest(r.Context(), "success", params.PageSize, time.Since(start))
	h.renderer.Render(w, r, http.StatusOK, "admins/Index", map[string]any{
		"data":                 result.Data,
		"filter":               result.Filters,
		"userTypes":            result.UserTypes,
		"currentSortField":     params.SortField,
		"currentSortDirection": params.SortDirection,
	})
}

// New shows the creation form.
func (h *AdminHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "admins/Create", nil)
}

// Create validates and stores a new admin, mapping each failure kind to its
// user-facing outcome.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid form payload", nil)
		return
	}
	input := service.CreateAdminInput{
		LibraryID:            r.PostFormValue("library_id"),
		FirstName:            r.PostFormValue("first_name"),
		MiddleInitial:        r.PostFormValue("middle_initial"),
		LastName:             r.PostFormValue("last_name"),
		Sex:                  r.PostFormValue("sex"),
		ContactNumber:        r.PostFormValue("contact_number"),
		RoleTitle:            r.PostFormValue("role_title"),
		Email:                r.PostFormValue("email"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}

	user, err := h.svc.CreateAdmin(r.Context(), input)
	if err != nil {
		h.renderCreateFailure(w, r, input, err)
		return
	}

	observability.Audit(r, "admin.created",
		"user_id", user.ID,
		"library_id", user.LibraryID,
		"email", user.Email,
	)
	observability.RecordAdminMutation(r.Context(), "create", "success")
	h.renderer.Redirect(w, r, "/admins", flash.KindSuccess, "You successfully created a new Admin")
}

func (h *AdminHandler) renderCreateFailure(w http.ResponseWriter, r *http.Request, input service.CreateAdminInput, err error) {
	props := map[string]any{"old": oldInput(input)}

	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		observability.RecordAdminMutation(r.Context(), "create", "rejected")
		props["errors"] = vErr.Fields
		props["flash"] = map[string]string{flash.KindError: "Please fix the validation errors below."}
		h.renderer.Render(w, r, http.StatusUnprocessableEntity, "admins/Create", props)
	case errors.Is(err, repository.ErrUserTypeNotFound):
		observability.RecordAdminMutation(r.Context(), "create", "not_found")
		h.logCreateError(r, input, err)
		props["flash"] = map[string]string{flash.KindError: "Admin user type not found. Please contact system administrator."}
		h.renderer.Render(w, r, http.StatusOK, "admins/Create", props)
	case service.IsStoreError(err):
		observability.RecordAdminMutation(r.Context(), "create", "error")
		h.logCreateError(r, input, err)
		props["flash"] = map[string]string{flash.KindError: "Database error occurred while creating the admin. Please try again."}
		h.renderer.Render(w, r, http.StatusOK, "admins/Create", props)
	default:
		observability.RecordAdminMutation(r.Context(), "create", "error")
		h.logCreateError(r, input, err)
		props["flash"] = map[string]string{flash.KindError: "An unexpected error occurred. Please try again or contact support."}
		h.renderer.Render(w, r, http.StatusOK, "admins/Create", props)
	}
}

// oldInput echoes the submitted fields back to the form. Credential fields
// are never echoed.
func oldInput(in service.CreateAdminInput) map[string]string {
	return map[string]string{
		"library_id":     in.LibraryID,
		"first_name":     in.FirstName,
		"middle_initial": in.MiddleInitial,
		"last_name":      in.LastName,
		"sex":            in.Sex,
		"contact_number": in.ContactNumber,
		"role_title":     in.RoleTitle,
		"email":          in.Email,
	}
}

func (h *AdminHandler) logCreateError(r *http.Request, input service.CreateAdminInput, err error) {
	// Credential fields stay out of the logged context.
	slog.ErrorContext(r.Context(), "error creating admin user",
		"error", err,
		"library_id", input.LibraryID,
		"first_name", input.FirstName,
		"last_name", input.LastName,
		"email", input.Email,
		"role_title", input.RoleTitle,
	)
}

// Delete removes an admin record and sends the caller back to the listing
// with their filter, sort and page parameters intact.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		observability.RecordAdminMutation(r.Context(), "delete", "not_found")
		h.renderer.Redirect(w, r, h.backTarget(r), flash.KindError, "Admin not found.")
		return
	}

	if err := h.svc.DeleteAdmin(r.Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAdminMutation(r.Context(), "delete", "not_found")
			h.renderer.Redirect(w, r, h.backTarget(r), flash.KindError, "Admin not found.")
			return
		}
		observability.RecordAdminMutation(r.Context(), "delete", "error")
		slog.ErrorContext(r.Context(), "error deleting admin", "user_id", id, "error", err)
		h.renderer.Redirect(w, r, h.backTarget(r), flash.KindError, "An error occurred while deleting the admin.")
		return
	}

	observability.Audit(r, "admin.deleted", "user_id", id)
	observability.RecordAdminMutation(r.Context(), "delete", "success")
	h.renderer.Location(w, r, listingTarget(r), flash.KindSuccess, "Admin deleted successfully")
}

func (h *AdminHandler) parseListParams(r *http.Request) (service.ListParams, error) {
	query := r.URL.Query()

	page := repository.DefaultPage
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return service.ListParams{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	pageSize := h.cfg.AdminDefaultPageSize
	if raw := strings.TrimSpace(query.Get("per_page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return service.ListParams{}, errors.New("per_page must be a positive integer")
		}
		if v > h.cfg.AdminMaxPageSize {
			return service.ListParams{}, fmt.Errorf("per_page must be <= %d", h.cfg.AdminMaxPageSize)
		}
		pageSize = v
	}

	sortField := strings.ToLower(strings.TrimSpace(query.Get("sort_field")))
	if sortField != "" {
		if _, ok := sortableUserFields[sortField]; !ok {
			return service.ListParams{}, fmt.Errorf("invalid sort_field: %s", sortField)
		}
	}
	sortDirection := strings.ToLower(strings.TrimSpace(query.Get("sort_direction")))
	if sortDirection == "" {
		sortDirection = "asc"
	}
	if sortDirection != "asc" && sortDirection != "desc" {
		return service.ListParams{}, errors.New("sort_direction must be asc or desc")
	}

	rawTypes, typeFilterSet := typeFilterValues(query)
	typeIDs := normalizeTypeFilter(rawTypes)
	var rawEcho any
	if typeFilterSet {
		if len(rawTypes) == 1 {
			rawEcho = rawTypes[0]
		} else {
			rawEcho = rawTypes
		}
	}

	return service.ListParams{
		PageRequest:   repository.PageRequest{Page: page, PageSize: pageSize},
		SortField:     sortField,
		SortDirection: sortDirection,
		UserTypeIDs:   typeIDs,
		TypeFilterSet: typeFilterSet,
		RawTypeFilter: rawEcho,
		Search:        query.Get("search"),
	}, nil
}

// typeFilterValues collects the user_type_id parameter, accepting both the
// repeated form and the bracketed array form.
func typeFilterValues(query url.Values) ([]string, bool) {
	values, present := query["user_type_id"]
	if bracketed, ok := query["user_type_id[]"]; ok {
		values = append(values, bracketed...)
		present = true
	}
	return values, present
}

// normalizeTypeFilter cleans the type filter. A list drops empty and
// non-numeric entries before coercing the rest to integers, and an empty
// result applies no constraint. A single value is always coerced, so a
// non-numeric value becomes 0 and matches nothing.
func normalizeTypeFilter(raw []string) []int64 {
	if len(raw) == 1 {
		v := strings.TrimSpace(raw[0])
		if v == "" {
			return nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			id = 0
		}
		return []int64{id}
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (h *AdminHandler) backTarget(r *http.Request) string {
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Path != "" {
			return u.RequestURI()
		}
	}
	return "/admins"
}

func listingTarget(r *http.Request) string {
	preserved := url.Values{}
	query := r.URL.Query()
	for _, key := range listingQueryKeys {
		for _, v := range query[key] {
			preserved.Add(key, v)
		}
		for _, v := range query[key+"[]"] {
			preserved.Add(key+"[]", v)
		}
	}
	if len(preserved) == 0 {
		return "/admins"
	}
	return "/admins?" + preserved.Encode()
}
