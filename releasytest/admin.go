package releasytest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/internal/web"
	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// locked runs fn while holding the state lock.
func (s *Server) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn()
}

func (s *Server) inLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn()
}

func (s *Server) health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.RespondJSON(ctx, w, http.StatusOK, client.HealthResponse{Status: "ok"})
}

// userError builds the richer error body the user endpoints answer with.
func userError(ctx context.Context, status int, code, msg string, violations ...errs.Violation) error {
	e := errs.New(status, code, errors.New(msg))
	e.RequestID = mux.RequestID(ctx)

	return e.WithViolations(violations...)
}

// createdRange reads the optional created_from/created_to filters; -1
// means unbounded.
func createdRange(r *http.Request) (from, to int, err error) {
	if from, err = queryInt(r, "created_from", -1); err != nil {
		return 0, 0, err
	}
	if to, err = queryInt(r, "created_to", -1); err != nil {
		return 0, 0, err
	}

	return from, to, nil
}

func inRange(createdAt int64, from, to int) bool {
	return (from < 0 || createdAt >= int64(from)) && (to < 0 || createdAt <= int64(to))
}

// ----------------------------------------------------------------------------
// Customers
// ----------------------------------------------------------------------------

func (s *Server) listCustomers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := pageParams(r)
	if err != nil {
		return err
	}

	var all []client.AdminCustomerResponse
	s.inLock(func() {
		for _, c := range s.customers {
			if matches(r, "customer_id", c.ID) && matches(r, "name", c.Name) && matches(r, "plan", c.Plan) {
				all = append(all, *c)
			}
		}
	})

	resp := client.AdminCustomerListResponse{
		Customers: page(all, limit, offset),
		Limit:     int64(limit),
		Offset:    int64(offset),
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) createCustomer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.AdminCreateCustomerRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	c := client.AdminCustomerResponse{
		ID:   uuid.NewString(),
		Name: req.Name,
		Plan: req.Plan.Or(""),
	}

	s.inLock(func() {
		c.CreatedAt = s.now().Unix()
		s.customers = append(s.customers, &c)
		s.auditLocked(principalFrom(ctx).actor, "customer.created", c.ID, req)
	})

	resp := client.AdminCreateCustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		Plan:      c.Plan,
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, resp)
}

func (s *Server) getCustomer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("customer_id")

	var resp client.AdminCustomerResponse
	err := s.locked(func() error {
		c, ok := s.customer(id)
		if !ok {
			return notFound("customer", id)
		}
		resp = *c
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) updateCustomer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.AdminUpdateCustomerRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	if req.Name.IsNull() {
		return badRequest("name cannot be null")
	}

	id := r.PathValue("customer_id")

	var resp client.AdminCustomerResponse
	err := s.locked(func() error {
		c, ok := s.customer(id)
		if !ok {
			return notFound("customer", id)
		}

		if name, ok := req.Name.Get(); ok {
			c.Name = name
		}
		if !req.Plan.IsZero() {
			c.Plan = req.Plan.Or("")
		}
		switch suspended, ok := req.Suspended.Get(); {
		case ok && suspended:
			now := s.now().Unix()
			c.SuspendedAt = &now
		case ok || req.Suspended.IsNull():
			c.SuspendedAt = nil
		}

		s.auditLocked(principalFrom(ctx).actor, "customer.updated", c.ID, req)
		resp = *c
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

// ----------------------------------------------------------------------------
// Entitlements
// ----------------------------------------------------------------------------

func (s *Server) listEntitlements(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := pageParams(r)
	if err != nil {
		return err
	}
	customerID := r.PathValue("customer_id")

	var all []client.EntitlementResponse
	err = s.locked(func() error {
		if _, ok := s.customer(customerID); !ok {
			return notFound("customer", customerID)
		}
		for _, e := range s.entitlements {
			if e.CustomerID == customerID && matches(r, "product", e.Product) {
				all = append(all, *e)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	resp := client.EntitlementListResponse{
		Entitlements: page(all, limit, offset),
		Limit:        int64(limit),
		Offset:       int64(offset),
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func entitlementWindow(starts int64, ends *int64) error {
	if ends == nil || *ends > starts {
		return nil
	}

	return errs.FromFields(nil).WithViolations(errs.Violation{
		Field:   "ends_at",
		Code:    "range",
		Message: "ends_at must be after starts_at",
	})
}

func (s *Server) createEntitlement(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.EntitlementCreateRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	customerID := r.PathValue("customer_id")

	e := client.EntitlementResponse{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Product:    req.Product,
		StartsAt:   req.StartsAt,
	}
	if ends, ok := req.EndsAt.Get(); ok {
		e.EndsAt = &ends
	}
	if md, ok := req.Metadata.Get(); ok {
		e.Metadata = md
	}
	if err := entitlementWindow(e.StartsAt, e.EndsAt); err != nil {
		return err
	}

	err := s.locked(func() error {
		if _, ok := s.customer(customerID); !ok {
			return notFound("customer", customerID)
		}
		s.entitlements = append(s.entitlements, &e)
		s.auditLocked(principalFrom(ctx).actor, "entitlement.created", customerID, req)
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, e)
}

func (s *Server) updateEntitlement(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.EntitlementUpdateRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	customerID, id := r.PathValue("customer_id"), r.PathValue("entitlement_id")

	var resp client.EntitlementResponse
	err := s.locked(func() error {
		e, ok := s.entitlement(customerID, id)
		if !ok {
			return notFound("entitlement", id)
		}

		next := *e
		if product, ok := req.Product.Get(); ok {
			next.Product = product
		}
		if starts, ok := req.StartsAt.Get(); ok {
			next.StartsAt = starts
		}
		if ends, ok := req.EndsAt.Get(); ok {
			next.EndsAt = &ends
		} else if req.EndsAt.IsNull() {
			next.EndsAt = nil
		}
		if !req.Metadata.IsZero() {
			next.Metadata = req.Metadata.Or(nil)
		}
		if err := entitlementWindow(next.StartsAt, next.EndsAt); err != nil {
			return err
		}

		*e = next
		s.auditLocked(principalFrom(ctx).actor, "entitlement.updated", customerID, req)
		resp = next
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) deleteEntitlement(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	customerID, id := r.PathValue("customer_id"), r.PathValue("entitlement_id")

	err := s.locked(func() error {
		if _, ok := s.entitlement(customerID, id); !ok {
			return notFound("entitlement", id)
		}
		s.entitlements = slices.DeleteFunc(s.entitlements, func(e *client.EntitlementResponse) bool { return e.ID == id })
		s.auditLocked(principalFrom(ctx).actor, "entitlement.deleted", customerID, map[string]string{"entitlement_id": id})
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusNoContent, nil)
}

// ----------------------------------------------------------------------------
// Users
// ----------------------------------------------------------------------------

var userStatuses = []string{"active", "disabled", "invited"}

func checkStatus(ctx context.Context, status string) error {
	if slices.Contains(userStatuses, status) {
		return nil
	}

	return userError(ctx, http.StatusUnprocessableEntity, "user_invalid", "invalid user status",
		errs.Violation{Field: "status", Code: "invalid", Message: fmt.Sprintf("status must be one of %v", userStatuses)})
}

func (s *Server) listUsers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		return err
	}
	offset := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		if offset, err = strconv.Atoi(cursor); err != nil || offset < 0 {
			return badRequest("invalid cursor")
		}
	}
	from, to, err := createdRange(r)
	if err != nil {
		return err
	}

	var all []client.UserResponse
	s.inLock(func() {
		for _, u := range s.users {
			if matches(r, "customer_id", u.CustomerID) &&
				matches(r, "email", u.Email) &&
				matches(r, "status", u.Status) &&
				matches(r, "keycloak_user_id", u.KeycloakUserID) &&
				inRange(u.CreatedAt, from, to) {
				all = append(all, *u)
			}
		}
	})

	resp := client.UserListResponse{Users: page(all, limit, offset)}
	if next := offset + limit; next < len(all) {
		resp.NextCursor = strconv.Itoa(next)
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) createUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.UserCreateRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	u := client.UserResponse{
		ID:             uuid.NewString(),
		KeycloakUserID: uuid.NewString(),
		CustomerID:     req.CustomerID,
		Email:          req.Email,
		Status:         req.Status.Or("active"),
		Groups:         slices.Clone(req.Groups.Or([]string{})),
		DisplayName:    req.DisplayName.Or(""),
		Metadata:       req.Metadata.Or(nil),
	}
	if u.Groups == nil {
		u.Groups = []string{}
	}
	if err := checkStatus(ctx, u.Status); err != nil {
		return err
	}

	err := s.locked(func() error {
		if _, ok := s.customer(req.CustomerID); !ok {
			return userError(ctx, http.StatusUnprocessableEntity, "user_invalid", "unknown customer",
				errs.Violation{Field: "customer_id", Code: "not_found", Message: "customer does not exist"})
		}

		_, dup := find(s.users, func(o *client.UserResponse) bool { return o.Email == req.Email })
		if dup {
			return userError(ctx, http.StatusConflict, "user_conflict", fmt.Sprintf("user %s already exists", req.Email),
				errs.Violation{Field: "email", Code: "duplicate", Message: "email is already registered"})
		}

		now := s.now().Unix()
		u.CreatedAt, u.UpdatedAt = now, now
		if u.Status == "disabled" {
			u.DisabledAt = &now
		}
		s.users = append(s.users, &u)
		s.auditLocked(principalFrom(ctx).actor, "user.created", u.CustomerID, map[string]string{"user_id": u.ID, "email": u.Email})
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, u)
}

func (s *Server) getUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("user_id")

	var resp client.UserResponse
	err := s.locked(func() error {
		u, ok := s.user(id)
		if !ok {
			return notFound("user", id)
		}
		resp = *u
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) patchUser(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.UserPatchRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	if status, ok := req.Status.Get(); ok {
		if err := checkStatus(ctx, status); err != nil {
			return err
		}
	}
	id := r.PathValue("user_id")

	var resp client.UserResponse
	err := s.locked(func() error {
		u, ok := s.user(id)
		if !ok {
			return notFound("user", id)
		}

		if !req.DisplayName.IsZero() {
			u.DisplayName = req.DisplayName.Or("")
		}
		if !req.Groups.IsZero() {
			u.Groups = slices.Clone(req.Groups.Or([]string{}))
			if u.Groups == nil {
				u.Groups = []string{}
			}
		}
		if !req.Metadata.IsZero() {
			u.Metadata = req.Metadata.Or(nil)
		}

		now := s.now().Unix()
		if status, ok := req.Status.Get(); ok && status != u.Status {
			u.Status = status
			u.DisabledAt = nil
			if status == "disabled" {
				u.DisabledAt = &now
			}
		}
		u.UpdatedAt = now

		s.auditLocked(principalFrom(ctx).actor, "user.updated", u.CustomerID, map[string]string{"user_id": u.ID})
		resp = *u
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) replaceGroups(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.UserGroupsReplaceRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	id := r.PathValue("user_id")

	var resp client.UserResponse
	err := s.locked(func() error {
		u, ok := s.user(id)
		if !ok {
			return notFound("user", id)
		}
		u.Groups = slices.Clone(req.Groups)
		u.UpdatedAt = s.now().Unix()
		s.auditLocked(principalFrom(ctx).actor, "user.groups_replaced", u.CustomerID, req)
		resp = *u
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) resetCredentials(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.ResetCredentialsRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	id := r.PathValue("user_id")

	err := s.locked(func() error {
		u, ok := s.user(id)
		if !ok {
			return notFound("user", id)
		}
		if u.Status == "disabled" {
			return userError(ctx, http.StatusConflict, "user_disabled", "cannot reset credentials of a disabled user",
				errs.Violation{Field: "status", Code: "disabled"})
		}
		s.auditLocked(principalFrom(ctx).actor, "user.credentials_reset", u.CustomerID, map[string]any{"user_id": u.ID, "send_email": req.SendEmail.Or(true)})
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusAccepted, nil)
}

// ----------------------------------------------------------------------------
// API keys and audit
// ----------------------------------------------------------------------------

func (s *Server) createKey(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.AdminCreateKeyRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	var resp client.AdminCreateKeyResponse
	err := s.locked(func() error {
		if _, ok := s.customer(req.CustomerID); !ok {
			return notFound("customer", req.CustomerID)
		}

		var expiresAt *int64
		if exp, ok := req.ExpiresAt.Get(); ok {
			expiresAt = &exp
		}
		k := s.issueKeyLocked(req.CustomerID, req.KeyType.Or("human"), slices.Clone(req.Scopes.Or(nil)), expiresAt)
		s.auditLocked(principalFrom(ctx).actor, "api_key.created", req.CustomerID, map[string]string{"api_key_id": k.info.APIKeyID})
		resp = k.info
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, resp)
}

func (s *Server) revokeKey(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.AdminRevokeKeyRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	err := s.locked(func() error {
		k, ok := find(s.keys, func(k *apiKey) bool { return k.info.APIKeyID == req.APIKeyID })
		if !ok {
			return notFound("api key", req.APIKeyID)
		}
		k.revoked = true
		s.auditLocked(principalFrom(ctx).actor, "api_key.revoked", k.info.CustomerID, req)
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, client.AdminRevokeKeyResponse{APIKeyID: req.APIKeyID})
}

func (s *Server) introspect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	k := principalFrom(ctx).key
	if k == nil {
		return unauthorized()
	}

	var resp client.APIKeyIntrospection
	s.inLock(func() {
		resp = client.APIKeyIntrospection{
			Active:     !k.revoked,
			APIKeyID:   k.info.APIKeyID,
			CustomerID: k.info.CustomerID,
			KeyType:    k.info.KeyType,
			Scopes:     k.info.Scopes,
			ExpiresAt:  k.info.ExpiresAt,
		}
	})

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) listAuditEvents(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := pageParams(r)
	if err != nil {
		return err
	}
	from, to, err := createdRange(r)
	if err != nil {
		return err
	}

	var all []client.AuditEventResponse
	s.inLock(func() {
		for _, e := range s.audit {
			if matches(r, "customer_id", e.CustomerID) &&
				matches(r, "actor", e.Actor) &&
				matches(r, "event", e.Event) &&
				inRange(e.CreatedAt, from, to) {
				all = append(all, e)
			}
		}
	})

	resp := client.AuditEventListResponse{
		Events: page(all, limit, offset),
		Limit:  int64(limit),
		Offset: int64(offset),
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

