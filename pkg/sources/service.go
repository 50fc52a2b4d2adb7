package sources

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/secrets"
	"github.com/txn2/source-wizard/pkg/source"
)

// ValidationError reports invalid input to Create or Update.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// CreateRequest is the input for creating a source.
type CreateRequest struct {
	Name         string            `json:"source_name"`
	Type         string            `json:"source_type"`
	Description  string            `json:"description,omitempty"`
	CacheTimeout *int              `json:"cache_timeout,omitempty"`
	Values       map[string]string `json:"values"`
	ExternalURL  string            `json:"external_url,omitempty"`
}

// UpdateRequest changes a source. Nil fields are left unchanged. Values, when
// set, replaces every panel value and is validated again.
type UpdateRequest struct {
	Name         *string           `json:"source_name,omitempty"`
	Description  *string           `json:"description,omitempty"`
	CacheTimeout *int              `json:"cache_timeout,omitempty"`
	Values       map[string]string `json:"values,omitempty"`
}

// Service implements source operations on top of a Store.
type Service struct {
	store    Store
	box      *secrets.Box
	registry *source.Registry
	now      func() time.Time
}

// NewService creates a Service. A nil registry uses source.DefaultRegistry.
func NewService(store Store, box *secrets.Box, registry *source.Registry) *Service {
	if registry == nil {
		registry = source.DefaultRegistry()
	}
	return &Service{store: store, box: box, registry: registry, now: time.Now}
}

// List returns matching sources and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Source, int, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, 0, &ValidationError{Err: err}
	}
	return s.store.List(ctx, f)
}

// Get returns a source by id.
func (s *Service) Get(ctx context.Context, id int64) (*Source, error) {
	return s.store.Get(ctx, id)
}

// Create validates the panel values for the requested type, seals the
// credentials and stores the source with the caller as owner.
func (s *Service) Create(ctx context.Context, user *auth.UserContext, req CreateRequest) (*Source, error) {
	if user == nil {
		return nil, ErrForbidden
	}
	typ, ok := s.registry.Resolve(req.Type)
	if !ok {
		return nil, &ValidationError{Err: fmt.Errorf("unknown source type %q", req.Type)}
	}
	panel, ok := s.registry.Get(typ)
	if !ok {
		return nil, &ValidationError{Err: fmt.Errorf("source type %q cannot be configured yet", typ)}
	}

	values := source.Defaults(panel, req.Name)
	for k, v := range req.Values {
		values[k] = v
	}
	if err := panel.Validate(values); err != nil {
		return nil, &ValidationError{Err: err}
	}

	settings, creds := source.Credentials(panel, values)
	sealed, err := s.seal(creds)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(values[source.FieldSourceName])
	now := s.now().UTC()
	src := &Source{
		Name:         name,
		Type:         typ,
		Description:  req.Description,
		CacheTimeout: req.CacheTimeout,
		Extra:        map[string]any{},
		Settings:     settings,
		Credentials:  sealed,
		ExternalURL:  req.ExternalURL,
		Owners:       []string{user.UserID},
		CreatedBy:    user.UserID,
		ChangedBy:    user.UserID,
		CreatedOn:    now,
		ChangedOn:    now,
	}
	id, err := s.store.Create(ctx, src)
	if err != nil {
		return nil, err
	}
	src.ID = id
	return src, nil
}

// Update applies req to the source. The caller must own it or be an admin.
func (s *Service) Update(ctx context.Context, user *auth.UserContext, id int64, req UpdateRequest) (*Source, error) {
	src, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if src.IsManagedExternally {
		return nil, &ValidationError{Err: errors.New("source is managed externally")}
	}

	if req.Name != nil {
		src.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		src.Description = *req.Description
	}
	if req.CacheTimeout != nil {
		src.CacheTimeout = req.CacheTimeout
	}
	if req.Values != nil {
		if err := s.replaceValues(src, req.Values); err != nil {
			return nil, err
		}
	}
	if src.Name == "" {
		return nil, &ValidationError{Err: errors.New("source name is required")}
	}

	src.ChangedBy = user.UserID
	src.ChangedOn = s.now().UTC()
	if err := s.store.Update(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Service) replaceValues(src *Source, values map[string]string) error {
	panel, ok := s.registry.Get(src.Type)
	if !ok {
		return &ValidationError{Err: fmt.Errorf("source type %q cannot be configured yet", src.Type)}
	}
	merged := source.Defaults(panel, src.Name)
	for k, v := range values {
		merged[k] = v
	}
	if err := panel.Validate(merged); err != nil {
		return &ValidationError{Err: err}
	}
	settings, creds := source.Credentials(panel, merged)
	sealed, err := s.seal(creds)
	if err != nil {
		return err
	}
	src.Name = strings.TrimSpace(merged[source.FieldSourceName])
	src.Settings = settings
	src.Credentials = sealed
	return nil
}

// Delete removes the source. The caller must own it or be an admin.
func (s *Service) Delete(ctx context.Context, user *auth.UserContext, id int64) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Credentials returns the decrypted credentials of a source the caller owns.
func (s *Service) Credentials(ctx context.Context, user *auth.UserContext, id int64) (map[string]string, error) {
	src, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if s.box == nil {
		return nil, errors.New("credential encryption is not configured")
	}
	return s.box.OpenMap(src.Credentials)
}

// SaveMetadata stores the column list from payload in the source's extra
// JSON. Each column's name is copied to column_name.
func (s *Service) SaveMetadata(ctx context.Context, user *auth.UserContext, id int64, payload map[string]any) (*Source, error) {
	src, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}

	columns, _ := payload["columns"].([]any)
	if columns == nil {
		columns = []any{}
	}
	for _, c := range columns {
		if col, ok := c.(map[string]any); ok {
			if name, ok := col["name"]; ok {
				col["column_name"] = name
			}
		}
	}
	if src.Extra == nil {
		src.Extra = map[string]any{}
	}
	src.Extra["columns"] = columns
	src.ChangedBy = user.UserID
	src.ChangedOn = s.now().UTC()

	if err := s.store.Update(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// ChangedSince returns the user's sources changed at or after the given
// epoch milliseconds.
func (s *Service) ChangedSince(ctx context.Context, userID string, lastUpdatedMS int64) ([]Source, error) {
	return s.store.ChangedSince(ctx, userID, time.UnixMilli(lastUpdatedMS).UTC())
}

func (s *Service) owned(ctx context.Context, user *auth.UserContext, id int64) (*Source, error) {
	src, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrForbidden
	}
	if !user.IsAdmin() && !slices.Contains(src.Owners, user.UserID) {
		return nil, ErrForbidden
	}
	return src, nil
}

func (s *Service) seal(creds map[string]string) ([]byte, error) {
	if len(creds) == 0 {
		return nil, nil
	}
	if s.box == nil {
		return nil, errors.New("credential encryption is not configured")
	}
	sealed, err := s.box.SealMap(creds)
	if err != nil {
		return nil, fmt.Errorf("sealing credentials: %w", err)
	}
	return sealed, nil
}
