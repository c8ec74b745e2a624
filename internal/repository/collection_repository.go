package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// BackendDoer executes backend requests.
type BackendDoer interface {
	Do(ctx context.Context, req backend.Request) ([]byte, error)
}

// MutationResult is the decoded outcome of a successful mutation. Entity is
// set when the backend echoed the record; Ambiguous is set when it answered
// with a payload the gateway cannot trust for a local patch.
type MutationResult[T any] struct {
	Entity    *T
	Ambiguous bool
}

// CollectionRepository talks to one backend collection endpoint.
type CollectionRepository[T models.Entity[T]] struct {
	client     BackendDoer
	collection string
}

// NewCollectionRepository constructs a repository for collection.
func NewCollectionRepository[T models.Entity[T]](client BackendDoer, collection string) *CollectionRepository[T] {
	return &CollectionRepository[T]{client: client, collection: collection}
}

// Collection returns the backend collection name.
func (r *CollectionRepository[T]) Collection() string { return r.collection }

// List fetches one page. scope holds fixed params such as role=charity.
func (r *CollectionRepository[T]) List(ctx context.Context, token string, q models.ListQuery, filterKey string, scope map[string]string) (models.ListResult[T], error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.PageSize))
	params.Set("search", q.Search)
	if filterKey != "" && q.Filter != "" {
		params.Set(filterKey, q.Filter)
	}
	for k, v := range scope {
		params.Set(k, v)
	}

	body, err := r.client.Do(ctx, backend.Request{
		Method:     http.MethodGet,
		Path:       "/" + r.collection,
		Query:      params,
		Token:      token,
		Collection: r.collection,
	})
	if err != nil {
		return models.ListResult[T]{}, err
	}

	var env dto.ListEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return models.ListResult[T]{}, decodeError(err, "decode %s list", r.collection)
	}
	if env.TotalCount == nil {
		return models.ListResult[T]{}, decodeError(nil, "%s list response has no totalCount", r.collection)
	}
	for i, item := range env.Data {
		if item.EntityID() == "" {
			return models.ListResult[T]{}, decodeError(nil, "%s list item %d has no id", r.collection, i)
		}
	}

	items := env.Data
	if items == nil {
		items = []T{}
	}
	total := *env.TotalCount
	if total < 0 {
		total = 0
	}
	return models.ListResult[T]{Items: items, TotalCount: total, SearchCount: env.SearchCount}, nil
}

// Get fetches a single record.
func (r *CollectionRepository[T]) Get(ctx context.Context, token, id string) (T, error) {
	var zero T
	body, err := r.client.Do(ctx, backend.Request{
		Method:     http.MethodGet,
		Path:       r.itemPath(id),
		Token:      token,
		Collection: r.collection,
	})
	if err != nil {
		return zero, err
	}

	var env dto.DetailEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, decodeError(err, "decode %s detail", r.collection)
	}
	if env.Data == nil {
		return zero, decodeError(nil, "%s detail response has no data", r.collection)
	}
	if (*env.Data).EntityID() != id {
		return zero, decodeError(nil, "%s detail response is for another record", r.collection)
	}
	return *env.Data, nil
}

// PatchStatus sets the activity status of a record.
func (r *CollectionRepository[T]) PatchStatus(ctx context.Context, token, id string, status models.EntityStatus) (MutationResult[T], error) {
	return r.mutate(ctx, id, backend.Request{
		Method:   http.MethodPatch,
		Path:     r.itemPath(id),
		Token:    token,
		JSONBody: dto.StatusPatch{Status: status},
	})
}

// Verify marks a record verified.
func (r *CollectionRepository[T]) Verify(ctx context.Context, token, id string) (MutationResult[T], error) {
	return r.mutate(ctx, id, backend.Request{
		Method: http.MethodPatch,
		Path:   "/" + r.collection + "/verify/" + url.PathEscape(id),
		Token:  token,
	})
}

// Update replaces the editable fields of a record. A non-nil image switches the
// request to multipart.
func (r *CollectionRepository[T]) Update(ctx context.Context, token, id string, payload interface{}, image *backend.FileUpload) (MutationResult[T], error) {
	req, err := r.writeRequest(http.MethodPut, r.itemPath(id), token, payload, image)
	if err != nil {
		return MutationResult[T]{}, err
	}
	return r.mutate(ctx, id, req)
}

// Create posts a new record. The expected id is unknown, so any echoed record
// with an id is trusted.
func (r *CollectionRepository[T]) Create(ctx context.Context, token string, payload interface{}, image *backend.FileUpload) (MutationResult[T], error) {
	req, err := r.writeRequest(http.MethodPost, "/"+r.collection, token, payload, image)
	if err != nil {
		return MutationResult[T]{}, err
	}
	return r.mutate(ctx, "", req)
}

// Delete removes a record.
func (r *CollectionRepository[T]) Delete(ctx context.Context, token, id string) (MutationResult[T], error) {
	return r.mutate(ctx, id, backend.Request{
		Method: http.MethodDelete,
		Path:   r.itemPath(id),
		Token:  token,
	})
}

func (r *CollectionRepository[T]) itemPath(id string) string {
	return "/" + r.collection + "/" + url.PathEscape(id)
}

func (r *CollectionRepository[T]) writeRequest(method, path, token string, payload interface{}, image *backend.FileUpload) (backend.Request, error) {
	req := backend.Request{Method: method, Path: path, Token: token}
	if image == nil {
		req.JSONBody = payload
		return req, nil
	}
	fields, err := formFields(payload)
	if err != nil {
		return backend.Request{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode form")
	}
	req.Multipart = &backend.Multipart{Fields: fields, File: image}
	return req, nil
}

func (r *CollectionRepository[T]) mutate(ctx context.Context, expectedID string, req backend.Request) (MutationResult[T], error) {
	req.Collection = r.collection
	body, err := r.client.Do(ctx, req)
	if err != nil {
		return MutationResult[T]{}, err
	}
	if len(body) == 0 {
		return MutationResult[T]{}, nil
	}

	var env dto.MutationEnvelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return MutationResult[T]{Ambiguous: true}, nil
	}
	if !env.Success {
		return MutationResult[T]{}, appErrors.Clone(appErrors.ErrMutationRejected, env.Message)
	}
	if env.Data == nil {
		return MutationResult[T]{}, nil
	}

	gotID := (*env.Data).EntityID()
	if gotID == "" || (expectedID != "" && gotID != expectedID) {
		return MutationResult[T]{Ambiguous: true}, nil
	}
	return MutationResult[T]{Entity: env.Data}, nil
}

// formFields flattens a draft into multipart fields. Strings are sent as is,
// other values as their JSON text; nulls are omitted.
func formFields(payload interface{}) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("form payload must be an object: %w", err)
	}

	fields := make(map[string]string, len(values))
	for key, value := range values {
		text := string(value)
		if text == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[key] = s
			continue
		}
		fields[key] = text
	}
	return fields, nil
}

func decodeError(err error, format string, args ...interface{}) *appErrors.Error {
	msg := fmt.Sprintf(format, args...)
	if err == nil {
		return appErrors.Clone(appErrors.ErrDecode, msg)
	}
	return appErrors.Wrap(err, appErrors.ErrDecode.Code, appErrors.ErrDecode.Status, msg)
}
