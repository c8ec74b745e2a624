package dto

import "github.com/cdrp/console-gateway/internal/models"

// ListEnvelope is the backend response of GET /{collection}. TotalCount is a
// pointer so a missing field can be told apart from zero.
type ListEnvelope[T any] struct {
	Data        []T  `json:"data"`
	TotalCount  *int `json:"totalCount"`
	SearchCount *int `json:"searchCount,omitempty"`
}

// DetailEnvelope is the backend response of GET /{collection}/{id}.
type DetailEnvelope[T any] struct {
	Data *T `json:"data"`
}

// MutationEnvelope is returned by PATCH, PUT, POST and DELETE calls.
type MutationEnvelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusPatch is the body of an activate or deactivate call.
type StatusPatch struct {
	Status models.EntityStatus `json:"status"`
}
