package dto

import (
	"time"

	"github.com/cdrp/console-gateway/internal/models"
)

// OpenScreenRequest mounts a new screen.
type OpenScreenRequest struct {
	Kind     models.ScreenKind `json:"kind" binding:"required"`
	PageSize int               `json:"pageSize" binding:"omitempty,min=1"`
	Filter   string            `json:"filter"`
}

// SearchRequest submits a search term; an empty term clears the search.
type SearchRequest struct {
	Term string `json:"term"`
}

// FilterRequest sets the screen filter; an empty value clears it.
type FilterRequest struct {
	Value string `json:"value"`
}

// PageRequest jumps to a page.
type PageRequest struct {
	Page int `json:"page" binding:"required,min=1"`
}

// ScreenView is the full view state of a mounted screen.
type ScreenView struct {
	ID         string            `json:"id"`
	Kind       models.ScreenKind `json:"kind"`
	Title      string            `json:"title"`
	Mode       models.ViewMode   `json:"mode"`
	Loading    bool              `json:"loading"`
	Error      *ErrorView        `json:"error,omitempty"`
	Query      QueryView         `json:"query"`
	Columns    []ColumnView      `json:"columns"`
	Rows       []RowView         `json:"rows"`
	Pagination models.Pagination `json:"pagination"`
	Selected   interface{}       `json:"selected,omitempty"`
	Draft      *DraftView        `json:"draft,omitempty"`
	CanCreate  bool              `json:"canCreate"`
}

// ErrorView is the last fetch or navigation error kept on the screen.
type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryView echoes the screen's query state and filter options.
type QueryView struct {
	Page          int      `json:"page"`
	PageSize      int      `json:"pageSize"`
	Search        string   `json:"search"`
	Filter        string   `json:"filter"`
	FilterKey     string   `json:"filterKey,omitempty"`
	FilterOptions []string `json:"filterOptions,omitempty"`
}

// ColumnView describes one table column.
type ColumnView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// RowView is one rendered list row.
type RowView struct {
	ID         string              `json:"id"`
	Cells      map[string]string   `json:"cells"`
	Status     models.EntityStatus `json:"status"`
	IsVerified bool                `json:"isVerified"`
	Busy       bool                `json:"busy"`
	Actions    []models.Operation  `json:"actions"`
}

// DraftView is the form state in edit or create mode.
type DraftView struct {
	EntityID  string            `json:"entityId,omitempty"`
	Values    interface{}       `json:"values"`
	Errors    map[string]string `json:"errors"`
	FormError string            `json:"formError,omitempty"`
	Image     *ImageView        `json:"image,omitempty"`
}

// ImageView summarises an attached upload.
type ImageView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// DashboardEntry is one screen a role may open.
type DashboardEntry struct {
	Kind      models.ScreenKind `json:"kind"`
	Title     string            `json:"title"`
	CanCreate bool              `json:"canCreate"`
}

// DashboardResponse lists the screens available to the session role.
type DashboardResponse struct {
	Role    models.UserRole  `json:"role"`
	Screens []DashboardEntry `json:"screens"`
}

// RegistryStats summarises mounted screens for administrators.
type RegistryStats struct {
	OpenScreens int            `json:"openScreens"`
	Sessions    int            `json:"sessions"`
	ByKind      map[string]int `json:"byKind"`
}

// ExportResponse describes a generated export and its download link.
type ExportResponse struct {
	ExportID  string    `json:"exportId"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	RowCount  int       `json:"rowCount"`
}
