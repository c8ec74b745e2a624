package service

import (
	"strconv"
	"time"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/pkg/sanitize"
)

// screenFactory is the type-erased view of a ScreenConfig used by the registry.
type screenFactory interface {
	kind() models.ScreenKind
	canOpen(s models.Session) bool
	validFilter(value string) bool
	entry(s models.Session) (dto.DashboardEntry, bool)
	build(id string, owner models.Session, pageSize int, filter string, deps ScreenDeps) ScreenHandle
}

var statusFilter = []string{string(models.StatusPending), string(models.StatusActive), string(models.StatusInactive)}

var lifecycleOps = []models.Operation{models.OpActivate, models.OpDeactivate, models.OpDelete, models.OpSave}

func withOps(extra ...models.Operation) []models.Operation {
	ops := make([]models.Operation, 0, len(lifecycleOps)+len(extra))
	ops = append(ops, extra...)
	return append(ops, lifecycleOps...)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatVerified(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

var organizationColumns = []dto.ColumnView{
	{Key: "name", Label: "Name"},
	{Key: "email", Label: "Email"},
	{Key: "phone", Label: "Phone"},
	{Key: "status", Label: "Status"},
	{Key: "verified", Label: "Verified"},
}

func organizationRow(o models.Organization) map[string]string {
	return map[string]string{
		"name":     o.Name,
		"email":    o.Email,
		"phone":    o.Phone,
		"status":   string(o.Status),
		"verified": formatVerified(o.IsVerified),
	}
}

func sanitizeOrganization(o models.Organization) models.Organization {
	o.Name = sanitize.Text(o.Name)
	o.Description = sanitize.HTML(o.Description)
	return o
}

func organizationDraft(o models.Organization) dto.OrganizationDraft {
	return dto.OrganizationDraft{
		Name:        o.Name,
		Email:       o.Email,
		Phone:       o.Phone,
		Address:     o.Address,
		Website:     o.Website,
		Description: o.Description,
	}
}

func mergeOrganization(o models.Organization, d dto.OrganizationDraft) models.Organization {
	o.Name = d.Name
	o.Email = d.Email
	o.Phone = d.Phone
	o.Address = d.Address
	o.Website = d.Website
	o.Description = d.Description
	return o
}

func organizationScreen(kind models.ScreenKind, title string, role models.OrganizationRole) *ScreenConfig[models.Organization, dto.OrganizationDraft] {
	return &ScreenConfig[models.Organization, dto.OrganizationDraft]{
		Kind:         kind,
		Title:        title,
		Collection:   "organizations",
		Scope:        map[string]string{"role": string(role)},
		FilterKey:    "status",
		FilterValues: statusFilter,
		Operations:   withOps(models.OpVerify),
		OpenRoles:    []models.UserRole{models.RoleAdmin},
		ManageRoles:  []models.UserRole{models.RoleAdmin},
		Columns:      organizationColumns,
		Row:          organizationRow,
		Sanitize:     sanitizeOrganization,
		NewDraft:     func() dto.OrganizationDraft { return dto.OrganizationDraft{} },
		DraftFrom:    organizationDraft,
		MergeDraft:   mergeOrganization,
		ImageField:   "logo",
	}
}

func userScreen() *ScreenConfig[models.User, dto.UserDraft] {
	return &ScreenConfig[models.User, dto.UserDraft]{
		Kind:       models.KindUsers,
		Title:      "Users",
		Collection: "users",
		FilterKey:  "role",
		FilterValues: []string{
			string(models.RoleCitizen), string(models.RoleCharity),
			string(models.RoleGovernment), string(models.RoleAdmin),
		},
		Operations:  withOps(),
		OpenRoles:   []models.UserRole{models.RoleAdmin},
		ManageRoles: []models.UserRole{models.RoleAdmin},
		Columns: []dto.ColumnView{
			{Key: "name", Label: "Name"},
			{Key: "email", Label: "Email"},
			{Key: "role", Label: "Role"},
			{Key: "status", Label: "Status"},
		},
		Row: func(u models.User) map[string]string {
			return map[string]string{
				"name":   u.Name,
				"email":  u.Email,
				"role":   string(u.Role),
				"status": string(u.Status),
			}
		},
		Sanitize: func(u models.User) models.User {
			u.Name = sanitize.Text(u.Name)
			return u
		},
		NewDraft: func() dto.UserDraft { return dto.UserDraft{} },
		DraftFrom: func(u models.User) dto.UserDraft {
			return dto.UserDraft{Name: u.Name, Email: u.Email, Phone: u.Phone, Role: string(u.Role)}
		},
		MergeDraft: func(u models.User, d dto.UserDraft) models.User {
			u.Name = d.Name
			u.Email = d.Email
			u.Phone = d.Phone
			u.Role = models.UserRole(d.Role)
			return u
		},
	}
}

func incidentScreen() *ScreenConfig[models.Incident, dto.IncidentDraft] {
	return &ScreenConfig[models.Incident, dto.IncidentDraft]{
		Kind:         models.KindIncidents,
		Title:        "Incidents",
		Collection:   "incidents",
		FilterKey:    "status",
		FilterValues: statusFilter,
		Operations:   withOps(models.OpVerify, models.OpCreate),
		ManageRoles:  []models.UserRole{models.RoleGovernment},
		OwnerRoles:   []models.UserRole{models.RoleCitizen},
		CreateRoles:  []models.UserRole{models.RoleCitizen, models.RoleGovernment},
		Columns: []dto.ColumnView{
			{Key: "title", Label: "Title"},
			{Key: "type", Label: "Type"},
			{Key: "severity", Label: "Severity"},
			{Key: "location", Label: "Location"},
			{Key: "status", Label: "Status"},
			{Key: "verified", Label: "Verified"},
			{Key: "reported", Label: "Reported"},
		},
		Row: func(i models.Incident) map[string]string {
			return map[string]string{
				"title":    i.Title,
				"type":     i.Type,
				"severity": string(i.Severity),
				"location": i.Location,
				"status":   string(i.Status),
				"verified": formatVerified(i.IsVerified),
				"reported": formatDate(&i.CreatedAt),
			}
		},
		Sanitize: func(i models.Incident) models.Incident {
			i.Title = sanitize.Text(i.Title)
			i.Location = sanitize.Text(i.Location)
			i.Description = sanitize.HTML(i.Description)
			return i
		},
		NewDraft: func() dto.IncidentDraft { return dto.IncidentDraft{} },
		DraftFrom: func(i models.Incident) dto.IncidentDraft {
			return dto.IncidentDraft{
				Title:       i.Title,
				Description: i.Description,
				Type:        i.Type,
				Severity:    string(i.Severity),
				Location:    i.Location,
			}
		},
		MergeDraft: func(i models.Incident, d dto.IncidentDraft) models.Incident {
			i.Title = d.Title
			i.Description = d.Description
			i.Type = d.Type
			i.Severity = models.IncidentSeverity(d.Severity)
			i.Location = d.Location
			return i
		},
		ImageField: "image",
	}
}

func campaignScreen() *ScreenConfig[models.CharityCampaign, dto.CampaignDraft] {
	return &ScreenConfig[models.CharityCampaign, dto.CampaignDraft]{
		Kind:         models.KindCampaigns,
		Title:        "Charity campaigns",
		Collection:   "campaigns",
		FilterKey:    "status",
		FilterValues: statusFilter,
		Operations:   withOps(models.OpCreate),
		OwnerRoles:   []models.UserRole{models.RoleCharity},
		CreateRoles:  []models.UserRole{models.RoleCharity},
		Columns: []dto.ColumnView{
			{Key: "title", Label: "Title"},
			{Key: "location", Label: "Location"},
			{Key: "start", Label: "Start"},
			{Key: "end", Label: "End"},
			{Key: "volunteers", Label: "Volunteers"},
			{Key: "status", Label: "Status"},
		},
		Row: func(c models.CharityCampaign) map[string]string {
			return map[string]string{
				"title":      c.Title,
				"location":   c.Location,
				"start":      formatDate(c.StartDate),
				"end":        formatDate(c.EndDate),
				"volunteers": strconv.Itoa(c.VolunteersJoined) + "/" + strconv.Itoa(c.VolunteersNeeded),
				"status":     string(c.Status),
			}
		},
		Sanitize: func(c models.CharityCampaign) models.CharityCampaign {
			c.Title = sanitize.Text(c.Title)
			c.Location = sanitize.Text(c.Location)
			c.Description = sanitize.HTML(c.Description)
			return c
		},
		NewDraft: func() dto.CampaignDraft { return dto.CampaignDraft{VolunteersNeeded: 1} },
		DraftFrom: func(c models.CharityCampaign) dto.CampaignDraft {
			return dto.CampaignDraft{
				Title:            c.Title,
				Description:      c.Description,
				Location:         c.Location,
				StartDate:        c.StartDate,
				EndDate:          c.EndDate,
				VolunteersNeeded: c.VolunteersNeeded,
			}
		},
		MergeDraft: func(c models.CharityCampaign, d dto.CampaignDraft) models.CharityCampaign {
			c.Title = d.Title
			c.Description = d.Description
			c.Location = d.Location
			c.StartDate = d.StartDate
			c.EndDate = d.EndDate
			c.VolunteersNeeded = d.VolunteersNeeded
			return c
		},
		ImageField: "image",
	}
}

func announcementScreen() *ScreenConfig[models.Announcement, dto.AnnouncementDraft] {
	return &ScreenConfig[models.Announcement, dto.AnnouncementDraft]{
		Kind:         models.KindAnnouncements,
		Title:        "Announcements",
		Collection:   "announcements",
		FilterKey:    "status",
		FilterValues: statusFilter,
		Operations:   withOps(models.OpCreate),
		OwnerRoles:   []models.UserRole{models.RoleGovernment},
		CreateRoles:  []models.UserRole{models.RoleGovernment},
		Columns: []dto.ColumnView{
			{Key: "title", Label: "Title"},
			{Key: "audience", Label: "Audience"},
			{Key: "priority", Label: "Priority"},
			{Key: "status", Label: "Status"},
			{Key: "published", Label: "Published"},
		},
		Row: func(a models.Announcement) map[string]string {
			return map[string]string{
				"title":     a.Title,
				"audience":  a.Audience,
				"priority":  a.Priority,
				"status":    string(a.Status),
				"published": formatDate(&a.CreatedAt),
			}
		},
		Sanitize: func(a models.Announcement) models.Announcement {
			a.Title = sanitize.Text(a.Title)
			a.Content = sanitize.HTML(a.Content)
			return a
		},
		NewDraft: func() dto.AnnouncementDraft { return dto.AnnouncementDraft{Audience: "all", Priority: "normal"} },
		DraftFrom: func(a models.Announcement) dto.AnnouncementDraft {
			return dto.AnnouncementDraft{Title: a.Title, Content: a.Content, Audience: a.Audience, Priority: a.Priority}
		},
		MergeDraft: func(a models.Announcement, d dto.AnnouncementDraft) models.Announcement {
			a.Title = d.Title
			a.Content = d.Content
			a.Audience = d.Audience
			a.Priority = d.Priority
			return a
		},
	}
}

func newsScreen() *ScreenConfig[models.NewsPost, dto.NewsDraft] {
	return &ScreenConfig[models.NewsPost, dto.NewsDraft]{
		Kind:         models.KindNews,
		Title:        "News",
		Collection:   "news",
		FilterKey:    "category",
		FilterValues: []string{"update", "alert", "story", "relief"},
		Operations:   []models.Operation{models.OpDelete, models.OpSave, models.OpCreate},
		OwnerRoles:   []models.UserRole{models.RoleGovernment},
		CreateRoles:  []models.UserRole{models.RoleGovernment},
		Columns: []dto.ColumnView{
			{Key: "title", Label: "Title"},
			{Key: "category", Label: "Category"},
			{Key: "published", Label: "Published"},
		},
		Row: func(n models.NewsPost) map[string]string {
			return map[string]string{
				"title":     n.Title,
				"category":  n.Category,
				"published": formatDate(&n.CreatedAt),
			}
		},
		Sanitize: func(n models.NewsPost) models.NewsPost {
			n.Title = sanitize.Text(n.Title)
			n.Content = sanitize.HTML(n.Content)
			return n
		},
		NewDraft: func() dto.NewsDraft { return dto.NewsDraft{} },
		DraftFrom: func(n models.NewsPost) dto.NewsDraft {
			return dto.NewsDraft{Title: n.Title, Content: n.Content, Category: n.Category, ImageURL: n.ImageURL}
		},
		MergeDraft: func(n models.NewsPost, d dto.NewsDraft) models.NewsPost {
			n.Title = d.Title
			n.Content = d.Content
			n.Category = d.Category
			n.ImageURL = d.ImageURL
			return n
		},
		ImageField: "image",
	}
}

// defaultCatalog returns the screens of the console in dashboard order.
func defaultCatalog() []screenFactory {
	return []screenFactory{
		organizationScreen(models.KindCharities, "Charities", models.OrganizationCharity),
		organizationScreen(models.KindAgencies, "Government agencies", models.OrganizationGovernment),
		userScreen(),
		incidentScreen(),
		campaignScreen(),
		announcementScreen(),
		newsScreen(),
	}
}
