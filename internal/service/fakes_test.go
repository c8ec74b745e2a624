package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

var (
	adminSession   = models.Session{UserID: "admin-1", Role: models.RoleAdmin, Token: "admin-token"}
	charityASess   = models.Session{UserID: "charityA", Role: models.RoleCharity, Token: "charity-a-token"}
	charityBSess   = models.Session{UserID: "charityB", Role: models.RoleCharity, Token: "charity-b-token"}
	citizenSession = models.Session{UserID: "citizen-1", Role: models.RoleCitizen, Token: "citizen-token"}
)

// fakeCDRP is an in-memory CDRP backend speaking the collection protocol.
type fakeCDRP struct {
	mu       sync.Mutex
	records  map[string][]map[string]interface{}
	calls    []string
	failures map[string]error
	created  int
}

func newFakeCDRP() *fakeCDRP {
	return &fakeCDRP{records: map[string][]map[string]interface{}{}, failures: map[string]error{}}
}

func (f *fakeCDRP) seed(collection string, recs ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[collection] = append(f.records[collection], recs...)
}

func (f *fakeCDRP) seedOrganizations(n int) {
	for i := 1; i <= n; i++ {
		f.seed("organizations", map[string]interface{}{
			"id":         "org" + strconv.Itoa(i),
			"name":       fmt.Sprintf("Charity %02d", i),
			"email":      fmt.Sprintf("charity%d@example.org", i),
			"role":       "charity",
			"status":     "pending",
			"isVerified": false,
		})
	}
}

func (f *fakeCDRP) failOn(method, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = err
}

func (f *fakeCDRP) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeCDRP) countCalls(method string) int {
	n := 0
	for _, c := range f.callLog() {
		if strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

func (f *fakeCDRP) record(collection, id string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[collection] {
		if rec["id"] == id {
			return rec
		}
	}
	return nil
}

func (f *fakeCDRP) Do(_ context.Context, req backend.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := req.Method + " " + req.Path
	f.calls = append(f.calls, key)
	if err, ok := f.failures[key]; ok {
		return nil, err
	}

	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	collection := parts[0]
	switch {
	case req.Method == http.MethodGet && len(parts) == 1:
		return f.list(collection, req)
	case req.Method == http.MethodGet && len(parts) == 2:
		rec, _ := f.find(collection, parts[1])
		if rec == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Record not found")
		}
		return json.Marshal(map[string]interface{}{"data": rec})
	case req.Method == http.MethodPatch && len(parts) == 3 && parts[1] == "verify":
		rec, _ := f.find(collection, parts[2])
		if rec == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Record not found")
		}
		rec["isVerified"] = true
		if rec["status"] == "pending" {
			rec["status"] = "active"
		}
		return json.Marshal(map[string]interface{}{"success": true})
	case req.Method == http.MethodPatch && len(parts) == 2:
		rec, _ := f.find(collection, parts[1])
		if rec == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Record not found")
		}
		patch, _ := req.JSONBody.(dto.StatusPatch)
		rec["status"] = string(patch.Status)
		return json.Marshal(map[string]interface{}{"success": true, "data": rec})
	case req.Method == http.MethodPut && len(parts) == 2:
		rec, _ := f.find(collection, parts[1])
		if rec == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Record not found")
		}
		mergeBody(rec, req)
		return json.Marshal(map[string]interface{}{"success": true, "data": rec})
	case req.Method == http.MethodPost && len(parts) == 1:
		f.created++
		rec := map[string]interface{}{
			"id":         fmt.Sprintf("%s-new-%d", collection, f.created),
			"status":     "pending",
			"isVerified": false,
		}
		mergeBody(rec, req)
		f.records[collection] = append([]map[string]interface{}{rec}, f.records[collection]...)
		return json.Marshal(map[string]interface{}{"success": true, "data": rec})
	case req.Method == http.MethodDelete && len(parts) == 2:
		_, idx := f.find(collection, parts[1])
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Record not found")
		}
		recs := f.records[collection]
		f.records[collection] = append(recs[:idx:idx], recs[idx+1:]...)
		return json.Marshal(map[string]interface{}{"success": true})
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no route")
}

func (f *fakeCDRP) find(collection, id string) (map[string]interface{}, int) {
	for i, rec := range f.records[collection] {
		if rec["id"] == id {
			return rec, i
		}
	}
	return nil, -1
}

func (f *fakeCDRP) list(collection string, req backend.Request) ([]byte, error) {
	matched := make([]map[string]interface{}, 0)
	for _, rec := range f.records[collection] {
		keep := true
		for key, values := range req.Query {
			switch key {
			case "page", "limit", "search":
				continue
			}
			if fmt.Sprint(rec[key]) != values[0] {
				keep = false
			}
		}
		if keep {
			matched = append(matched, rec)
		}
	}
	total := len(matched)

	search := strings.ToLower(req.Query.Get("search"))
	if search != "" {
		found := make([]map[string]interface{}, 0)
		for _, rec := range matched {
			text := strings.ToLower(fmt.Sprint(rec["name"], " ", rec["title"], " ", rec["email"]))
			if strings.Contains(text, search) {
				found = append(found, rec)
			}
		}
		matched = found
	}

	page, _ := strconv.Atoi(req.Query.Get("page"))
	limit, _ := strconv.Atoi(req.Query.Get("limit"))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	payload := map[string]interface{}{"data": matched[start:end], "totalCount": total}
	if search != "" {
		payload["searchCount"] = len(matched)
	}
	return json.Marshal(payload)
}

func mergeBody(rec map[string]interface{}, req backend.Request) {
	if req.Multipart != nil {
		for k, v := range req.Multipart.Fields {
			var decoded interface{}
			if err := json.Unmarshal([]byte(v), &decoded); err == nil {
				rec[k] = decoded
				continue
			}
			rec[k] = v
		}
		if req.Multipart.File != nil {
			rec["imageUrl"] = "/uploads/" + req.Multipart.File.Filename
		}
		return
	}
	raw, _ := json.Marshal(req.JSONBody)
	var values map[string]interface{}
	_ = json.Unmarshal(raw, &values)
	for k, v := range values {
		rec[k] = v
	}
}

func newTestRegistry(t *testing.T, fb *fakeCDRP, scheduler Scheduler) *ScreenRegistry {
	t.Helper()
	return NewScreenRegistry(RegistryConfig{DefaultPageSize: 10, MaxPageSize: 50}, ScreenDeps{
		Client:    fb,
		Metrics:   NewMetricsService(),
		Scheduler: scheduler,
	})
}

func openScreen(t *testing.T, reg *ScreenRegistry, s models.Session, kind models.ScreenKind, pageSize int) ScreenHandle {
	t.Helper()
	screen, err := reg.Open(context.Background(), s, dto.OpenScreenRequest{Kind: kind, PageSize: pageSize})
	require.NoError(t, err)
	return screen
}

func rowIDs(view dto.ScreenView) []string {
	ids := make([]string, len(view.Rows))
	for i, row := range view.Rows {
		ids[i] = row.ID
	}
	return ids
}

func findRow(t *testing.T, view dto.ScreenView, id string) dto.RowView {
	t.Helper()
	for _, row := range view.Rows {
		if row.ID == id {
			return row
		}
	}
	t.Fatalf("row %s not on screen", id)
	return dto.RowView{}
}
