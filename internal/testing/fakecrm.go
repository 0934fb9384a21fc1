package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/givecrm/internal/shared"
)

const (
	FakeSiteKey        = "test-site-key"
	FakeAPIKey         = "test-api-key"
	FakeLocalAreaField = "custom_12"
)

// FakeCall is one request received by [FakeCRM].
type FakeCall struct {
	Entity string
	Action string
	Params map[string]any
}

// FakeCRM is an in-memory CRM REST endpoint backed by [httptest.Server].
//
// It understands Contact.get/create, Contribution.create and Membership.get/create. Contacts,
// contributions and memberships are numbered from separate ranges (100, 500, 900) so ids from
// different entities never collide in assertions. Contribution.create answers with a values
// list; every other call answers with an id and a values map.
type FakeCRM struct {
	Server *httptest.Server

	mu            sync.Mutex
	calls         []FakeCall
	failures      map[string]string
	contacts      map[int]map[string]any
	contributions map[int]map[string]any
	memberships   map[int]map[string]any
	nextContact   int
	nextContrib   int
	nextMember    int
	Delay         time.Duration // applied to Contact.get; widens race windows in concurrency tests
}

// NewFakeCRM starts a [FakeCRM] that is closed when the test finishes.
func NewFakeCRM(t *testing.T) *FakeCRM {
	t.Helper()

	f := &FakeCRM{
		failures:      make(map[string]string),
		contacts:      make(map[int]map[string]any),
		contributions: make(map[int]map[string]any),
		memberships:   make(map[int]map[string]any),
		nextContact:   100,
		nextContrib:   500,
		nextMember:    900,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns a [shared.CRMConfig] pointing at the fake.
func (f *FakeCRM) Config() shared.CRMConfig {
	return shared.CRMConfig{
		BaseURL:        f.Server.URL,
		SiteKey:        FakeSiteKey,
		APIKey:         FakeAPIKey,
		LocalAreaField: FakeLocalAreaField,
	}
}

// FailOn makes every Entity.action call return is_error with message.
func (f *FakeCRM) FailOn(entity, action, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[entity+"."+action] = message
}

// SeedContact stores a contact and returns its id.
func (f *FakeCRM) SeedContact(email string, fields map[string]any) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextContact++
	id := f.nextContact
	rec := map[string]any{"id": id, "contact_id": id, "email": email, "contact_type": "Individual"}
	for k, v := range fields {
		rec[k] = v
	}
	f.contacts[id] = rec
	return id
}

// SeedMembership stores a membership window and returns its id.
func (f *FakeCRM) SeedMembership(contactID, typeID int, start, end time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextMember++
	id := f.nextMember
	f.memberships[id] = map[string]any{
		"id":                 id,
		"contact_id":         contactID,
		"membership_type_id": typeID,
		"join_date":          start.Format("2006-01-02"),
		"start_date":         start.Format("2006-01-02"),
		"end_date":           end.Format("2006-01-02"),
	}
	return id
}

// Calls returns the recorded calls for entity and action. Empty arguments match anything.
func (f *FakeCRM) Calls(entity, action string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []FakeCall
	for _, c := range f.calls {
		if (entity == "" || c.Entity == entity) && (action == "" || c.Action == action) {
			calls = append(calls, c)
		}
	}
	return calls
}

// Contact returns a copy of the stored contact, or nil.
func (f *FakeCRM) Contact(id int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRecord(f.contacts[id])
}

// ContactByEmail returns a copy of the first stored contact with email, or nil.
func (f *FakeCRM) ContactByEmail(email string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range sortedIDs(f.contacts) {
		if strings.EqualFold(fmt.Sprint(f.contacts[id]["email"]), email) {
			return copyRecord(f.contacts[id])
		}
	}
	return nil
}

// ContactCount returns the number of stored contacts.
func (f *FakeCRM) ContactCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contacts)
}

// Contribution returns a copy of the stored contribution, or nil.
func (f *FakeCRM) Contribution(id int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRecord(f.contributions[id])
}

// Membership returns a copy of the stored membership, or nil.
func (f *FakeCRM) Membership(id int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyRecord(f.memberships[id])
}

func (f *FakeCRM) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.PostForm.Get("key") != FakeSiteKey || r.PostForm.Get("api_key") != FakeAPIKey {
		writeFake(w, map[string]any{"is_error": 1, "error_message": "Failed to authenticate key"})
		return
	}

	entity, action := r.PostForm.Get("entity"), r.PostForm.Get("action")
	params := map[string]any{}
	if raw := r.PostForm.Get("json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			writeFake(w, map[string]any{"is_error": 1, "error_message": "invalid json"})
			return
		}
	}

	if entity == "Contact" && action == "get" && f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FakeCall{Entity: entity, Action: action, Params: params})

	if msg, ok := f.failures[entity+"."+action]; ok {
		writeFake(w, map[string]any{"is_error": 1, "error_message": msg})
		return
	}

	switch entity + "." + action {
	case "Contact.get":
		writeFake(w, f.getContacts(params))
	case "Contact.create":
		writeFake(w, f.saveContact(params))
	case "Contribution.create":
		writeFake(w, f.saveContribution(params))
	case "Membership.get":
		writeFake(w, f.getMemberships(params))
	case "Membership.create":
		writeFake(w, f.saveMembership(params))
	default:
		writeFake(w, map[string]any{"is_error": 1, "error_message": fmt.Sprintf("API (%s, %s) does not exist", entity, action)})
	}
}

func (f *FakeCRM) getContacts(params map[string]any) map[string]any {
	email := strings.ToLower(fmt.Sprint(params["email"]))

	var matches []map[string]any
	for _, id := range sortedIDs(f.contacts) {
		rec := f.contacts[id]
		if strings.ToLower(fmt.Sprint(rec["email"])) == email {
			matches = append(matches, rec)
		}
	}
	return mapResult(matches)
}

func (f *FakeCRM) saveContact(params map[string]any) map[string]any {
	if id, ok := fakeInt(params["id"]); ok {
		rec, exists := f.contacts[id]
		if !exists {
			return map[string]any{"is_error": 1, "error_message": fmt.Sprintf("contact %d not found", id)}
		}
		for k, v := range params {
			if k != "id" {
				rec[k] = v
			}
		}
		return mapResult([]map[string]any{rec})
	}

	if fmt.Sprint(params["contact_type"]) != "Individual" {
		return map[string]any{"is_error": 1, "error_message": "Mandatory key(s) missing from params array: contact_type"}
	}

	f.nextContact++
	id := f.nextContact
	rec := map[string]any{"id": id, "contact_id": id}
	for k, v := range params {
		rec[k] = v
	}
	f.contacts[id] = rec
	return mapResult([]map[string]any{rec})
}

func (f *FakeCRM) saveContribution(params map[string]any) map[string]any {
	contactID, ok := fakeInt(params["contact_id"])
	if !ok || f.contacts[contactID] == nil {
		return map[string]any{"is_error": 1, "error_message": "contact_id is not valid"}
	}
	if _, ok := fakeInt(params["financial_type_id"]); !ok {
		return map[string]any{"is_error": 1, "error_message": "Mandatory key(s) missing from params array: financial_type_id"}
	}

	f.nextContrib++
	id := f.nextContrib
	rec := map[string]any{"id": id}
	for k, v := range params {
		rec[k] = v
	}
	f.contributions[id] = rec
	return map[string]any{"is_error": 0, "count": 1, "values": []any{rec}}
}

func (f *FakeCRM) getMemberships(params map[string]any) map[string]any {
	contactID, _ := fakeInt(params["contact_id"])
	typeID, hasType := fakeInt(params["membership_type_id"])

	var matches []map[string]any
	for _, id := range sortedIDs(f.memberships) {
		rec := f.memberships[id]
		if cid, _ := fakeInt(rec["contact_id"]); cid != contactID {
			continue
		}
		if tid, _ := fakeInt(rec["membership_type_id"]); hasType && tid != typeID {
			continue
		}
		matches = append(matches, rec)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return fmt.Sprint(matches[i]["end_date"]) > fmt.Sprint(matches[j]["end_date"])
	})

	if opts, ok := params["options"].(map[string]any); ok {
		if limit, ok := fakeInt(opts["limit"]); ok && limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}
	}
	return mapResult(matches)
}

func (f *FakeCRM) saveMembership(params map[string]any) map[string]any {
	if id, ok := fakeInt(params["id"]); ok {
		rec, exists := f.memberships[id]
		if !exists {
			return map[string]any{"is_error": 1, "error_message": fmt.Sprintf("membership %d not found", id)}
		}
		for k, v := range params {
			if k != "id" {
				rec[k] = v
			}
		}
		return mapResult([]map[string]any{rec})
	}

	f.nextMember++
	id := f.nextMember
	rec := map[string]any{"id": id}
	for k, v := range params {
		rec[k] = v
	}
	f.memberships[id] = rec
	return mapResult([]map[string]any{rec})
}

func mapResult(records []map[string]any) map[string]any {
	values := make(map[string]any, len(records))
	for _, rec := range records {
		id, _ := fakeInt(rec["id"])
		values[strconv.Itoa(id)] = copyRecord(rec)
	}

	result := map[string]any{"is_error": 0, "count": len(records), "values": values}
	if len(records) == 1 {
		result["id"] = records[0]["id"]
	}
	if len(records) == 0 {
		result["values"] = []any{}
	}
	return result
}

func writeFake(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func fakeInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func sortedIDs(m map[int]map[string]any) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func copyRecord(rec map[string]any) map[string]any {
	if rec == nil {
		return nil
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
