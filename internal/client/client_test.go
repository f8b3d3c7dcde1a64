package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"letterflow/internal/lifecycle"
)

func TestGetLetterSendsTokenAndDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/letters/l-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"letter": map[string]any{"id": "l-1", "title": "Leave", "status": "pending"},
		})
	}))
	defer server.Close()

	c := New(server.URL+"/", WithToken("tok"))
	letter, err := c.GetLetter(context.Background(), "l-1")
	if err != nil {
		t.Fatalf("GetLetter() error = %v", err)
	}
	if letter.ID != "l-1" || letter.Status != lifecycle.StatusPending {
		t.Fatalf("unexpected letter %+v", letter)
	}
}

func TestStatusUpdatesSendExpectedBodies(t *testing.T) {
	var bodies []map[string]any
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		bodies = append(bodies, body)
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"letter": map[string]any{"id": "l-1", "status": body["status"]}})
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()
	if _, err := c.UpdateStatusBySupervisor(ctx, "l-1", lifecycle.StatusPending, ""); err != nil {
		t.Fatalf("supervisor update error = %v", err)
	}
	if _, err := c.UpdateStatusByPresident(ctx, "l-1", lifecycle.StatusApproved, lifecycle.SignatureScanned, ""); err != nil {
		t.Fatalf("president update error = %v", err)
	}
	if _, err := c.UpdateStatusByPresident(ctx, "l-1", lifecycle.StatusRejected, "", "late"); err != nil {
		t.Fatalf("president reject error = %v", err)
	}

	if paths[0] != "/api/letters/l-1/status/supervisor" || paths[1] != "/api/letters/l-1/status/president" {
		t.Fatalf("unexpected paths %v", paths)
	}
	if _, ok := bodies[0]["reason"]; ok {
		t.Fatal("blank reason should be omitted")
	}
	if bodies[1]["signature"] != "scanned" {
		t.Fatalf("expected signature in body, got %v", bodies[1])
	}
	if bodies[2]["reason"] != "late" || bodies[2]["status"] != "rejected" {
		t.Fatalf("unexpected reject body %v", bodies[2])
	}
	if _, ok := bodies[2]["signature"]; ok {
		t.Fatal("rejection should not carry a signature")
	}
}

func TestErrorEnvelopeMapsToLifecycleSentinels(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusConflict, "INVALID_TRANSITION", lifecycle.ErrInvalidTransition},
		{http.StatusConflict, "STATUS_CONFLICT", lifecycle.ErrInvalidTransition},
		{http.StatusUnprocessableEntity, "MISSING_REASON", lifecycle.ErrMissingReason},
		{http.StatusConflict, "NOT_EDITABLE", lifecycle.ErrNotEditable},
		{http.StatusBadGateway, "ARTIFACT_FAILED", lifecycle.ErrArtifactGenerationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"code": tc.code, "error": "nope"})
			}))
			defer server.Close()

			_, err := New(server.URL).GetLetter(context.Background(), "l-1")
			if !errors.Is(err, lifecycle.ErrRemoteCallFailed) {
				t.Fatalf("expected remote failure, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsStatus(err, tc.status) {
				t.Fatalf("expected status %d on %v", tc.status, err)
			}
		})
	}
}

func TestTransportFailureIsRemoteCallFailed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).GetLetter(context.Background(), "l-1")
	if !errors.Is(err, lifecycle.ErrRemoteCallFailed) {
		t.Fatalf("expected remote failure, got %v", err)
	}
}

func TestRenderArtifactFallsBackToURLFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/letters/l-9/artifact" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"artifactUrl": "https://files.local/letters/letter-l-9-genuine.pdf?sig=1"})
	}))
	defer server.Close()

	artifact, err := New(server.URL).RenderArtifact(context.Background(), "l-9", lifecycle.SignatureGenuine)
	if err != nil {
		t.Fatalf("RenderArtifact() error = %v", err)
	}
	if artifact.Filename != "letter-l-9-genuine.pdf" {
		t.Fatalf("unexpected filename %q", artifact.Filename)
	}
}

func TestDownloadArtifactFollowsRedirect(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer storage.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("download") != "document_7.pdf" {
			t.Fatalf("expected download name, got %q", r.URL.RawQuery)
		}
		http.Redirect(w, r, storage.URL+"/object", http.StatusFound)
	}))
	defer api.Close()

	var buf bytes.Buffer
	n, err := New(api.URL, WithToken("tok")).DownloadArtifact(context.Background(), "letter-7-genuine.pdf", "document_7.pdf", &buf)
	if err != nil {
		t.Fatalf("DownloadArtifact() error = %v", err)
	}
	if n != int64(len("%PDF-1.7")) || buf.String() != "%PDF-1.7" {
		t.Fatalf("unexpected body %q (%d bytes)", buf.String(), n)
	}
}

func TestListLettersEncodesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q["status"]; len(got) != 2 || got[0] != "pending" || got[1] != "approved" {
			t.Fatalf("unexpected statuses %v", got)
		}
		if q.Get("decisionTypeId") != "dt-1" || q.Get("mine") != "true" || q.Get("page") != "2" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"letters": []map[string]any{{"id": "l-1"}},
			"total":   11,
			"page":    2,
		})
	}))
	defer server.Close()

	page, err := New(server.URL).ListLetters(context.Background(), ListQuery{
		Statuses:       []lifecycle.Status{lifecycle.StatusPending, lifecycle.StatusApproved},
		DecisionTypeID: "dt-1",
		Mine:           true,
		Page:           2,
	})
	if err != nil {
		t.Fatalf("ListLetters() error = %v", err)
	}
	if page.Total != 11 || len(page.Letters) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestLoginStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "fresh", "refreshToken": "r", "role": "president"})
	}))
	defer server.Close()

	c := New(server.URL)
	session, err := c.Login(context.Background(), "pres", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if c.Token() != "fresh" || session.Role != lifecycle.RolePresident {
		t.Fatalf("unexpected session %+v token %q", session, c.Token())
	}
}

func TestDecisionTypeChangesOmitUnsetFields(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		methods = append(methods, r.Method+" "+r.URL.Path)
		bodies = append(bodies, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodDelete {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"decisionType": map[string]any{"id": "dt_1", "title": "Grants", "sector": "Students"}})
	}))
	defer server.Close()

	c := New(server.URL, WithToken("tok"))
	title, sector := "Grants", "Students"
	created, err := c.CreateDecisionType(context.Background(), DecisionTypeChange{Title: &title, Sector: &sector})
	if err != nil {
		t.Fatalf("CreateDecisionType() error = %v", err)
	}
	if created.ID != "dt_1" || created.Sector != "Students" {
		t.Fatalf("unexpected decision type %+v", created)
	}
	president := true
	if _, err := c.UpdateDecisionType(context.Background(), "dt_1", DecisionTypeChange{IsPresidentDecision: &president}); err != nil {
		t.Fatalf("UpdateDecisionType() error = %v", err)
	}
	if err := c.DeleteDecisionType(context.Background(), "dt_1"); err != nil {
		t.Fatalf("DeleteDecisionType() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	wantMethods := []string{"POST /api/decision-types", "PUT /api/decision-types/dt_1", "DELETE /api/decision-types/dt_1"}
	if len(methods) != len(wantMethods) {
		t.Fatalf("unexpected calls %v", methods)
	}
	for i := range wantMethods {
		if methods[i] != wantMethods[i] {
			t.Fatalf("call %d = %s, want %s", i, methods[i], wantMethods[i])
		}
	}
	if _, ok := bodies[0]["supervisorId"]; ok {
		t.Fatalf("unset supervisor should be omitted: %v", bodies[0])
	}
	if len(bodies[1]) != 1 || bodies[1]["isPresidentDecision"] != true {
		t.Fatalf("update should only carry the changed field: %v", bodies[1])
	}
}
