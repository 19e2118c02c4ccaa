package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crowdfund-service/internal/ledger"
	"crowdfund-service/internal/service/funding"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	failContribute error
	failRelease    error
}

func (s *stubStore) CreateCampaign(ctx context.Context, c *ledger.Campaign, events []funding.Event) error {
	return nil
}

func (s *stubStore) RecordContribution(ctx context.Context, c *ledger.Campaign, contributor int, amount int64, events []funding.Event) error {
	return s.failContribute
}

func (s *stubStore) CommitRelease(ctx context.Context, c *ledger.Campaign, res ledger.ReleaseResult, events []funding.Event) error {
	return s.failRelease
}

func (s *stubStore) LoadCampaigns(ctx context.Context) ([]*ledger.Campaign, error) {
	return nil, nil
}

// fakeAuth plays the role of AuthMiddleware with a fixed user.
func fakeAuth(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func newTestRouter(store *stubStore, userID int) (*gin.Engine, *funding.Service) {
	gin.SetMode(gin.TestMode)

	svc := funding.NewServiceWithClock(store, nil, zap.NewNop(), func() time.Time { return baseTime })
	h := NewCampaignHandler(svc, zap.NewNop())

	r := gin.New()
	r.GET("/campaigns", h.ListCampaigns)
	r.GET("/campaigns/:id", h.GetCampaign)
	r.GET("/campaigns/:id/milestones/:index", h.GetMilestone)

	auth := r.Group("/", fakeAuth(userID))
	auth.POST("/campaigns", h.CreateCampaign)
	auth.POST("/campaigns/:id/contributions", h.Contribute)
	auth.POST("/campaigns/:id/release", h.ReleaseFunds)

	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createCampaignBody() map[string]any {
	return map[string]any{
		"description": "solar farm",
		"goal":        100,
		"deadline":    baseTime.Add(48 * time.Hour).Format(time.RFC3339),
		"milestones": []map[string]any{
			{"description": "permits", "amount": 60},
			{"description": "build", "amount": 40},
		},
	}
}

func TestCreateCampaign(t *testing.T) {
	r, _ := newTestRouter(&stubStore{}, 1)

	w := doJSON(t, r, http.MethodPost, "/campaigns", createCampaignBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"].(float64) != 1 {
		t.Fatalf("expected id 1, got %v", resp["id"])
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	r, _ := newTestRouter(&stubStore{}, 1)

	body := createCampaignBody()
	body["deadline"] = baseTime.Add(-time.Hour).Format(time.RFC3339)

	w := doJSON(t, r, http.MethodPost, "/campaigns", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for past deadline, got %d", w.Code)
	}
}

func TestContributeStatusMapping(t *testing.T) {
	r, _ := newTestRouter(&stubStore{}, 1)

	if w := doJSON(t, r, http.MethodPost, "/campaigns", createCampaignBody()); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	// Unknown campaign.
	w := doJSON(t, r, http.MethodPost, "/campaigns/99/contributions", map[string]any{"amount": 10})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown campaign, got %d", w.Code)
	}

	// Fill the goal, then the next contribution conflicts.
	w = doJSON(t, r, http.MethodPost, "/campaigns/1/contributions", map[string]any{"amount": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/campaigns/1/contributions", map[string]any{"amount": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 once goal reached, got %d", w.Code)
	}
}

func TestContributeTransferFailure(t *testing.T) {
	store := &stubStore{}
	r, _ := newTestRouter(store, 1)

	if w := doJSON(t, r, http.MethodPost, "/campaigns", createCampaignBody()); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	store.failContribute = fmt.Errorf("%w: insufficient balance", ledger.ErrTransferFailed)
	w := doJSON(t, r, http.MethodPost, "/campaigns/1/contributions", map[string]any{"amount": 10})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for failed transfer, got %d", w.Code)
	}
}

func TestReleaseStatusMapping(t *testing.T) {
	creatorRouter, svc := newTestRouter(&stubStore{}, 1)

	if w := doJSON(t, creatorRouter, http.MethodPost, "/campaigns", createCampaignBody()); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	// Goal not reached yet.
	w := doJSON(t, creatorRouter, http.MethodPost, "/campaigns/1/release", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before goal, got %d", w.Code)
	}

	if w := doJSON(t, creatorRouter, http.MethodPost, "/campaigns/1/contributions", map[string]any{"amount": 100}); w.Code != http.StatusOK {
		t.Fatalf("contribute: %d", w.Code)
	}

	// A different authenticated user is not the creator.
	otherRouter := gin.New()
	h := NewCampaignHandler(svc, zap.NewNop())
	otherRouter.POST("/campaigns/:id/release", fakeAuth(2), h.ReleaseFunds)
	w = doJSON(t, otherRouter, http.MethodPost, "/campaigns/1/release", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator, got %d", w.Code)
	}

	// The creator releases both milestones; the result carries the
	// post-release cursor.
	w = doJSON(t, creatorRouter, http.MethodPost, "/campaigns/1/release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["current_milestone"].(float64) != 1 || resp["completed"].(bool) {
		t.Fatalf("unexpected release response %v", resp)
	}

	w = doJSON(t, creatorRouter, http.MethodPost, "/campaigns/1/release", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second release: %d", w.Code)
	}

	w = doJSON(t, creatorRouter, http.MethodPost, "/campaigns/1/release", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 once completed, got %d", w.Code)
	}
}

func TestGetCampaignUnknownIDIsZeroValued(t *testing.T) {
	r, _ := newTestRouter(&stubStore{}, 1)

	w := doJSON(t, r, http.MethodGet, "/campaigns/42", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var d ledger.CampaignDetails
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d != (ledger.CampaignDetails{}) {
		t.Fatalf("expected zero-valued details, got %+v", d)
	}
}

func TestGetMilestoneOutOfRange(t *testing.T) {
	r, _ := newTestRouter(&stubStore{}, 1)

	if w := doJSON(t, r, http.MethodPost, "/campaigns", createCampaignBody()); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/campaigns/1/milestones/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/campaigns/1/milestones/2", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 past the last milestone, got %d", w.Code)
	}
}
