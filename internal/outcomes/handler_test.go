package outcomes

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	auditstore "supplytrail/internal/audit/store"
	"supplytrail/internal/platform/middleware"
	"supplytrail/pkg/testutil"
)

type OutcomeHandlerSuite struct {
	suite.Suite
	store  *MemoryStore
	router chi.Router
}

func TestOutcomeHandlerSuite(t *testing.T) {
	suite.Run(t, new(OutcomeHandlerSuite))
}

func (s *OutcomeHandlerSuite) SetupTest() {
	s.store = NewMemory()
	audit := auditstore.NewMemory()
	svc := NewService(s.store, NewMemoryTx(s.store, audit), testutil.DiscardLogger())

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestTime)
	NewHandler(svc, testutil.DiscardLogger()).Register(s.router)
}

func (s *OutcomeHandlerSuite) seed(externalID, briefID int64) {
	_, err := s.store.Create(context.Background(), &ProcessOutcome{
		ExternalID: externalID,
		BriefID:    &briefID,
		Data:       map[string]any{"result": "none-suitable"},
	})
	s.Require().NoError(err)
}

type outcomeResponse struct {
	ProcessOutcome map[string]any `json:"processOutcome"`
}

func (s *OutcomeHandlerSuite) TestGet() {
	s.seed(100012, 3)

	s.Run("returns the outcome view", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process-outcomes/100012"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[outcomeResponse](s.T(), rr)
		s.Equal(float64(100012), body.ProcessOutcome["id"])
		s.Equal(float64(3), body.ProcessOutcome["briefId"])
		s.Equal(false, body.ProcessOutcome["completed"])
		s.Equal("none-suitable", body.ProcessOutcome["result"])
	})

	s.Run("unknown external ids are 404", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process-outcomes/999999"))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("non-numeric external ids never match the route", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/process-outcomes/abc"))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *OutcomeHandlerSuite) TestUpdate() {
	s.Run("applies the payload and reports completion", func() {
		s.seed(100013, 4)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100013", map[string]any{
			"updated_by":     "buyer@example.com",
			"processOutcome": map[string]any{"result": "awarded", "completed": true},
		})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[outcomeResponse](s.T(), rr)
		s.Equal(true, body.ProcessOutcome["completed"])
		s.Equal("awarded", body.ProcessOutcome["result"])
		s.NotEmpty(body.ProcessOutcome["completedAt"])

		stored, err := s.store.GetByExternalID(context.Background(), 100013)
		s.Require().NoError(err)
		s.True(stored.Completed())
		s.WithinDuration(time.Now().UTC(), *stored.CompletedAt, time.Minute)
	})

	s.Run("requires the updater and the payload", func() {
		s.seed(100014, 5)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100014", map[string]any{
			"processOutcome": map[string]any{"result": "awarded"},
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "'updated_by' must be provided")

		req = testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100014", map[string]any{
			"updated_by": "buyer@example.com",
		})
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "'processOutcome' must be provided")
	})

	s.Run("rejects a non-boolean completed flag", func() {
		s.seed(100015, 6)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100015", map[string]any{
			"updated_by":     "buyer@example.com",
			"processOutcome": map[string]any{"completed": "yes"},
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "'completed' must be a boolean")
	})

	s.Run("surfaces the un-complete rule over HTTP", func() {
		s.seed(100016, 7)
		complete := testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100016", map[string]any{
			"updated_by":     "buyer@example.com",
			"processOutcome": map[string]any{"completed": true},
		})
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, complete), http.StatusOK)

		uncomplete := testutil.NewJSONRequest(s.T(), http.MethodPut, "/process-outcomes/100016", map[string]any{
			"updated_by":     "buyer@example.com",
			"processOutcome": map[string]any{"completed": false},
		})
		rr := testutil.DoRequest(s.router, uncomplete)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "can't un-complete process outcome")
	})
}
