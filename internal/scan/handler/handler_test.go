package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"rezscan/internal/audit"
	"rezscan/internal/location"
	"rezscan/internal/resident"
	"rezscan/internal/scan/service"
	"rezscan/internal/scan/store"
	"rezscan/pkg/domain"
	dErrors "rezscan/pkg/domain-errors"
	"rezscan/pkg/requestcontext"
	"rezscan/pkg/testutil"
)

// captureAuditor records emitted audit events synchronously.
type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAuditor) Emit(ctx context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureAuditor) all() []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audit.Event, len(c.events))
	copy(out, c.events)
	return out
}

type HandlerSuite struct {
	suite.Suite
	events    *store.InMemory
	locations *location.InMemory
	residents *resident.InMemory
	auditor   *captureAuditor
	router    chi.Router
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	s.events = store.NewInMemory()
	s.locations = location.NewInMemory()
	s.residents = resident.NewInMemory()
	s.auditor = &captureAuditor{}
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Require().NoError(s.locations.Create(ctx, &location.Location{
		ID: domain.NewLocationID(), Prefix: "EDU", Name: "Education",
	}))
	s.Require().NoError(s.locations.Create(ctx, &location.Location{
		ID: domain.NewLocationID(), Prefix: "ACT", Name: "Activities",
	}))
	s.Require().NoError(s.residents.Create(ctx, &resident.Resident{
		ID: domain.NewResidentID(), MDOC: "1234", Name: "Jordan Price",
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := service.NewEngine(s.events, s.locations, s.residents)
	h := New(engine, s.events, s.residents, logger, s.auditor, nil)

	s.router = chi.NewRouter()
	// Pin the request time so cooldown behavior is deterministic.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), s.now)))
		})
	})
	h.Register(s.router)
}

func (s *HandlerSuite) postScan(body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/scans", body)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestRecordScanCode() {
	rr := s.postScan(map[string]string{"code": "EDU-1234"})

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[recordScanResponse](s.T(), rr)
	s.Equal("recorded", resp.Result)
	s.Equal("Scan recorded: 'In' at Education", resp.Message)
	s.Require().Len(resp.Events, 1)
	s.Equal("In", resp.Events[0].Status)
	s.Equal("Education", resp.Events[0].Location)
	s.False(resp.UnknownResident)

	events := s.auditor.all()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionScan, events[0].Action)
	s.Contains(events[0].Details, "mdoc=1234")
}

func (s *HandlerSuite) TestRecordScanSeparateFields() {
	rr := s.postScan(map[string]string{"mdoc": "1234", "prefix": "edu"})

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[recordScanResponse](s.T(), rr)
	s.Equal("Scan recorded: 'In' at Education", resp.Message)
}

func (s *HandlerSuite) TestCodeTakesPrecedence() {
	rr := s.postScan(map[string]string{"code": "ACT-1234", "mdoc": "9999", "prefix": "EDU"})

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[recordScanResponse](s.T(), rr)
	s.Equal("Scan recorded: 'In' at Activities", resp.Message)
}

func (s *HandlerSuite) TestIgnoredScanIsOKNotCreated() {
	rr := s.postScan(map[string]string{"code": "EDU-1234"})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	s.now = s.now.Add(200 * time.Millisecond)
	rr = s.postScan(map[string]string{"code": "EDU-1234"})

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[recordScanResponse](s.T(), rr)
	s.Equal("ignored", resp.Result)
	s.Equal("Scan ignored: too soon since last scan.", resp.Message)
	s.Empty(resp.Events)
}

func (s *HandlerSuite) TestUnknownResidentAnnotated() {
	rr := s.postScan(map[string]string{"code": "EDU-9999"})

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[recordScanResponse](s.T(), rr)
	s.True(resp.UnknownResident)
	s.Contains(resp.Message, "Resident not found, but scan recorded.")
}

func (s *HandlerSuite) TestMalformedCode() {
	rr := s.postScan(map[string]string{"code": "EDU1234"})

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeBadRequest))

	events := s.auditor.all()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionScanFailed, events[0].Action)
}

func (s *HandlerSuite) TestInvalidMDOCFormat() {
	rr := s.postScan(map[string]string{"code": "EDU-12a4"})
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestInvalidPrefixFormat() {
	rr := s.postScan(map[string]string{"code": "EDU!-1234"})
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestEmptyScan() {
	rr := s.postScan(map[string]string{})

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeBadRequest))
}

func (s *HandlerSuite) TestInvalidJSONBody() {
	req := httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestUnknownPrefixIsNotFound() {
	rr := s.postScan(map[string]string{"code": "ZZZ-1234"})

	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeUnknownPrefix))
}

type listScansResponse struct {
	Scans []eventPayload `json:"scans"`
}

func (s *HandlerSuite) seedScans() {
	s.postScan(map[string]string{"code": "EDU-1234"})
	s.now = s.now.Add(5 * time.Second)
	s.postScan(map[string]string{"code": "ACT-1234"}) // corrects the missed Out
	s.now = s.now.Add(5 * time.Second)
	s.postScan(map[string]string{"code": "EDU-5678"})
}

func (s *HandlerSuite) TestListScans() {
	s.seedScans()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/scans")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listScansResponse](s.T(), rr)
	s.Require().Len(resp.Scans, 4)
	// Newest first.
	for i := 1; i < len(resp.Scans); i++ {
		s.False(resp.Scans[i].Timestamp.After(resp.Scans[i-1].Timestamp))
	}
}

func (s *HandlerSuite) TestListScansFilterByMDOC() {
	s.seedScans()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/scans?mdoc=5678")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listScansResponse](s.T(), rr)
	s.Require().Len(resp.Scans, 1)
	s.Equal("Education", resp.Scans[0].Location)
}

func (s *HandlerSuite) TestListScansUnknownMDOCIsEmpty() {
	s.seedScans()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/scans?mdoc=0000")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listScansResponse](s.T(), rr)
	s.Empty(resp.Scans)
}

func (s *HandlerSuite) TestListScansFilterByLocation() {
	s.seedScans()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/scans?location=Activities")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listScansResponse](s.T(), rr)
	s.Require().Len(resp.Scans, 1)
	s.Equal("In", resp.Scans[0].Status)
}

func (s *HandlerSuite) TestListScansLimit() {
	s.seedScans()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/scans?limit=2")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listScansResponse](s.T(), rr)
	s.Len(resp.Scans, 2)
}
