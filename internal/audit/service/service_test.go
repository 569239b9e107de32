package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/audit/store"
	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/platform/sentinel"
	"supplytrail/pkg/requestcontext"
	"supplytrail/pkg/testutil"
)

type existingObjects map[objects.Ref]bool

func (e existingObjects) resolvers() map[objects.Kind]objects.Resolver {
	resolvers := make(map[objects.Kind]objects.Resolver)
	for _, kind := range []objects.Kind{
		objects.KindSuppliers, objects.KindServices, objects.KindBriefs,
		objects.KindDirectAwardProjects, objects.KindProcessOutcomes,
	} {
		kind := kind
		resolvers[kind] = resolverFunc(func(_ context.Context, id int64) (bool, error) {
			return e[objects.Ref{Kind: kind, ID: id}], nil
		})
	}
	return resolvers
}

type resolverFunc func(ctx context.Context, id int64) (bool, error)

func (f resolverFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

type ServiceSuite struct {
	suite.Suite
	store   *store.MemoryStore
	known   existingObjects
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.known = existingObjects{
		{Kind: objects.KindSuppliers, ID: 1}: true,
		{Kind: objects.KindServices, ID: 2}:  true,
	}
	s.service = New(
		s.store,
		store.NewMemoryTx(s.store),
		objects.NewRegistry(s.known.resolvers()),
		nil,
		testutil.DiscardLogger(),
	)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) create(auditType models.AuditType, kind string, id *int64) *models.AuditEvent {
	event, err := s.service.Create(s.ctx, CreateInput{
		Type:       string(auditType),
		User:       "tester",
		Data:       map[string]any{},
		ObjectKind: kind,
		ObjectID:   id,
	})
	s.Require().NoError(err)
	return event
}

func int64Ptr(v int64) *int64 { return &v }

func (s *ServiceSuite) TestCreate() {
	s.Run("records an event with the request instant", func() {
		event := s.create(models.TypeSupplierUpdate, "suppliers", int64Ptr(1))
		s.Equal(s.now, event.CreatedAt)
		s.Equal(objects.Ref{Kind: objects.KindSuppliers, ID: 1}, *event.Object)
		s.False(event.Acknowledged)
	})

	s.Run("rejects an unknown type", func() {
		_, err := s.service.Create(s.ctx, CreateInput{Type: "nope", Data: map[string]any{}})
		s.Equal("invalid audit type supplied", dErrors.MessageOf(err))
	})

	s.Run("requires data", func() {
		_, err := s.service.Create(s.ctx, CreateInput{Type: "supplier_update"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects half-specified references", func() {
		_, err := s.service.Create(s.ctx, CreateInput{
			Type: "supplier_update", Data: map[string]any{}, ObjectKind: "suppliers",
		})
		s.Equal("object type cannot be provided without an object ID", dErrors.MessageOf(err))

		_, err = s.service.Create(s.ctx, CreateInput{
			Type: "supplier_update", Data: map[string]any{}, ObjectID: int64Ptr(1),
		})
		s.Equal("object ID cannot be provided without an object type", dErrors.MessageOf(err))
	})

	s.Run("rejects references to missing objects", func() {
		_, err := s.service.Create(s.ctx, CreateInput{
			Type: "supplier_update", Data: map[string]any{},
			ObjectKind: "suppliers", ObjectID: int64Ptr(99),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal("referenced object does not exist", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestList() {
	s.Run("filtering by a missing object is not found, not empty", func() {
		id := int64(99)
		_, err := s.service.List(s.ctx,
			store.ListFilter{ObjectKind: objects.KindSuppliers, ObjectID: &id},
			store.Page{Number: 1, Size: 5},
		)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal("referenced object does not exist", dErrors.MessageOf(err))
	})

	s.Run("a page past the end is not found", func() {
		s.create(models.TypeSupplierUpdate, "", nil)
		_, err := s.service.List(s.ctx, store.ListFilter{}, store.Page{Number: 2, Size: 5})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("page one of an empty result is an empty page", func() {
		result, err := s.service.List(s.ctx,
			store.ListFilter{Type: models.TypeCreateProject},
			store.Page{Number: 1, Size: 5},
		)
		s.Require().NoError(err)
		s.Empty(result.Events)
		s.Zero(result.Total)
		s.False(result.HasNext)
		s.False(result.HasPrev)
	})

	s.Run("computes pagination flags from the total", func() {
		for i := 0; i < 6; i++ {
			s.create(models.TypeContactUpdate, "", nil)
		}
		result, err := s.service.List(s.ctx,
			store.ListFilter{Type: models.TypeContactUpdate},
			store.Page{Number: 1, Size: 5},
		)
		s.Require().NoError(err)
		s.Len(result.Events, 5)
		s.Equal(6, result.Total)
		s.True(result.HasNext)
		s.False(result.HasPrev)
	})
}

func (s *ServiceSuite) TestAcknowledge() {
	s.Run("stamps the event with the request instant", func() {
		event := s.create(models.TypeSupplierUpdate, "suppliers", int64Ptr(1))

		acked, err := s.service.Acknowledge(s.ctx, event.ID, "admin")
		s.Require().NoError(err)
		s.True(acked.Acknowledged)
		s.Equal(s.now, *acked.AcknowledgedAt)
		s.Equal("admin", acked.AcknowledgedBy)
	})

	s.Run("acknowledging twice is a no-op", func() {
		event := s.create(models.TypeSupplierUpdate, "suppliers", int64Ptr(1))
		_, err := s.service.Acknowledge(s.ctx, event.ID, "first")
		s.Require().NoError(err)

		again, err := s.service.Acknowledge(s.ctx, event.ID, "second")
		s.Require().NoError(err)
		s.Equal("first", again.AcknowledgedBy)
	})

	s.Run("unknown ids are not found", func() {
		_, err := s.service.Acknowledge(s.ctx, 9999, "admin")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// seedAt creates an event directly in the store with an explicit timestamp.
func (s *ServiceSuite) seedAt(at time.Time, kind objects.Kind, objectID int64) *models.AuditEvent {
	event, err := s.store.Create(context.Background(), &models.AuditEvent{
		Type:      models.TypeSupplierUpdate,
		CreatedAt: at,
		User:      "seeder",
		Data:      map[string]any{},
		Object:    &objects.Ref{Kind: kind, ID: objectID},
	})
	s.Require().NoError(err)
	return event
}

func (s *ServiceSuite) TestAcknowledgeIncludingPrevious() {
	base := s.now.Add(-24 * time.Hour)

	s.Run("acknowledges the same-object closure with one shared instant", func() {
		first := s.seedAt(base, objects.KindSuppliers, 1)
		second := s.seedAt(base.Add(time.Hour), objects.KindSuppliers, 1)
		target := s.seedAt(base.Add(2*time.Hour), objects.KindSuppliers, 1)
		later := s.seedAt(base.Add(3*time.Hour), objects.KindSuppliers, 1)
		other := s.seedAt(base, objects.KindServices, 2)

		delta, err := s.service.AcknowledgeIncludingPrevious(s.ctx, target.ID, "admin")
		s.Require().NoError(err)
		s.Require().Len(delta, 3)
		s.Equal([]int64{first.ID, second.ID, target.ID},
			[]int64{delta[0].ID, delta[1].ID, delta[2].ID})
		for _, event := range delta {
			s.Equal(s.now, *event.AcknowledgedAt)
			s.Equal("admin", event.AcknowledgedBy)
		}

		untouched, err := s.store.Get(context.Background(), later.ID)
		s.Require().NoError(err)
		s.False(untouched.Acknowledged)
		untouched, err = s.store.Get(context.Background(), other.ID)
		s.Require().NoError(err)
		s.False(untouched.Acknowledged)
	})

	s.Run("returns only the delta when part of the closure is already acknowledged", func() {
		first := s.seedAt(base, objects.KindBriefs, 7)
		second := s.seedAt(base.Add(time.Hour), objects.KindBriefs, 7)
		s.known[objects.Ref{Kind: objects.KindBriefs, ID: 7}] = true
		_, err := s.service.Acknowledge(s.ctx, first.ID, "earlier")
		s.Require().NoError(err)

		delta, err := s.service.AcknowledgeIncludingPrevious(s.ctx, second.ID, "admin")
		s.Require().NoError(err)
		s.Require().Len(delta, 1)
		s.Equal(second.ID, delta[0].ID)
	})

	s.Run("an already acknowledged target yields an empty delta", func() {
		event := s.seedAt(base, objects.KindSuppliers, 1)
		_, err := s.service.Acknowledge(s.ctx, event.ID, "first")
		s.Require().NoError(err)

		delta, err := s.service.AcknowledgeIncludingPrevious(s.ctx, event.ID, "second")
		s.Require().NoError(err)
		s.Empty(delta)
	})

	s.Run("a target without a reference closes over itself only", func() {
		lone, err := s.service.Create(s.ctx, CreateInput{
			Type: "register_framework_interest", User: "tester", Data: map[string]any{},
		})
		s.Require().NoError(err)
		s.seedAt(base, objects.KindSuppliers, 1)

		delta, err := s.service.AcknowledgeIncludingPrevious(s.ctx, lone.ID, "admin")
		s.Require().NoError(err)
		s.Require().Len(delta, 1)
		s.Equal(lone.ID, delta[0].ID)
	})

	s.Run("equal timestamps split by id", func() {
		tieLow := s.seedAt(base, objects.KindServices, 2)
		tieHigh := s.seedAt(base, objects.KindServices, 2)

		delta, err := s.service.AcknowledgeIncludingPrevious(s.ctx, tieLow.ID, "admin")
		s.Require().NoError(err)
		s.Require().Len(delta, 1)
		s.Equal(tieLow.ID, delta[0].ID)

		untouched, err := s.store.Get(context.Background(), tieHigh.ID)
		s.Require().NoError(err)
		s.False(untouched.Acknowledged)
	})
}

// flakyTx fails the first n attempts with a retryable conflict before
// delegating to the real runner.
type flakyTx struct {
	inner     store.Tx
	failures  int
	attempted int
}

func (t *flakyTx) RunInTx(ctx context.Context, fn func(store store.Store) error) error {
	t.attempted++
	if t.attempted <= t.failures {
		return fmt.Errorf("%w: simulated serialization failure", sentinel.ErrConflict)
	}
	return t.inner.RunInTx(ctx, fn)
}

func (s *ServiceSuite) TestConflictRetry() {
	s.Run("retries a conflicted transaction and succeeds", func() {
		flaky := &flakyTx{inner: store.NewMemoryTx(s.store), failures: 2}
		svc := New(s.store, flaky, objects.NewRegistry(s.known.resolvers()), nil, testutil.DiscardLogger())
		event := s.seedAt(s.now, objects.KindSuppliers, 1)

		acked, err := svc.Acknowledge(s.ctx, event.ID, "admin")
		s.Require().NoError(err)
		s.True(acked.Acknowledged)
		s.Equal(3, flaky.attempted)
	})

	s.Run("gives up after the attempt budget", func() {
		flaky := &flakyTx{inner: store.NewMemoryTx(s.store), failures: 10}
		svc := New(s.store, flaky, objects.NewRegistry(s.known.resolvers()), nil, testutil.DiscardLogger())
		event := s.seedAt(s.now, objects.KindSuppliers, 1)

		_, err := svc.Acknowledge(s.ctx, event.ID, "admin")
		s.Require().Error(err)
		s.Equal(maxTxAttempts, flaky.attempted)
	})
}
