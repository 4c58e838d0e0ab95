package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/engine"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
)

var _ = Describe("retry manager", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		mgr    *engine.RetryManager
	)

	BeforeAll(func() {
		cfg := engineTestConfig()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		mgr = engine.NewRetryManager(s, report.DefaultRegistry(), nil, cfg)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_jobs")
	})

	claimRunning := func(job model.Job) *model.Job {
		_, err := s.Job().Create(ctx, job)
		Expect(err).To(BeNil())
		running, err := s.Job().Claim(ctx, job.ID, "worker-1", time.Now(), time.Minute)
		Expect(err).To(BeNil())
		return running
	}

	Context("backoff", func() {
		It("doubles per prior retry and caps at the maximum", func() {
			Expect(mgr.Backoff(0)).To(Equal(time.Second))
			Expect(mgr.Backoff(1)).To(Equal(2 * time.Second))
			Expect(mgr.Backoff(2)).To(Equal(4 * time.Second))
			Expect(mgr.Backoff(3)).To(Equal(8 * time.Second))
			Expect(mgr.Backoff(20)).To(Equal(8 * time.Second))
		})
	})

	Context("handle failure", func() {
		It("requeues a retryable failure with a future attempt time", func() {
			running := claimRunning(queuedJob("enrollment_summary", model.PriorityNormal))

			updated, err := mgr.HandleFailure(ctx, running, engine.Retryable(engine.CodeDataSource, errors.New("replica lagging")))
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.JobStatusQueued))
			Expect(updated.RetryCount).To(Equal(1))
			Expect(updated.NextAttemptAt).NotTo(BeNil())
			Expect(updated.NextAttemptAt.After(time.Now())).To(BeTrue())
			Expect(updated.LeaseOwner).To(BeEmpty())
		})

		It("fails terminally on a non-retryable cause", func() {
			running := claimRunning(queuedJob("enrollment_summary", model.PriorityNormal))

			updated, err := mgr.HandleFailure(ctx, running, engine.Terminal(engine.CodeRenderFailed, errors.New("workbook too large")))
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.JobStatusFailed))
			Expect(updated.ErrorCode).To(Equal(engine.CodeRenderFailed))
			Expect(updated.RetryCount).To(Equal(0))
		})

		It("fails terminally once the retry budget is spent", func() {
			// completion_rates carries a budget of two retries
			job := queuedJob("completion_rates", model.PriorityNormal)
			current := claimRunning(job)

			cause := engine.Retryable(engine.CodeDataSource, errors.New("replica lagging"))

			for attempt := 0; attempt < 2; attempt++ {
				updated, err := mgr.HandleFailure(ctx, current, cause)
				Expect(err).To(BeNil())
				Expect(updated.Status).To(Equal(model.JobStatusQueued))

				current, err = s.Job().Claim(ctx, job.ID, "worker-1", time.Now(), time.Minute)
				Expect(err).To(BeNil())
			}

			final, err := mgr.HandleFailure(ctx, current, cause)
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal(model.JobStatusFailed))
			Expect(final.RetryCount).To(Equal(2))
			Expect(final.ErrorCode).To(Equal(engine.CodeDataSource))
		})

		It("loses cleanly when the job already moved", func() {
			job := queuedJob("enrollment_summary", model.PriorityNormal)
			running := claimRunning(job)

			_, err := s.Job().Complete(ctx, job.ID, "worker-1", completedDescriptor(), time.Now().Add(time.Hour), time.Now())
			Expect(err).To(BeNil())

			_, err = mgr.HandleFailure(ctx, running, engine.Retryable(engine.CodeStorage, errors.New("bucket gone")))
			Expect(err).To(MatchError(st.ErrStaleTransition))
		})
	})
})
