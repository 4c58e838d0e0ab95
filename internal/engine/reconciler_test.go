package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/engine"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
)

var _ = Describe("lease reconciler", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		rec    *engine.Reconciler
	)

	BeforeAll(func() {
		cfg := engineTestConfig()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		retry := engine.NewRetryManager(s, report.DefaultRegistry(), nil, cfg)
		rec = engine.NewReconciler(s, retry, cfg)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_jobs")
	})

	// claimExpired puts a job into running with a lease that already ran out,
	// as if its worker died mid-render.
	claimExpired := func(job model.Job) *model.Job {
		_, err := s.Job().Create(ctx, job)
		Expect(err).To(BeNil())
		running, err := s.Job().Claim(ctx, job.ID, "dead-worker", time.Now().Add(-10*time.Minute), time.Minute)
		Expect(err).To(BeNil())
		return running
	}

	It("requeues a job whose lease expired", func() {
		job := queuedJob("enrollment_summary", model.PriorityNormal)
		claimExpired(job)

		rec.ReconcileOnce(ctx, time.Now())

		reclaimed, err := s.Job().Get(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(reclaimed.Status).To(Equal(model.JobStatusQueued))
		Expect(reclaimed.RetryCount).To(Equal(1))
		Expect(reclaimed.LeaseOwner).To(BeEmpty())
		Expect(reclaimed.NextAttemptAt).NotTo(BeNil())
	})

	It("fails a repeatedly dying job once its budget is gone", func() {
		job := queuedJob("enrollment_summary", model.PriorityNormal)
		job.RetryCount = 3
		claimExpired(job)

		rec.ReconcileOnce(ctx, time.Now())

		failed, err := s.Job().Get(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(failed.Status).To(Equal(model.JobStatusFailed))
		Expect(failed.ErrorCode).To(Equal(engine.CodeWorkerLost))
		Expect(failed.ErrorMessage).To(ContainSubstring("dead-worker"))
	})

	It("leaves live leases alone", func() {
		job := queuedJob("enrollment_summary", model.PriorityNormal)
		_, err := s.Job().Create(ctx, job)
		Expect(err).To(BeNil())
		_, err = s.Job().Claim(ctx, job.ID, "healthy-worker", time.Now(), time.Minute)
		Expect(err).To(BeNil())

		rec.ReconcileOnce(ctx, time.Now())

		untouched, err := s.Job().Get(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(untouched.Status).To(Equal(model.JobStatusRunning))
		Expect(untouched.LeaseOwner).To(Equal("healthy-worker"))
	})
})
