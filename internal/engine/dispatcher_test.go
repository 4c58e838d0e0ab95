package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/engine"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

var _ = Describe("dispatcher", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		disp   *engine.Dispatcher
	)

	BeforeAll(func() {
		cfg := engineTestConfig()
		cfg.Engine.WorkerSlots = 2
		cfg.Engine.DepartmentSlots = 1

		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		provider, err := storage.NewLocalProvider(GinkgoT().TempDir())
		Expect(err).To(BeNil())

		registry := report.DefaultRegistry()
		retry := engine.NewRetryManager(s, registry, nil, cfg)
		executor := engine.NewExecutor(
			s, report.NewStaticSource(registry, 5), report.DefaultRenderers(),
			provider, retry, nil, "dispatch-test", cfg)
		disp = engine.NewDispatcher(s, executor, "dispatch-test", cfg)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_jobs")
	})

	status := func(id oid.ID) model.JobStatus {
		job, err := s.Job().Get(ctx, id)
		Expect(err).To(BeNil())
		return job.Status
	}

	It("claims a queued job and runs it to completion", func() {
		job := queuedJob("enrollment_summary", model.PriorityNormal)
		_, err := s.Job().Create(ctx, job)
		Expect(err).To(BeNil())

		disp.DispatchOnce(ctx)

		Eventually(func() model.JobStatus {
			return status(job.ID)
		}, 10*time.Second, 50*time.Millisecond).Should(Equal(model.JobStatusCompleted))

		completed, err := s.Job().Get(ctx, job.ID)
		Expect(err).To(BeNil())
		Expect(completed.ProgressPercent).To(Equal(100))
		Expect(completed.OutputStorage).NotTo(BeNil())
		Expect(completed.OutputStorage.Data.Key).To(ContainSubstring(string(job.ID)))
		Expect(completed.OutputExpiresAt).NotTo(BeNil())
		Expect(completed.LeaseOwner).To(BeEmpty())
	})

	It("defers jobs whose attempt time has not come", func() {
		job := queuedJob("enrollment_summary", model.PriorityNormal)
		next := time.Now().Add(time.Hour)
		job.NextAttemptAt = &next
		_, err := s.Job().Create(ctx, job)
		Expect(err).To(BeNil())

		disp.DispatchOnce(ctx)

		Consistently(func() model.JobStatus {
			return status(job.ID)
		}, 300*time.Millisecond, 50*time.Millisecond).Should(Equal(model.JobStatusQueued))
	})

	It("passes over jobs in a department at its running cap", func() {
		department := oid.New()

		// a job of the same department already running on another instance
		blocker := queuedJob("enrollment_summary", model.PriorityUrgent)
		blocker.DepartmentID = department
		_, err := s.Job().Create(ctx, blocker)
		Expect(err).To(BeNil())
		_, err = s.Job().Claim(ctx, blocker.ID, "other-instance", time.Now(), time.Minute)
		Expect(err).To(BeNil())

		capped := queuedJob("enrollment_summary", model.PriorityUrgent)
		capped.DepartmentID = department
		_, err = s.Job().Create(ctx, capped)
		Expect(err).To(BeNil())

		free := queuedJob("enrollment_summary", model.PriorityLow)
		_, err = s.Job().Create(ctx, free)
		Expect(err).To(BeNil())

		disp.DispatchOnce(ctx)

		// the unconstrained job runs even though the capped one outranks it
		Eventually(func() model.JobStatus {
			return status(free.ID)
		}, 10*time.Second, 50*time.Millisecond).Should(Equal(model.JobStatusCompleted))
		Expect(status(capped.ID)).To(Equal(model.JobStatusQueued))
		Expect(status(blocker.ID)).To(Equal(model.JobStatusRunning))
	})
})
