package service_test

import (
	"context"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

var _ = Describe("job service", Ordered, func() {
	var (
		s        st.Store
		gormdb   *gorm.DB
		ctx      context.Context
		provider storage.Provider
		srv      *service.JobService
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewTestConfig())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		provider, err = storage.NewLocalProvider(GinkgoT().TempDir())
		Expect(err).To(BeNil())

		srv = service.NewJobService(s, report.DefaultRegistry(), provider, nil)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_jobs")
		gormdb.Exec("DELETE FROM report_templates")
	})

	Context("create", func() {
		It("enqueues a job and reports its queue position", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			Expect(created.Status).To(Equal(api.JobStatusQueued))
			Expect(created.QueuePosition).To(HaveValue(Equal(0)))

			job, err := s.Job().Get(ctx, created.Id)
			Expect(err).To(BeNil())
			Expect(job.Priority).To(Equal(model.PriorityNormal))
		})

		It("counts queued work ahead of a new submission", func() {
			urgent := createJobRequest()
			urgent.Priority = "urgent"
			_, err := srv.CreateJob(ctx, urgent)
			Expect(err).To(BeNil())

			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			Expect(created.QueuePosition).To(HaveValue(Equal(1)))
		})

		It("rejects an unknown report type", func() {
			request := createJobRequest()
			request.ReportType = "grade_ledger"

			_, err := srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects parameters outside the type's schema", func() {
			request := createJobRequest()
			request.Parameters.GroupBy = []string{"galaxy"}

			_, err := srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects a missing date range for range-bound types", func() {
			request := createJobRequest()
			request.Parameters.DateRange = nil

			_, err := srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects malformed requester and department references", func() {
			request := createJobRequest()
			request.RequestedBy = "bogus-requester"
			_, err := srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			request = createJobRequest()
			department := oid.ID("not-a-24-hex-identifier-at-all!")
			request.DepartmentID = &department
			_, err = srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			total, err := s.Job().Count(ctx, st.NewJobQueryFilter())
			Expect(err).To(BeNil())
			Expect(total).To(BeZero())
		})

		It("treats a dangling template reference as not found", func() {
			missing := oid.New()
			request := createJobRequest()
			request.TemplateID = &missing

			_, err := srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("estimates wait from queue position and recent run times", func() {
			startedAt := time.Now().Add(-time.Hour)
			completedAt := startedAt.Add(2 * time.Minute)
			history := model.Job{
				ID:           oid.New(),
				ReportType:   "enrollment_summary",
				Name:         "history",
				OutputFormat: "csv",
				Priority:     model.PriorityNormal,
				Status:       model.JobStatusCompleted,
				RequestedBy:  oid.New(),
				StartedAt:    &startedAt,
				CompletedAt:  &completedAt,
			}
			_, err := s.Job().Create(ctx, history)
			Expect(err).To(BeNil())

			urgent := createJobRequest()
			urgent.Priority = "urgent"
			first, err := srv.CreateJob(ctx, urgent)
			Expect(err).To(BeNil())
			Expect(first.QueuePosition).To(HaveValue(Equal(0)))
			Expect(first.EstimatedWaitTime).To(HaveValue(Equal(int64(0))))

			second, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			Expect(second.QueuePosition).To(HaveValue(Equal(1)))
			Expect(second.EstimatedWaitTime).To(HaveValue(Equal(int64(120))))
		})

		It("rejects a template of a different report type", func() {
			tmplSrv := service.NewTemplateService(s, report.DefaultRegistry())
			tmpl := createTemplateRequest("assessment defaults", oid.New())
			tmpl.ReportType = "assessment_performance"
			tmpl.Parameters.Measures = nil
			tmpl.Output.Format = "xlsx"
			createdTmpl, err := tmplSrv.CreateTemplate(ctx, tmpl)
			Expect(err).To(BeNil())

			request := createJobRequest()
			request.TemplateID = &createdTmpl.Id

			_, err = srv.CreateJob(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})
	})

	Context("list and get", func() {
		It("pages and filters by status", func() {
			for i := 0; i < 3; i++ {
				_, err := srv.CreateJob(ctx, createJobRequest())
				Expect(err).To(BeNil())
			}

			list, err := srv.ListJobs(ctx, service.JobFilter{Status: api.JobStatusQueued, Limit: 2})
			Expect(err).To(BeNil())
			Expect(list.Items).To(HaveLen(2))
			Expect(list.Total).To(Equal(int64(3)))
			Expect(list.Page).To(Equal(1))

			empty, err := srv.ListJobs(ctx, service.JobFilter{Status: api.JobStatusFailed})
			Expect(err).To(BeNil())
			Expect(empty.Items).To(BeEmpty())
		})

		It("returns not found for an unknown job", func() {
			_, err := srv.GetJob(ctx, oid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("cancel", func() {
		It("cancels a queued job immediately", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())

			cancelled, err := srv.CancelJob(ctx, created.Id, "no longer needed")
			Expect(err).To(BeNil())
			Expect(cancelled.Status).To(Equal(api.JobStatusCancelled))
			Expect(cancelled.CancelledAt).NotTo(BeNil())
		})

		It("only flags a running job", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			_, err = s.Job().Claim(ctx, created.Id, "worker-1", time.Now(), time.Minute)
			Expect(err).To(BeNil())

			cancelled, err := srv.CancelJob(ctx, created.Id, "")
			Expect(err).To(BeNil())
			Expect(cancelled.Status).To(Equal(api.JobStatusRunning))

			job, err := s.Job().Get(ctx, created.Id)
			Expect(err).To(BeNil())
			Expect(job.CancelRequested).To(BeTrue())
		})

		It("conflicts on a completed job", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			_, err = s.Job().Claim(ctx, created.Id, "worker-1", time.Now(), time.Minute)
			Expect(err).To(BeNil())
			_, err = s.Job().Complete(ctx, created.Id, "worker-1",
				api.StorageDescriptor{Provider: "local", Key: "k", Url: "u"}, time.Now().Add(time.Hour), time.Now())
			Expect(err).To(BeNil())

			_, err = srv.CancelJob(ctx, created.Id, "")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))
		})
	})

	Context("retry", func() {
		failedJob := func() oid.ID {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			_, err = s.Job().Claim(ctx, created.Id, "worker-1", time.Now(), time.Minute)
			Expect(err).To(BeNil())
			_, err = s.Job().FailTerminal(ctx, created.Id, model.JobStatusRunning, "render_failed", "boom", time.Now())
			Expect(err).To(BeNil())
			return created.Id
		}

		It("requeues a failed job immediately", func() {
			id := failedJob()

			retried, err := srv.RetryJob(ctx, id)
			Expect(err).To(BeNil())
			Expect(retried.Status).To(Equal(api.JobStatusQueued))
			Expect(retried.RetryCount).To(Equal(1))

			job, err := s.Job().Get(ctx, id)
			Expect(err).To(BeNil())
			Expect(job.NextAttemptAt).To(BeNil())
		})

		It("refuses to retry a job that is not failed", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())

			_, err = srv.RetryJob(ctx, created.Id)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))
		})
	})

	Context("download", func() {
		completeWithArtifact := func(expiresAt time.Time) oid.ID {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())
			_, err = s.Job().Claim(ctx, created.Id, "worker-1", time.Now(), time.Minute)
			Expect(err).To(BeNil())

			descriptor, err := provider.Put(ctx, "jobs/"+string(created.Id)+"/report.csv",
				[]byte("course,enrollments\nGO-101,42\n"), "text/csv")
			Expect(err).To(BeNil())
			_, err = s.Job().Complete(ctx, created.Id, "worker-1", descriptor, expiresAt, time.Now())
			Expect(err).To(BeNil())
			return created.Id
		}

		It("streams the stored artifact", func() {
			id := completeWithArtifact(time.Now().Add(time.Hour))

			download, err := srv.DownloadJobOutput(ctx, id)
			Expect(err).To(BeNil())
			defer download.Content.Close()

			Expect(download.ContentType).To(Equal("text/csv"))
			Expect(download.Filename).To(Equal(string(id) + ".csv"))
			content, err := io.ReadAll(download.Content)
			Expect(err).To(BeNil())
			Expect(string(content)).To(ContainSubstring("GO-101"))
		})

		It("refuses a job that has not completed", func() {
			created, err := srv.CreateJob(ctx, createJobRequest())
			Expect(err).To(BeNil())

			_, err = srv.DownloadJobOutput(ctx, created.Id)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrOutputNotReady{}))
		})

		It("refuses an expired output", func() {
			id := completeWithArtifact(time.Now().Add(-time.Minute))

			_, err := srv.DownloadJobOutput(ctx, id)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrOutputExpired{}))
		})
	})
})
