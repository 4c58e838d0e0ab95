package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

var _ = Describe("schedule service", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		srv    *service.ScheduleService
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewTestConfig())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		srv = service.NewScheduleService(s, report.DefaultRegistry())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_schedules")
	})

	Context("create", func() {
		It("computes the first occurrence in the schedule's timezone", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())
			Expect(created.IsActive).To(BeTrue())
			Expect(created.NextRunAt).NotTo(BeNil())
			Expect(created.NextRunAt.After(time.Now())).To(BeTrue())
			Expect(created.Timezone).To(Equal("UTC"))
		})

		It("rejects an unknown frequency", func() {
			request := createScheduleRequest()
			request.Frequency = "hourly"

			_, err := srv.CreateSchedule(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects an unknown timezone", func() {
			request := createScheduleRequest()
			request.Timezone = "Atlantis/Lost"

			_, err := srv.CreateSchedule(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects malformed creator and department references", func() {
			request := createScheduleRequest()
			request.CreatedBy = "registrar"
			_, err := srv.CreateSchedule(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			request = createScheduleRequest()
			department := oid.ID("term-2026")
			request.DepartmentID = &department
			_, err = srv.CreateSchedule(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("treats a dangling template reference as not found", func() {
			missing := oid.New()
			request := createScheduleRequest()
			request.TemplateID = &missing

			_, err := srv.CreateSchedule(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("update", func() {
		It("recomputes the next occurrence when the cadence changes", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())

			weekly := "weekly"
			updated, err := srv.UpdateSchedule(ctx, created.Id, &api.UpdateScheduleRequest{Frequency: &weekly})
			Expect(err).To(BeNil())
			Expect(updated.Frequency).To(Equal("weekly"))
			Expect(updated.NextRunAt.After(time.Now())).To(BeTrue())
		})

		It("keeps the next occurrence when only the name changes", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())

			name := "friday digest"
			updated, err := srv.UpdateSchedule(ctx, created.Id, &api.UpdateScheduleRequest{Name: &name})
			Expect(err).To(BeNil())
			Expect(updated.Name).To(Equal("friday digest"))
			Expect(updated.NextRunAt.Unix()).To(Equal(created.NextRunAt.Unix()))
		})

		It("returns not found for an unknown schedule", func() {
			name := "x"
			_, err := srv.UpdateSchedule(ctx, oid.New(), &api.UpdateScheduleRequest{Name: &name})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("pause and resume", func() {
		It("freezes a paused schedule and skips missed occurrences on resume", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())

			paused, err := srv.PauseSchedule(ctx, created.Id, "term break")
			Expect(err).To(BeNil())
			Expect(paused.IsActive).To(BeFalse())
			Expect(paused.PausedReason).To(Equal("term break"))

			// simulate occurrences elapsing during the pause
			stale := time.Now().Add(-72 * time.Hour)
			gormdb.Table("report_schedules").
				Where("id = ?", created.Id).Update("next_run_at", stale)

			resumed, err := srv.ResumeSchedule(ctx, created.Id)
			Expect(err).To(BeNil())
			Expect(resumed.IsActive).To(BeTrue())
			Expect(resumed.PausedReason).To(BeEmpty())
			Expect(resumed.NextRunAt.After(time.Now())).To(BeTrue())
		})

		It("treats resuming an active schedule as a no-op", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())

			resumed, err := srv.ResumeSchedule(ctx, created.Id)
			Expect(err).To(BeNil())
			Expect(resumed.NextRunAt.Unix()).To(Equal(created.NextRunAt.Unix()))
		})
	})

	Context("list and delete", func() {
		It("filters by active state", func() {
			first, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())
			second := createScheduleRequest()
			second.Name = "evening digest"
			other, err := srv.CreateSchedule(ctx, second)
			Expect(err).To(BeNil())

			_, err = srv.PauseSchedule(ctx, other.Id, "")
			Expect(err).To(BeNil())

			active := true
			schedules, err := srv.ListSchedules(ctx, service.ScheduleFilter{Active: &active})
			Expect(err).To(BeNil())
			Expect(schedules).To(HaveLen(1))
			Expect(schedules[0].Id).To(Equal(first.Id))
		})

		It("deletes a schedule and reports a missing one", func() {
			created, err := srv.CreateSchedule(ctx, createScheduleRequest())
			Expect(err).To(BeNil())

			Expect(srv.DeleteSchedule(ctx, created.Id)).To(Succeed())
			Expect(srv.DeleteSchedule(ctx, created.Id)).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})
})
