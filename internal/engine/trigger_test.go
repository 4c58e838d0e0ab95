package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/engine"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

var _ = Describe("schedule trigger", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		trig   *engine.Trigger
	)

	BeforeAll(func() {
		cfg := engineTestConfig()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		trig = engine.NewTrigger(s, nil, cfg)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_jobs")
		gormdb.Exec("DELETE FROM report_schedules")
	})

	activeSchedule := func(frequency string, nextRunAt time.Time) *model.Schedule {
		schedule := model.Schedule{
			ID:           oid.New(),
			Name:         "enrollment digest",
			ReportType:   "enrollment_summary",
			Frequency:    frequency,
			Timezone:     "UTC",
			TimeOfDay:    "09:00",
			OutputFormat: "csv",
			Priority:     model.PriorityNormal,
			IsActive:     true,
			NextRunAt:    &nextRunAt,
			CreatedBy:    oid.New(),
		}
		created, err := s.Schedule().Create(ctx, schedule)
		Expect(err).To(BeNil())
		return created
	}

	jobsForSchedule := func(id oid.ID) model.JobList {
		jobs, err := s.Job().List(ctx, st.NewJobQueryFilter().ByScheduleID(id), nil)
		Expect(err).To(BeNil())
		return jobs
	}

	It("enqueues a job for a due schedule and advances it", func() {
		runAt := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
		now := runAt.Add(5 * time.Minute)
		schedule := activeSchedule("daily", runAt)

		trig.TickOnce(ctx, now)

		jobs := jobsForSchedule(schedule.ID)
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Status).To(Equal(model.JobStatusQueued))
		Expect(jobs[0].ScheduledFor.Unix()).To(Equal(runAt.Unix()))
		Expect(jobs[0].RequestedBy).To(Equal(schedule.CreatedBy))
		Expect(jobs[0].Name).To(ContainSubstring("2026-08-31 09:00"))

		advanced, err := s.Schedule().Get(ctx, schedule.ID)
		Expect(err).To(BeNil())
		Expect(advanced.LastRunAt).NotTo(BeNil())
		Expect(advanced.NextRunAt.Unix()).To(Equal(runAt.AddDate(0, 0, 1).Unix()))
		Expect(advanced.IsActive).To(BeTrue())
	})

	It("does not fire a schedule that is not due", func() {
		now := time.Now()
		schedule := activeSchedule("daily", now.Add(time.Hour))

		trig.TickOnce(ctx, now)

		Expect(jobsForSchedule(schedule.ID)).To(BeEmpty())
	})

	It("deduplicates when another replica already enqueued the occurrence", func() {
		runAt := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
		now := runAt.Add(5 * time.Minute)
		schedule := activeSchedule("daily", runAt)

		replica := queuedJob("enrollment_summary", model.PriorityNormal)
		replica.ScheduleID = schedule.ID
		replica.ScheduledFor = &runAt
		_, err := s.Job().Create(ctx, replica)
		Expect(err).To(BeNil())

		trig.TickOnce(ctx, now)

		// no second job, but the schedule still advances
		Expect(jobsForSchedule(schedule.ID)).To(HaveLen(1))
		advanced, err := s.Schedule().Get(ctx, schedule.ID)
		Expect(err).To(BeNil())
		Expect(advanced.NextRunAt.Unix()).To(Equal(runAt.AddDate(0, 0, 1).Unix()))
	})

	It("fires one job after downtime and skips the missed occurrences", func() {
		runAt := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
		now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
		schedule := activeSchedule("daily", runAt)

		trig.TickOnce(ctx, now)

		Expect(jobsForSchedule(schedule.ID)).To(HaveLen(1))
		advanced, err := s.Schedule().Get(ctx, schedule.ID)
		Expect(err).To(BeNil())
		// next slot strictly in the future, the 29th and 30th never fire
		Expect(advanced.NextRunAt.Unix()).To(Equal(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC).Unix()))
	})

	It("deactivates a one-shot schedule after it fires", func() {
		runAt := time.Now().Add(-time.Minute).UTC()
		schedule := activeSchedule("once", runAt)

		trig.TickOnce(ctx, time.Now())

		Expect(jobsForSchedule(schedule.ID)).To(HaveLen(1))
		fired, err := s.Schedule().Get(ctx, schedule.ID)
		Expect(err).To(BeNil())
		Expect(fired.IsActive).To(BeFalse())
		Expect(fired.NextRunAt).To(BeNil())
	})
})
