package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

func dailySchedule(nextRunAt *time.Time) model.Schedule {
	return model.Schedule{
		ID:           oid.New(),
		Name:         "weekly enrollment",
		ReportType:   "enrollment_summary",
		Frequency:    "daily",
		Timezone:     "UTC",
		TimeOfDay:    "09:00",
		OutputFormat: "csv",
		Priority:     model.PriorityNormal,
		IsActive:     true,
		NextRunAt:    nextRunAt,
		CreatedBy:    oid.New(),
	}
}

var _ = Describe("schedule store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewTestConfig())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_schedules")
	})

	Context("due", func() {
		It("returns only active schedules whose time has come", func() {
			past := time.Now().Add(-time.Minute)
			future := time.Now().Add(time.Hour)

			due := dailySchedule(&past)
			_, err := s.Schedule().Create(ctx, due)
			Expect(err).To(BeNil())

			notYet := dailySchedule(&future)
			_, err = s.Schedule().Create(ctx, notYet)
			Expect(err).To(BeNil())

			paused := dailySchedule(&past)
			paused.IsActive = false
			_, err = s.Schedule().Create(ctx, paused)
			Expect(err).To(BeNil())

			schedules, err := s.Schedule().Due(ctx, time.Now())
			Expect(err).To(BeNil())
			Expect(schedules).To(HaveLen(1))
			Expect(schedules[0].ID).To(Equal(due.ID))
		})
	})

	Context("advance", func() {
		It("records the firing and the next occurrence", func() {
			past := time.Now().Add(-time.Minute)
			schedule := dailySchedule(&past)
			_, err := s.Schedule().Create(ctx, schedule)
			Expect(err).To(BeNil())

			firedAt := time.Now().UTC()
			next := firedAt.Add(24 * time.Hour)
			Expect(s.Schedule().Advance(ctx, schedule.ID, firedAt, &next, true)).To(Succeed())

			fetched, err := s.Schedule().Get(ctx, schedule.ID)
			Expect(err).To(BeNil())
			Expect(fetched.LastRunAt).ToNot(BeNil())
			Expect(fetched.NextRunAt.Unix()).To(Equal(next.Unix()))
			Expect(fetched.IsActive).To(BeTrue())
		})

		It("deactivates a one-shot schedule", func() {
			past := time.Now().Add(-time.Minute)
			schedule := dailySchedule(&past)
			schedule.Frequency = "once"
			_, err := s.Schedule().Create(ctx, schedule)
			Expect(err).To(BeNil())

			Expect(s.Schedule().Advance(ctx, schedule.ID, time.Now(), nil, false)).To(Succeed())

			fetched, err := s.Schedule().Get(ctx, schedule.ID)
			Expect(err).To(BeNil())
			Expect(fetched.IsActive).To(BeFalse())
			Expect(fetched.NextRunAt).To(BeNil())
		})
	})

	Context("pause and resume", func() {
		It("pausing keeps the frozen next run, resuming replaces it", func() {
			next := time.Now().Add(time.Hour).UTC()
			schedule := dailySchedule(&next)
			_, err := s.Schedule().Create(ctx, schedule)
			Expect(err).To(BeNil())

			pausedSchedule, err := s.Schedule().SetActive(ctx, schedule.ID, false, "quarter closed", nil)
			Expect(err).To(BeNil())
			Expect(pausedSchedule.IsActive).To(BeFalse())
			Expect(pausedSchedule.PausedReason).To(Equal("quarter closed"))
			Expect(pausedSchedule.NextRunAt).ToNot(BeNil())

			resumeAt := time.Now().Add(2 * time.Hour).UTC()
			resumed, err := s.Schedule().SetActive(ctx, schedule.ID, true, "", &resumeAt)
			Expect(err).To(BeNil())
			Expect(resumed.IsActive).To(BeTrue())
			Expect(resumed.PausedReason).To(BeEmpty())
			Expect(resumed.NextRunAt.Unix()).To(Equal(resumeAt.Unix()))
		})

		It("returns not found for an unknown schedule", func() {
			_, err := s.Schedule().SetActive(ctx, oid.New(), false, "", nil)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})
})
