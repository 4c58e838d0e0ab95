package service_test

import (
	"context"

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

var _ = Describe("template service", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
		ctx    context.Context
		srv    *service.TemplateService
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewTestConfig())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		ctx = context.TODO()
		Expect(s.AutoMigrate()).To(Succeed())

		srv = service.NewTemplateService(s, report.DefaultRegistry())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM report_templates")
	})

	Context("create", func() {
		It("stores a template with its parameter defaults", func() {
			created, err := srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", oid.New()))
			Expect(err).To(BeNil())
			Expect(created.Parameters.Measures).To(Equal([]string{"enrollments"}))
			Expect(created.Output.Format).To(Equal("xlsx"))
		})

		It("conflicts on a duplicate name for the same owner", func() {
			owner := oid.New()
			_, err := srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", owner))
			Expect(err).To(BeNil())

			_, err = srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", owner))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))

			// a different owner may reuse the name
			_, err = srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", oid.New()))
			Expect(err).To(BeNil())
		})

		It("rejects malformed owner and department references", func() {
			request := createTemplateRequest("bad owner", oid.ID("dean-of-students"))
			_, err := srv.CreateTemplate(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			request = createTemplateRequest("bad department", oid.New())
			department := oid.ID("MATH")
			request.DepartmentID = &department
			_, err = srv.CreateTemplate(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("rejects parameters the report type does not allow", func() {
			request := createTemplateRequest("bad measures", oid.New())
			request.Parameters.Measures = []string{"bitcoin_price"}

			_, err := srv.CreateTemplate(ctx, request)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})
	})

	Context("update", func() {
		It("applies a partial update and validates the new output format", func() {
			created, err := srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", oid.New()))
			Expect(err).To(BeNil())

			description := "used by the registrar office"
			updated, err := srv.UpdateTemplate(ctx, created.Id, &api.UpdateTemplateRequest{Description: &description})
			Expect(err).To(BeNil())
			Expect(updated.Description).To(Equal(description))
			Expect(updated.Name).To(Equal("quarterly defaults"))

			_, err = srv.UpdateTemplate(ctx, created.Id, &api.UpdateTemplateRequest{
				Output: &api.OutputRequest{Format: "pdf"},
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})
	})

	Context("clone", func() {
		It("copies the template under a new name without its sharing scope", func() {
			request := createTemplateRequest("quarterly defaults", oid.New())
			request.Sharing = &api.SharingScope{Roles: []string{"registrar"}}
			created, err := srv.CreateTemplate(ctx, request)
			Expect(err).To(BeNil())

			clone, err := srv.CloneTemplate(ctx, created.Id, "fall variant")
			Expect(err).To(BeNil())
			Expect(clone.Id).NotTo(Equal(created.Id))
			Expect(clone.Name).To(Equal("fall variant"))
			Expect(clone.OwnerID).To(Equal(created.OwnerID))
			Expect(clone.Parameters.Measures).To(Equal([]string{"enrollments"}))
			Expect(clone.Sharing).To(BeNil())
		})

		It("defaults the clone name", func() {
			created, err := srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", oid.New()))
			Expect(err).To(BeNil())

			clone, err := srv.CloneTemplate(ctx, created.Id, "")
			Expect(err).To(BeNil())
			Expect(clone.Name).To(Equal("quarterly defaults (copy)"))
		})

		It("returns not found for an unknown source", func() {
			_, err := srv.CloneTemplate(ctx, oid.New(), "whatever")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("delete", func() {
		It("removes the template", func() {
			created, err := srv.CreateTemplate(ctx, createTemplateRequest("quarterly defaults", oid.New()))
			Expect(err).To(BeNil())

			Expect(srv.DeleteTemplate(ctx, created.Id)).To(Succeed())
			_, err = srv.GetTemplate(ctx, created.Id)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})
})
