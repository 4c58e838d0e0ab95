package v1alpha1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	handlers "github.com/AttuneLearning/cadencelms-report-engine/internal/handlers/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	st "github.com/AttuneLearning/cadencelms-report-engine/internal/store"
)

var _ = Describe("job handlers", Ordered, func() {
	var (
		s      st.Store
		router chi.Router
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewTestConfig())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		Expect(s.AutoMigrate()).To(Succeed())

		provider, err := storage.NewLocalProvider(GinkgoT().TempDir())
		Expect(err).To(BeNil())

		registry := report.DefaultRegistry()
		handler := handlers.NewServiceHandler(
			service.NewJobService(s, registry, provider, nil),
			service.NewScheduleService(s, registry),
			service.NewTemplateService(s, registry),
		)
		router = chi.NewRouter()
		handler.Routes(router)
	})

	AfterAll(func() {
		s.Close()
	})

	get := func(target string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
		return recorder
	}

	Context("list", func() {
		It("accepts RFC 3339 creation time filters", func() {
			response := get("/api/v1/reports/jobs?createdAfter=2026-08-01T00:00:00Z&createdBefore=2026-09-01T00:00:00Z")
			Expect(response.Code).To(Equal(http.StatusOK))
		})

		It("rejects an unparseable createdAfter filter", func() {
			response := get("/api/v1/reports/jobs?createdAfter=last-tuesday")
			Expect(response.Code).To(Equal(http.StatusBadRequest))

			var body api.Error
			Expect(json.Unmarshal(response.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error).To(Equal("validation_failed"))
			Expect(body.Message).To(ContainSubstring("createdAfter"))
		})

		It("rejects an unparseable createdBefore filter", func() {
			response := get("/api/v1/reports/jobs?createdBefore=2026-08-01")
			Expect(response.Code).To(Equal(http.StatusBadRequest))

			var body api.Error
			Expect(json.Unmarshal(response.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error).To(Equal("validation_failed"))
			Expect(body.Message).To(ContainSubstring("createdBefore"))
		})
	})
})
