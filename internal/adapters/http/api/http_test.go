package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/farmwatch/internal/adapters/http/api"
	"github.com/okian/farmwatch/internal/adapters/sms"
	service "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockDependencies struct {
	mu         sync.Mutex
	assessment model.Assessment
	err        error
	panic      bool
	got        []model.Reading
	health     service.Health
}

func (m *mockDependencies) Assess(ctx context.Context, r model.Reading) (model.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panic {
		panic("assess exploded")
	}
	m.got = append(m.got, r)
	if m.err != nil {
		return model.Assessment{}, m.err
	}
	a := m.assessment
	a.FarmerID = r.FarmerID
	return a, nil
}

func (m *mockDependencies) Health(ctx context.Context) service.Health {
	return m.health
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

const validBody = `{"farmer_id":"HK-001","plasma_dha_pct":2.1,"mri_volume_norm":0.32,"phone_number":"91234567","village_name":"Lantau"}`

func newMux(deps api.Dependencies, stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stats).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func fieldNames(body errorBody) []string {
	names := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		fixed := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
		deps := &mockDependencies{
			health: service.Health{Status: "healthy", ReasonerAvailable: true, Timestamp: fixed},
		}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true, "assessments": 3}}
		mux := newMux(deps, stats)

		Convey("When requesting /health", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then it should report status and reasoner availability", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "healthy")
				So(body["reasoner_available"], ShouldEqual, true)
				So(body["timestamp"], ShouldEqual, "2024-03-01T00:30:00Z")
			})
		})

		Convey("When requesting /stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then it should return the provider's stats", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["started"], ShouldEqual, true)
				So(body["assessments"], ShouldEqual, float64(3))
			})
		})

		Convey("When requesting /metrics", func() {
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then it should expose the custom registry", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "farmwatch_")
			})
		})

		Convey("When using the wrong method", func() {
			w := do(mux, http.MethodGet, "/calculate-risk", "")

			Convey("Then the mux should answer 405", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestRiskHandler(t *testing.T) {
	Convey("Given a risk endpoint", t, func() {
		deps := &mockDependencies{
			assessment: model.Assessment{
				RequestID:    "req-123",
				RiskScore:    0.243,
				Certainty:    0.97,
				AlertNeeded:  true,
				SMSScheduled: true,
				Timestamp:    time.Date(2024, 3, 1, 8, 30, 0, 0, time.FixedZone("HKT", 8*3600)),
			},
		}
		mux := newMux(deps, &mockStatsProvider{})

		Convey("When a valid reading is posted", func() {
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then the assessment should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("X-Request-ID"), ShouldEqual, "req-123")

				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["farmer_id"], ShouldEqual, "HK-001")
				So(body["risk_score"], ShouldEqual, 0.243)
				So(body["certainty"], ShouldEqual, 0.97)
				So(body["alert_needed"], ShouldEqual, true)
				So(body["sms_sent"], ShouldEqual, true)
				So(body["timestamp"], ShouldEqual, "2024-03-01T00:30:00Z")
			})

			Convey("Then the reading should reach the service unchanged", func() {
				So(deps.got, ShouldHaveLength, 1)
				So(deps.got[0], ShouldResemble, model.Reading{
					FarmerID:    "HK-001",
					DHAPercent:  2.1,
					MRIVolume:   0.32,
					PhoneNumber: "91234567",
					VillageName: "Lantau",
				})
			})
		})

		Convey("When a required number is missing", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":"HK-001","mri_volume_norm":0.32,"phone_number":"91234567","village_name":"Lantau"}`)

			Convey("Then it should answer 422 naming the field", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "validation_error")
				So(fieldNames(body), ShouldResemble, []string{"plasma_dha_pct"})
				So(deps.got, ShouldBeEmpty)
			})
		})

		Convey("When values are out of range", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":"HK-001","plasma_dha_pct":12,"mri_volume_norm":1.2,"phone_number":"91234567","village_name":"Lantau"}`)

			Convey("Then it should answer 422 for both fields", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(fieldNames(decodeError(w)), ShouldResemble, []string{"plasma_dha_pct", "mri_volume_norm"})
			})
		})

		Convey("When boundary values are posted", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":"HK-001","plasma_dha_pct":0,"mri_volume_norm":1,"phone_number":"91234567","village_name":"Lantau"}`)

			Convey("Then they should be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When text fields are blank", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":" ","plasma_dha_pct":5,"mri_volume_norm":0.5,"phone_number":"none","village_name":""}`)

			Convey("Then each should be reported", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(fieldNames(decodeError(w)), ShouldResemble, []string{"farmer_id", "phone_number", "village_name"})
			})
		})

		Convey("When a number is sent as text", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":"HK-001","plasma_dha_pct":"low","mri_volume_norm":0.32,"phone_number":"91234567","village_name":"Lantau"}`)

			Convey("Then it should answer 422 for that field", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(fieldNames(decodeError(w)), ShouldResemble, []string{"plasma_dha_pct"})
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/calculate-risk", `{"farmer_id":`)

			Convey("Then it should answer 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When the body is empty", func() {
			w := do(mux, http.MethodPost, "/calculate-risk", "")

			Convey("Then it should answer 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the service rejects the reading", func() {
			deps.err = fmt.Errorf("%w: village_name is required", service.ErrInvalidReading)
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then it should answer 422", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(w).Code, ShouldEqual, "validation_error")
			})
		})

		Convey("When the service is not started", func() {
			deps.err = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then it should answer 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the service fails internally", func() {
			deps.err = errors.New("database password is hunter2")
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then it should answer 500 without leaking the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "internal_error")
				So(body.Message, ShouldNotContainSubstring, "hunter2")
			})
		})

		Convey("When the service panics", func() {
			deps.panic = true
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then it should answer 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w).Code, ShouldEqual, "internal_error")
			})
		})
	})
}

func TestCalculateRiskEndToEnd(t *testing.T) {
	Convey("Given the API backed by the real service and a webhook", t, func() {
		var (
			mu    sync.Mutex
			calls []map[string]string
		)
		hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			calls = append(calls, body)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer hook.Close()
		received := func() []map[string]string {
			mu.Lock()
			defer mu.Unlock()
			return append([]map[string]string(nil), calls...)
		}

		ctx := context.Background()
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithNotifier(sms.NewNotifier(hook.URL, "+1234567890")),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc, svc)

		Convey("When a high-risk reading is posted", func() {
			w := do(mux, http.MethodPost, "/calculate-risk", validBody)

			Convey("Then the response should flag an alert and the webhook be called once", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["risk_score"], ShouldEqual, 0.243)
				So(body["certainty"], ShouldEqual, 0.97)
				So(body["alert_needed"], ShouldEqual, true)
				So(body["sms_sent"], ShouldEqual, true)

				So(svc.Stop(ctx), ShouldBeNil)
				got := received()
				So(got, ShouldHaveLength, 1)
				So(got[0]["to"], ShouldEqual, "+85291234567")
				So(got[0]["body"], ShouldStartWith, "URGENT MEDICAL ALERT (Certainty: 97%)")
			})
		})

		Convey("When a healthy reading is posted", func() {
			w := do(mux, http.MethodPost, "/calculate-risk",
				`{"farmer_id":"HK-002","plasma_dha_pct":5.5,"mri_volume_norm":0.75,"phone_number":"91234567","village_name":"Tai O"}`)

			Convey("Then no SMS should be sent", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["risk_score"], ShouldEqual, 0.61)
				So(body["alert_needed"], ShouldEqual, false)
				So(body["sms_sent"], ShouldEqual, false)

				So(svc.Stop(ctx), ShouldBeNil)
				So(received(), ShouldBeEmpty)
			})
		})
	})
}
