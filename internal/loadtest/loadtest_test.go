package loadtest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/farmwatch/internal/adapters/http/api"
	service "github.com/okian/farmwatch/internal/app"
	"github.com/okian/farmwatch/internal/loadtest"
	"github.com/okian/farmwatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		readings := loadtest.NewGenerator(42).Generate(500)

		Convey("Then every reading should be valid and in range", func() {
			So(readings, ShouldHaveLength, 500)
			seen := make(map[string]bool)
			for _, r := range readings {
				So(r.DHAPercent, ShouldBeBetweenOrEqual, 0.0, 10.0)
				So(r.MRIVolume, ShouldBeBetweenOrEqual, 0.0, 1.0)
				So(r.PhoneNumber, ShouldHaveLength, 8)
				So(r.VillageName, ShouldNotBeEmpty)
				So(seen[r.FarmerID], ShouldBeFalse)
				seen[r.FarmerID] = true
			}
		})

		Convey("Then the same seed should give the same biometrics", func() {
			again := loadtest.NewGenerator(42).Generate(500)
			for i := range readings {
				So(again[i].DHAPercent, ShouldEqual, readings[i].DHAPercent)
				So(again[i].MRIVolume, ShouldEqual, readings[i].MRIVolume)
			}
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a reading and the service's answer", t, func() {
		r := loadtest.Reading{FarmerID: "HK-001", DHAPercent: 2.1, MRIVolume: 0.32}
		good := loadtest.Response{FarmerID: "HK-001", RiskScore: 0.243, Certainty: 0.97, AlertNeeded: true, SMSSent: true}

		Convey("Then a correct answer should verify", func() {
			So(loadtest.Verify(r, good, true), ShouldBeEmpty)
		})

		Convey("Then a wrong risk score should be reported", func() {
			bad := good
			bad.RiskScore = 0.249
			So(loadtest.Verify(r, bad, true), ShouldHaveLength, 1)
		})

		Convey("Then a remote certainty should only be range-checked", func() {
			remote := good
			remote.Certainty = 0.9
			So(loadtest.Verify(r, remote, false), ShouldBeEmpty)
			So(loadtest.Verify(r, remote, true), ShouldHaveLength, 1)
		})

		Convey("Then an SMS without an alert should be reported", func() {
			bad := loadtest.Response{FarmerID: "HK-002", RiskScore: 0.61, Certainty: 0.85, SMSSent: true}
			r2 := loadtest.Reading{FarmerID: "HK-002", DHAPercent: 5.5, MRIVolume: 0.75}
			So(loadtest.Verify(r2, bad, true), ShouldContain, "sms_sent without alert_needed")
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running farmwatch API", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a load test runs against it", func() {
			out := filepath.Join(t.TempDir(), "out", "readings.json")
			stats, err := loadtest.Run(ctx, &loadtest.Config{
				BaseURL:     srv.URL,
				NumReadings: 200,
				Workers:     8,
				Timeout:     5 * time.Second,
				Seed:        7,
				OutputFile:  out,
			})

			Convey("Then every answer should match the rules", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 200)
				So(stats.Successful, ShouldEqual, 200)
				So(stats.Mismatches, ShouldEqual, 0)
				So(stats.Alerts, ShouldBeGreaterThan, 0)
			})

			Convey("Then the readings should be saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var saved []loadtest.Reading
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 200)
			})
		})
	})

	Convey("Given a service that answers wrongly", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"healthy","reasoner_available":false}`))
		})
		mux.HandleFunc("POST /calculate-risk", func(w http.ResponseWriter, r *http.Request) {
			var in loadtest.Reading
			_ = json.NewDecoder(r.Body).Decode(&in)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(loadtest.Response{FarmerID: in.FarmerID, RiskScore: -1, Certainty: 0.8})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Then Run should report the mismatches", func() {
			stats, err := loadtest.Run(context.Background(), &loadtest.Config{
				BaseURL: srv.URL, NumReadings: 10, Workers: 2, Timeout: time.Second, Seed: 1,
			})
			So(errors.Is(err, loadtest.ErrMismatch), ShouldBeTrue)
			So(stats.Mismatches, ShouldEqual, 10)
		})
	})

	Convey("Given no service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then Run should fail the health check", func() {
			_, err := loadtest.Run(context.Background(), &loadtest.Config{
				BaseURL: url, NumReadings: 1, Workers: 1, Timeout: time.Second,
			})
			So(err, ShouldNotBeNil)
		})
	})
}
