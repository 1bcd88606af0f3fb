package reputation_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/reputation"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func newTestClient(t *testing.T, handler http.HandlerFunc) *reputation.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return reputation.NewClient(srv.URL, "test-key", 5*time.Second, guard.NewNopLogger())
}

func TestClient_Lookup(t *testing.T) {
	t.Run("decodes analysis stats from a full report", func(t *testing.T) {
		var gotPath, gotKey string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-apikey")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"data": {
					"id": "` + testHash + `",
					"type": "file",
					"attributes": {
						"last_analysis_stats": {
							"harmless": 58,
							"malicious": 2,
							"suspicious": 1,
							"undetected": 9,
							"timeout": 1
						}
					}
				}
			}`))
		})

		report, err := client.Lookup(context.Background(), testHash)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}

		if gotPath != "/files/"+testHash {
			t.Errorf("request path = %s", gotPath)
		}
		if gotKey != "test-key" {
			t.Errorf("x-apikey = %q", gotKey)
		}

		if !report.HasAnalysis {
			t.Fatal("report.HasAnalysis = false, want true")
		}
		if report.Harmless != 58 || report.Malicious != 2 || report.Suspicious != 1 ||
			report.Undetected != 9 || report.Timeout != 1 {
			t.Errorf("report stats = %+v", report)
		}
		if report.Verdict(2) != guard.VerdictMalicious {
			t.Errorf("Verdict(2) = %v, want Malicious", report.Verdict(2))
		}
	})

	t.Run("missing stats produce a neutral report", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": {"id": "x", "type": "file", "attributes": {}}}`))
		})

		report, err := client.Lookup(context.Background(), testHash)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if report.HasAnalysis {
			t.Error("report.HasAnalysis = true, want false")
		}
		if report.SafetyScore() != guard.NeutralScore {
			t.Errorf("SafetyScore() = %d, want neutral", report.SafetyScore())
		}
	})

	t.Run("404 means unknown hash, not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"code": "NotFoundError"}}`, http.StatusNotFound)
		})

		report, err := client.Lookup(context.Background(), testHash)
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil on 404", err)
		}
		if report.HasAnalysis {
			t.Error("404 report should carry no analysis")
		}
		if report.Hash != testHash {
			t.Errorf("report hash = %s", report.Hash)
		}
	})

	t.Run("429 maps to ErrThrottled", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		})

		_, err := client.Lookup(context.Background(), testHash)
		if !errors.Is(err, guard.ErrThrottled) {
			t.Fatalf("Lookup() error = %v, want ErrThrottled", err)
		}
	})

	t.Run("server errors map to ErrNetwork", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		_, err := client.Lookup(context.Background(), testHash)
		if !errors.Is(err, guard.ErrNetwork) {
			t.Fatalf("Lookup() error = %v, want ErrNetwork", err)
		}
	})

	t.Run("unreachable server maps to ErrNetwork", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := reputation.NewClient(srv.URL, "test-key", time.Second, guard.NewNopLogger())

		_, err := client.Lookup(context.Background(), testHash)
		if !errors.Is(err, guard.ErrNetwork) {
			t.Fatalf("Lookup() error = %v, want ErrNetwork", err)
		}
	})

	t.Run("undecodable body maps to ErrMalformedResponse", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>not json</html>`))
		})

		_, err := client.Lookup(context.Background(), testHash)
		if !errors.Is(err, guard.ErrMalformedResponse) {
			t.Fatalf("Lookup() error = %v, want ErrMalformedResponse", err)
		}
	})

	t.Run("canceled context aborts the request", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.Lookup(ctx, testHash); err == nil {
			t.Fatal("Lookup() with canceled context succeeded")
		}
	})
}
