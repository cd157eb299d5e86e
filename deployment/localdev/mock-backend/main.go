// Command mock-backend is a local stand-in for the MedAI diagnostics service.
// It accepts any credentials and returns canned diagnoses so the client can
// be exercised end to end without the real backend.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

type user struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

var cannedReports = map[string]map[string]any{
	"xray": {
		"diagnosis":   "No acute cardiopulmonary abnormality",
		"confidence":  94.2,
		"description": "Lungs are clear. Heart size within normal limits.",
		"findings":    []string{"clear lung fields", "normal cardiac silhouette"},
	},
	"ct": {
		"diagnosis":   "Small right lower lobe nodule",
		"confidence":  78.5,
		"description": "A 6mm nodule in the right lower lobe, follow-up advised.",
		"findings":    []string{"6mm RLL nodule", "no lymphadenopathy"},
	},
	"mri": {
		"diagnosis":   "No intracranial abnormality",
		"confidence":  91.0,
		"description": "No evidence of acute infarct or mass effect.",
		"findings":    []string{"normal ventricles", "no midline shift"},
	},
	"ultrasound": {
		"diagnosis":   "Mild hepatic steatosis",
		"confidence":  69.3,
		"description": "Increased hepatic echogenicity consistent with mild steatosis.",
		"findings":    []string{"increased echogenicity", "normal liver contour"},
	},
}

func main() {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"token": issueToken(),
			"user":  user{Name: nameFromEmail(creds.Email), Role: "practitioner"},
		})
	})

	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		role := body.Role
		if role == "" {
			role = "practitioner"
		}
		writeJSON(w, map[string]any{
			"token": issueToken(),
			"user":  user{Name: body.Name, Role: role},
		})
	})

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"user": user{Name: "Mock " + token[:6], Role: "practitioner"},
		})
	})

	mux.HandleFunc("/diagnostics/process", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		if _, ok := bearerToken(r); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = file.Close()

		mode := r.FormValue("type")
		report, ok := cannedReports[mode]
		if !ok {
			report = cannedReports["xray"]
		}
		// Simulate inference latency so timeouts and cancellation are visible.
		time.Sleep(time.Duration(200+rand.Intn(400)) * time.Millisecond)
		writeJSON(w, report)
	})

	logger := log.New(log.Writer(), "medai-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func issueToken() string {
	return fmt.Sprintf("mock-%d", rand.Int63())
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Practitioner"
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || len(token) < 6 {
		return "", false
	}
	return token, true
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
