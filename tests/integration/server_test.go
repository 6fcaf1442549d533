package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/admin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/clubs"
	"github.com/mikepea/clubhouse/pkg/clubhouse/database"
	"github.com/mikepea/clubhouse/pkg/clubhouse/importexport"
	"github.com/mikepea/clubhouse/pkg/clubhouse/logging"
	"github.com/mikepea/clubhouse/pkg/clubhouse/metrics"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/mikepea/clubhouse/pkg/clubhouse/students"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "github.com/mikepea/clubhouse/api/swagger"
)

// setupTestDB creates a file-backed SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect("sqlite", filepath.Join(t.TempDir(), "clubhouse.db"), gormlogger.Discard)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// setupFullServer creates a Gin engine with all routes registered
// This mirrors the setup in cmd/clubhouse-server/main.go
func setupFullServer(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	reg := prometheus.NewRegistry()
	membershipStore := store.New(db,
		store.WithLogger(logging.Discard()),
		store.WithMetrics(metrics.NewStore(reg)),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "clubhouse",
			})
		})

		clubsHandler := clubs.NewHandler(membershipStore)
		clubsGroup := api.Group("/clubs")
		clubsHandler.RegisterRoutes(clubsGroup)
		clubsHandler.RegisterMemberRoutes(clubsGroup)

		studentsHandler := students.NewHandler(membershipStore)
		studentsHandler.RegisterRoutes(api.Group("/students"))

		importExportHandler := importexport.NewHandler(membershipStore)
		importExportHandler.RegisterRoutes(api)

		adminHandler := admin.NewHandler(membershipStore)
		adminHandler.RegisterRoutes(api.Group("/admin"))
	}

	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var decoded map[string]any
	if resp.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp, decoded
}

// TestServerStartup verifies that all routes can be registered without conflicts
// This test would fail if there are route parameter conflicts (like :id vs :clubId)
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(db)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestHealthEndpoints verifies the health and metrics endpoints respond correctly
func TestHealthEndpoints(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	for _, path := range []string{"/health", "/api/health", "/metrics", "/swagger/doc.json"} {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest("GET", path, nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", resp.Code)
			}
		})
	}
}

// TestMembershipFlow walks a club through its membership lifecycle over HTTP
func TestMembershipFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	resp, body := doJSON(t, router, "POST", "/api/clubs", map[string]string{"name": "Chess Club", "description": "Strategy"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating club, got %d: %s", resp.Code, resp.Body.String())
	}
	clubID := body["club"].(map[string]any)["id"].(string)

	var studentIDs []string
	for _, s := range []map[string]string{
		{"name": "Alice", "email": "Alice@Example.edu"},
		{"name": "Bob", "email": "bob@example.edu"},
	} {
		resp, body := doJSON(t, router, "POST", "/api/students", s)
		if resp.Code != http.StatusCreated {
			t.Fatalf("Expected 201 creating student, got %d: %s", resp.Code, resp.Body.String())
		}
		studentIDs = append(studentIDs, body["student"].(map[string]any)["id"].(string))
	}

	resp, body = doJSON(t, router, "POST", "/api/clubs/"+clubID+"/members", map[string]string{"student_id": studentIDs[0], "role": "President"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201 adding member, got %d: %s", resp.Code, resp.Body.String())
	}
	if body["member_count"].(float64) != 1 {
		t.Errorf("Expected member_count 1, got %v", body["member_count"])
	}

	resp, body = doJSON(t, router, "POST", "/api/clubs/"+clubID+"/members", map[string]string{"student_id": studentIDs[1]})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected 201 adding member, got %d: %s", resp.Code, resp.Body.String())
	}
	if body["role"] != "Member" {
		t.Errorf("Expected default role Member, got %v", body["role"])
	}

	resp, _ = doJSON(t, router, "POST", "/api/clubs/"+clubID+"/members", map[string]string{"student_id": studentIDs[1]})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate member, got %d", resp.Code)
	}

	resp, _ = doJSON(t, router, "PUT", "/api/clubs/"+clubID+"/members/"+studentIDs[1], map[string]string{"role": "Treasurer"})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected 200 changing role, got %d: %s", resp.Code, resp.Body.String())
	}

	resp, body = doJSON(t, router, "GET", "/api/students/"+studentIDs[1]+"/clubs", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing student clubs, got %d", resp.Code)
	}
	studentClubs := body["clubs"].([]any)
	if len(studentClubs) != 1 || studentClubs[0].(map[string]any)["role"] != "Treasurer" {
		t.Errorf("Unexpected student clubs: %v", studentClubs)
	}

	resp, body = doJSON(t, router, "GET", "/api/clubs/"+clubID+"/members?sort=name", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing members, got %d", resp.Code)
	}
	members := body["members"].([]any)
	if len(members) != 2 || members[0].(map[string]any)["email"] != "alice@example.edu" {
		t.Errorf("Unexpected roster: %v", members)
	}

	resp, _ = doJSON(t, router, "DELETE", "/api/students/"+studentIDs[0], nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 deleting student, got %d", resp.Code)
	}

	resp, body = doJSON(t, router, "GET", "/api/clubs/"+clubID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 fetching club, got %d", resp.Code)
	}
	if body["club"].(map[string]any)["member_count"].(float64) != 1 {
		t.Errorf("Expected member_count 1 after student deletion, got %v", body["club"])
	}

	resp, body = doJSON(t, router, "GET", "/api/admin/consistency", nil)
	if resp.Code != http.StatusOK || body["consistent"] != true {
		t.Errorf("Expected consistent indexes, got %d: %s", resp.Code, resp.Body.String())
	}

	resp, _ = doJSON(t, router, "DELETE", "/api/clubs/"+clubID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected 200 deleting club, got %d", resp.Code)
	}

	resp, body = doJSON(t, router, "GET", "/api/students/"+studentIDs[1]+"/clubs", nil)
	if resp.Code != http.StatusOK || len(body["clubs"].([]any)) != 0 {
		t.Errorf("Expected no clubs after club deletion, got %s", resp.Body.String())
	}
}

// TestErrorStatuses verifies that store failures map to the expected HTTP statuses
func TestErrorStatuses(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	_, body := doJSON(t, router, "POST", "/api/clubs", map[string]string{"name": "Robotics"})
	clubID := body["club"].(map[string]any)["id"].(string)

	endpoints := []struct {
		method       string
		path         string
		body         any
		expectedCode int
	}{
		{"GET", "/api/clubs/missing", nil, http.StatusNotFound},
		{"GET", "/api/students/missing", nil, http.StatusNotFound},
		{"POST", "/api/clubs", map[string]string{}, http.StatusBadRequest},
		{"POST", "/api/clubs/" + clubID + "/members", map[string]string{"student_id": "missing"}, http.StatusNotFound},
		{"POST", "/api/clubs/" + clubID + "/members", map[string]string{"student_id": "x", "role": "Captain"}, http.StatusBadRequest},
		{"DELETE", "/api/clubs/" + clubID + "/members/missing", nil, http.StatusNotFound},
		{"GET", "/api/clubs/" + clubID + "/members?sort=age", nil, http.StatusBadRequest},
		{"POST", "/api/import", map[string]any{}, http.StatusBadRequest},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp, body := doJSON(t, router, endpoint.method, endpoint.path, endpoint.body)

			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
			if body["success"] != false {
				t.Errorf("Expected success=false, got %v", body)
			}
		})
	}
}
