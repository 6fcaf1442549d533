package students

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/database"
	"github.com/mikepea/clubhouse/pkg/clubhouse/logging"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *store.Store {
	db, err := database.Connect("sqlite", ":memory:", gormlogger.Discard)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return store.New(db, store.WithLogger(logging.Discard()))
}

func setupTestRouter(s *store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(s).RegisterRoutes(r.Group("/students"))
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type studentResponse struct {
	Success bool           `json:"success"`
	Student models.Student `json:"student"`
}

func TestCreateStudent(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)

	resp := doJSON(router, "POST", "/students", CreateStudentRequest{
		Name:          "Alice Smith",
		Email:         "Alice.Smith@Example.edu",
		StudentNumber: "1001234567",
		Major:         "Computer Science",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response studentResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Student.Email != "alice.smith@example.edu" {
		t.Errorf("Expected normalized email, got %s", response.Student.Email)
	}
	if response.Student.Major != "Computer Science" {
		t.Errorf("Expected major 'Computer Science', got %s", response.Student.Major)
	}
}

func TestCreateStudentValidation(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"name": "Alice"}},
		{"bad email", map[string]string{"name": "Alice", "email": "not-an-email"}},
		{"blank name", map[string]string{"name": "   ", "email": "alice@example.edu"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(router, "POST", "/students", tt.body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.Code)
			}
		})
	}
}

func TestCreateStudentDuplicateEmail(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)

	body := CreateStudentRequest{Name: "Alice", Email: "alice@example.edu"}
	if resp := doJSON(router, "POST", "/students", body); resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.Code)
	}
	body.Email = "ALICE@example.edu"
	if resp := doJSON(router, "POST", "/students", body); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate email, got %d", resp.Code)
	}
}

func TestListStudentsByEmail(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)
	s.CreateStudent(context.Background(), store.StudentFields{Name: "Alice", Email: "alice@example.edu"})
	s.CreateStudent(context.Background(), store.StudentFields{Name: "Bob", Email: "bob@example.edu"})

	resp := doJSON(router, "GET", "/students", nil)
	var list struct {
		Students []models.Student `json:"students"`
	}
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list.Students) != 2 {
		t.Errorf("Expected 2 students, got %d", len(list.Students))
	}

	resp = doJSON(router, "GET", "/students?email=BOB@example.edu", nil)
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list.Students) != 1 || list.Students[0].Name != "Bob" {
		t.Errorf("Expected only Bob, got %+v", list.Students)
	}

	resp = doJSON(router, "GET", "/students?email=carol@example.edu", nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestUpdateStudent(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)
	alice, _ := s.CreateStudent(context.Background(), store.StudentFields{Name: "Alice", Email: "alice@example.edu"})

	resp := doJSON(router, "PUT", "/students/"+alice.ID, map[string]string{"major": "Physics"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var response studentResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Student.Major != "Physics" || response.Student.Name != "Alice" {
		t.Errorf("Unexpected student after update: %+v", response.Student)
	}

	resp = doJSON(router, "PUT", "/students/missing", map[string]string{"major": "Physics"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestStudentClubsAndDelete(t *testing.T) {
	s := setupTestStore(t)
	router := setupTestRouter(s)
	ctx := context.Background()
	alice, _ := s.CreateStudent(ctx, store.StudentFields{Name: "Alice", Email: "alice@example.edu"})
	chess, _ := s.CreateClub(ctx, store.ClubFields{Name: "Chess Club"})
	art, _ := s.CreateClub(ctx, store.ClubFields{Name: "Art Society"})
	s.AddMember(ctx, chess.ID, alice.ID, models.RolePresident)
	s.AddMember(ctx, art.ID, alice.ID, models.RoleMember)

	resp := doJSON(router, "GET", "/students/"+alice.ID+"/clubs", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var clubs struct {
		Clubs []store.StudentClub `json:"clubs"`
	}
	json.Unmarshal(resp.Body.Bytes(), &clubs)
	if len(clubs.Clubs) != 2 || clubs.Clubs[0].Name != "Art Society" {
		t.Fatalf("Expected Art Society then Chess Club, got %+v", clubs.Clubs)
	}

	resp = doJSON(router, "GET", "/students/"+alice.ID+"/clubs?role=President", nil)
	json.Unmarshal(resp.Body.Bytes(), &clubs)
	if len(clubs.Clubs) != 1 || clubs.Clubs[0].ClubID != chess.ID {
		t.Errorf("Expected only Chess Club, got %+v", clubs.Clubs)
	}

	resp = doJSON(router, "DELETE", "/students/"+alice.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	updated, _ := s.GetClub(ctx, chess.ID)
	if updated.MemberCount != 0 {
		t.Errorf("Expected member_count 0 after student deletion, got %d", updated.MemberCount)
	}

	resp = doJSON(router, "GET", "/students/"+alice.ID+"/clubs", nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}
