package models

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	// Verify tables exist by checking if we can query them
	tables := []string{"clubs", "students", "memberships", "club_members", "student_memberships"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestClubModel(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	club := Club{Name: "Chess Club", Description: "Weekly tournaments"}
	if err := db.Create(&club).Error; err != nil {
		t.Fatalf("Failed to create club: %v", err)
	}

	if club.ID == "" {
		t.Error("Expected club ID to be set after create")
	}
	if club.MemberCount != 0 {
		t.Errorf("Expected member count 0, got %d", club.MemberCount)
	}
	if club.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestStudentEmailUnique(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	student := Student{Name: "Alice Johnson", Email: "alice@university.edu"}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}

	student2 := Student{Name: "Another Alice", Email: "alice@university.edu"}
	result := db.Create(&student2)
	if result.Error == nil {
		t.Error("Expected error when creating student with duplicate email")
	}
}

func TestMembershipPairUnique(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	club := Club{Name: "Chess Club"}
	db.Create(&club)
	student := Student{Name: "Alice", Email: "alice@university.edu"}
	db.Create(&student)

	membership := Membership{ClubID: club.ID, StudentID: student.ID, Role: RolePresident}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	if membership.ID == "" {
		t.Error("Expected membership ID to be set after create")
	}
	if membership.JoinDate.IsZero() {
		t.Error("Expected join date to be set after create")
	}

	duplicate := Membership{ClubID: club.ID, StudentID: student.ID, Role: RoleMember}
	if err := db.Create(&duplicate).Error; err == nil {
		t.Error("Expected error when creating a second membership for the same pair")
	}
}

func TestIndexPrimaryKeys(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	now := time.Now().UTC()
	entry := ClubMember{ClubID: "c1", StudentID: "s1", MembershipID: "m1", Role: RoleMember, JoinDate: now}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("Failed to create club member entry: %v", err)
	}
	dup := ClubMember{ClubID: "c1", StudentID: "s1", MembershipID: "m2", Role: RoleOfficer, JoinDate: now}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("Expected error when indexing the same pair twice")
	}

	sm := StudentMembership{StudentID: "s1", ClubID: "c1", MembershipID: "m1", Role: RoleMember, JoinDate: now}
	if err := db.Create(&sm).Error; err != nil {
		t.Fatalf("Failed to create student membership entry: %v", err)
	}
}

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{"Member", true},
		{"Officer", true},
		{"President", true},
		{"Vice President", true},
		{"Treasurer", true},
		{"Secretary", true},
		{"member", false},
		{"Bogus", false},
		{"", false},
		{" Member", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := IsValidRole(tt.role); got != tt.valid {
				t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}

	if len(AllRoles()) != 6 {
		t.Errorf("Expected 6 roles, got %d", len(AllRoles()))
	}
}
