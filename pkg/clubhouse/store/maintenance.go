package store

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"gorm.io/gorm"
)

// RebuildResult summarizes a RebuildIndexes run
type RebuildResult struct {
	Memberships          int `json:"memberships"`
	OrphansRemoved       int `json:"orphans_removed"`
	ClubsRecounted       int `json:"clubs_recounted"`
	ClubEntriesBefore    int `json:"club_entries_before"`
	StudentEntriesBefore int `json:"student_entries_before"`
}

// Pair identifies a (club, student) membership pair
type Pair struct {
	ClubID    string `json:"club_id"`
	StudentID string `json:"student_id"`
}

// CountMismatch is a club whose cached member_count disagrees with its index
type CountMismatch struct {
	ClubID  string `json:"club_id"`
	Cached  int    `json:"cached"`
	Indexed int    `json:"indexed"`
}

// ConsistencyReport lists every disagreement between the three membership
// locations and the cached member counts
type ConsistencyReport struct {
	Memberships             int             `json:"memberships"`
	ClubIndexEntries        int             `json:"club_index_entries"`
	StudentIndexEntries     int             `json:"student_index_entries"`
	MissingFromClubIndex    []Pair          `json:"missing_from_club_index,omitempty"`
	MissingFromStudentIndex []Pair          `json:"missing_from_student_index,omitempty"`
	OrphanClubIndex         []Pair          `json:"orphan_club_index,omitempty"`
	OrphanStudentIndex      []Pair          `json:"orphan_student_index,omitempty"`
	RoleMismatches          []Pair          `json:"role_mismatches,omitempty"`
	DanglingMemberships     []Pair          `json:"dangling_memberships,omitempty"`
	MemberCountMismatches   []CountMismatch `json:"member_count_mismatches,omitempty"`
}

// Consistent reports whether no problems were found
func (r ConsistencyReport) Consistent() bool {
	return len(r.MissingFromClubIndex) == 0 &&
		len(r.MissingFromStudentIndex) == 0 &&
		len(r.OrphanClubIndex) == 0 &&
		len(r.OrphanStudentIndex) == 0 &&
		len(r.RoleMismatches) == 0 &&
		len(r.DanglingMemberships) == 0 &&
		len(r.MemberCountMismatches) == 0
}

// Rebuild discards both views and regenerates them from the canonical
// membership rows, then recomputes every club's member_count. Memberships
// whose club or student no longer exists are deleted first. ix should be
// bound to a transaction.
func (ix *Index) Rebuild(ctx context.Context) (RebuildResult, error) {
	var result RebuildResult
	db := ix.db.WithContext(ctx)

	var before int64
	if err := db.Model(&models.ClubMember{}).Count(&before).Error; err != nil {
		return result, err
	}
	result.ClubEntriesBefore = int(before)
	if err := db.Model(&models.StudentMembership{}).Count(&before).Error; err != nil {
		return result, err
	}
	result.StudentEntriesBefore = int(before)

	orphans := db.Where("club_id NOT IN (?) OR student_id NOT IN (?)",
		db.Model(&models.Club{}).Select("id"),
		db.Model(&models.Student{}).Select("id"),
	).Delete(&models.Membership{})
	if orphans.Error != nil {
		return result, orphans.Error
	}
	result.OrphansRemoved = int(orphans.RowsAffected)

	global := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := global.Delete(&models.ClubMember{}).Error; err != nil {
		return result, err
	}
	if err := global.Delete(&models.StudentMembership{}).Error; err != nil {
		return result, err
	}

	var memberships []models.Membership
	if err := db.Order("club_id, student_id").Find(&memberships).Error; err != nil {
		return result, err
	}
	result.Memberships = len(memberships)

	if len(memberships) > 0 {
		clubEntries := make([]models.ClubMember, len(memberships))
		studentEntries := make([]models.StudentMembership, len(memberships))
		for i, m := range memberships {
			clubEntries[i] = models.ClubMember{
				ClubID: m.ClubID, StudentID: m.StudentID, MembershipID: m.ID, Role: m.Role, JoinDate: m.JoinDate,
			}
			studentEntries[i] = models.StudentMembership{
				StudentID: m.StudentID, ClubID: m.ClubID, MembershipID: m.ID, Role: m.Role, JoinDate: m.JoinDate,
			}
		}
		if err := db.CreateInBatches(clubEntries, 200).Error; err != nil {
			return result, err
		}
		if err := db.CreateInBatches(studentEntries, 200).Error; err != nil {
			return result, err
		}
	}

	recount := db.Exec("UPDATE clubs SET member_count = (SELECT COUNT(*) FROM club_members WHERE club_members.club_id = clubs.id)")
	if recount.Error != nil {
		return result, recount.Error
	}
	result.ClubsRecounted = int(recount.RowsAffected)
	return result, nil
}

// Verify compares the three membership locations and the cached counts
// without modifying anything.
func (ix *Index) Verify(ctx context.Context) (ConsistencyReport, error) {
	db := ix.db.WithContext(ctx)
	var (
		memberships    []models.Membership
		clubEntries    []models.ClubMember
		studentEntries []models.StudentMembership
		clubs          []models.Club
		studentIDs     []string
	)
	if err := db.Find(&memberships).Error; err != nil {
		return ConsistencyReport{}, err
	}
	if err := db.Find(&clubEntries).Error; err != nil {
		return ConsistencyReport{}, err
	}
	if err := db.Find(&studentEntries).Error; err != nil {
		return ConsistencyReport{}, err
	}
	if err := db.Find(&clubs).Error; err != nil {
		return ConsistencyReport{}, err
	}
	if err := db.Model(&models.Student{}).Pluck("id", &studentIDs).Error; err != nil {
		return ConsistencyReport{}, err
	}
	return buildReport(memberships, clubEntries, studentEntries, clubs, studentIDs), nil
}

// RebuildIndexes runs Index.Rebuild in one transaction while every other
// mutation is excluded.
func (s *Store) RebuildIndexes(ctx context.Context) (RebuildResult, error) {
	ctx = context.WithoutCancel(ctx)
	var result RebuildResult
	err := s.run(ctx, "rebuild_indexes", func(ctx context.Context) error {
		s.maint.Lock()
		defer s.maint.Unlock()

		return s.tx(ctx, "rebuild_indexes", func(tx *gorm.DB) error {
			var err error
			result, err = s.index.WithTx(tx).Rebuild(ctx)
			return err
		})
	})
	if err != nil {
		return RebuildResult{}, err
	}

	s.logger.InfoContext(ctx, "membership indexes rebuilt",
		slog.Int("memberships", result.Memberships),
		slog.Int("orphans_removed", result.OrphansRemoved),
		slog.Int("clubs_recounted", result.ClubsRecounted),
	)
	return result, nil
}

// Verify reports every disagreement between the membership locations. It
// waits for in-flight mutations so the snapshot falls between operations.
func (s *Store) Verify(ctx context.Context) (ConsistencyReport, error) {
	var report ConsistencyReport
	err := s.run(ctx, "verify", func(ctx context.Context) error {
		s.maint.Lock()
		defer s.maint.Unlock()

		var err error
		report, err = s.index.Verify(ctx)
		return err
	})
	if err != nil {
		return ConsistencyReport{}, err
	}
	if !report.Consistent() {
		s.metrics.Inconsistency("verify")
		s.logger.ErrorContext(ctx, "membership consistency check failed",
			slog.Int("missing_from_club_index", len(report.MissingFromClubIndex)),
			slog.Int("missing_from_student_index", len(report.MissingFromStudentIndex)),
			slog.Int("orphan_club_index", len(report.OrphanClubIndex)),
			slog.Int("orphan_student_index", len(report.OrphanStudentIndex)),
			slog.Int("role_mismatches", len(report.RoleMismatches)),
			slog.Int("dangling_memberships", len(report.DanglingMemberships)),
			slog.Int("member_count_mismatches", len(report.MemberCountMismatches)),
		)
	}
	return report, nil
}

func buildReport(memberships []models.Membership, clubEntries []models.ClubMember, studentEntries []models.StudentMembership, clubs []models.Club, studentIDs []string) ConsistencyReport {
	report := ConsistencyReport{
		Memberships:         len(memberships),
		ClubIndexEntries:    len(clubEntries),
		StudentIndexEntries: len(studentEntries),
	}

	canonical := make(map[Pair]models.Role, len(memberships))
	for _, m := range memberships {
		canonical[Pair{m.ClubID, m.StudentID}] = m.Role
	}
	byClub := make(map[Pair]models.Role, len(clubEntries))
	indexed := make(map[string]int)
	for _, e := range clubEntries {
		byClub[Pair{e.ClubID, e.StudentID}] = e.Role
		indexed[e.ClubID]++
	}
	byStudent := make(map[Pair]models.Role, len(studentEntries))
	for _, e := range studentEntries {
		byStudent[Pair{e.ClubID, e.StudentID}] = e.Role
	}
	clubExists := make(map[string]bool, len(clubs))
	for _, c := range clubs {
		clubExists[c.ID] = true
	}
	studentExists := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		studentExists[id] = true
	}

	for pair, role := range canonical {
		clubRole, inClub := byClub[pair]
		studentRole, inStudent := byStudent[pair]
		if !inClub {
			report.MissingFromClubIndex = append(report.MissingFromClubIndex, pair)
		}
		if !inStudent {
			report.MissingFromStudentIndex = append(report.MissingFromStudentIndex, pair)
		}
		if (inClub && clubRole != role) || (inStudent && studentRole != role) {
			report.RoleMismatches = append(report.RoleMismatches, pair)
		}
		if !clubExists[pair.ClubID] || !studentExists[pair.StudentID] {
			report.DanglingMemberships = append(report.DanglingMemberships, pair)
		}
	}
	for pair := range byClub {
		if _, ok := canonical[pair]; !ok {
			report.OrphanClubIndex = append(report.OrphanClubIndex, pair)
		}
	}
	for pair := range byStudent {
		if _, ok := canonical[pair]; !ok {
			report.OrphanStudentIndex = append(report.OrphanStudentIndex, pair)
		}
	}
	for _, c := range clubs {
		if c.MemberCount != indexed[c.ID] {
			report.MemberCountMismatches = append(report.MemberCountMismatches, CountMismatch{
				ClubID: c.ID, Cached: c.MemberCount, Indexed: indexed[c.ID],
			})
		}
	}

	for _, pairs := range [][]Pair{
		report.MissingFromClubIndex, report.MissingFromStudentIndex,
		report.OrphanClubIndex, report.OrphanStudentIndex,
		report.RoleMismatches, report.DanglingMemberships,
	} {
		sortPairs(pairs)
	}
	sort.Slice(report.MemberCountMismatches, func(i, j int) bool {
		return report.MemberCountMismatches[i].ClubID < report.MemberCountMismatches[j].ClubID
	})
	return report
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ClubID != pairs[j].ClubID {
			return pairs[i].ClubID < pairs[j].ClubID
		}
		return pairs[i].StudentID < pairs[j].StudentID
	})
}

// Stats holds headline counts
type Stats struct {
	Clubs         int64                 `json:"clubs"`
	Students      int64                 `json:"students"`
	Memberships   int64                 `json:"memberships"`
	MembersByRole map[models.Role]int64 `json:"members_by_role"`
}

// Stats returns entity and membership counts
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	stats := Stats{MembersByRole: make(map[models.Role]int64)}
	if err := db.Model(&models.Club{}).Count(&stats.Clubs).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Student{}).Count(&stats.Students).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Membership{}).Count(&stats.Memberships).Error; err != nil {
		return Stats{}, err
	}

	var rows []struct {
		Role  models.Role
		Count int64
	}
	if err := db.Model(&models.Membership{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		return Stats{}, err
	}
	for _, r := range rows {
		stats.MembersByRole[r.Role] = r.Count
	}
	return stats, nil
}
