package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// ConflictSnapshot is the committed state a scan operates on: sessions
// (freshly generated or manually edited) plus the metadata needed to judge
// them.
type ConflictSnapshot struct {
	ScheduleID string
	Sessions   []models.Session
	Grid       []models.TimeSlot
	Rooms      []models.Room
	Loads      []models.TeachingLoad
}

type detectRule func(*conflictIndex) []models.Conflict

// conflictRules maps every conflict type to its detection rule. The scan
// iterates models.AllConflictTypes so output order is deterministic.
var conflictRules = map[models.ConflictType]detectRule{
	models.ConflictTeacher:      detectTeacherConflicts,
	models.ConflictRoom:         detectRoomConflicts,
	models.ConflictResource:     detectResourceConflicts,
	models.ConflictTimeOverlap:  detectTimeOverlaps,
	models.ConflictCapacity:     detectCapacityExceeded,
	models.ConflictScheduleGap:  detectScheduleGaps,
	models.ConflictDuration:     detectInvalidDurations,
	models.ConflictBusinessRule: detectBusinessRuleViolations,
	models.ConflictOptimization: detectOptimizationSuggestions,
}

// severityFor is the rule-specific severity mapping. Hard conflicts rank
// high or critical; suggestions are always low.
func severityFor(conflictType models.ConflictType) models.ConflictSeverity {
	switch conflictType {
	case models.ConflictTeacher:
		return models.SeverityCritical
	case models.ConflictRoom, models.ConflictTimeOverlap, models.ConflictCapacity, models.ConflictBusinessRule:
		return models.SeverityHigh
	case models.ConflictResource, models.ConflictDuration:
		return models.SeverityMedium
	case models.ConflictScheduleGap:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// DetectConflicts runs every rule over the snapshot. Two scans over an
// unchanged session set yield the same conflicts (same fingerprints),
// modulo timestamps.
func DetectConflicts(snapshot ConflictSnapshot) []models.Conflict {
	index := buildConflictIndex(snapshot)
	now := time.Now().UTC()

	var conflicts []models.Conflict
	for _, conflictType := range models.AllConflictTypes {
		rule := conflictRules[conflictType]
		if rule == nil {
			continue
		}
		for _, conflict := range rule(index) {
			conflict.ScheduleID = snapshot.ScheduleID
			conflict.Type = conflictType
			conflict.Severity = severityFor(conflictType)
			conflict.Status = models.ConflictOpen
			conflict.AutoDetected = true
			conflict.DetectedAt = now
			conflict.Fingerprint = conflictFingerprint(snapshot.ScheduleID, conflictType, conflict.Description)
			conflicts = append(conflicts, conflict)
		}
	}
	return conflicts
}

// conflictFingerprint hashes the identifying tuple so a violation keeps the
// same identity across scans while the underlying sessions are unchanged.
func conflictFingerprint(scheduleID string, conflictType models.ConflictType, description string) string {
	sum := sha256.Sum256([]byte(scheduleID + "|" + string(conflictType) + "|" + description))
	return hex.EncodeToString(sum[:])
}

type conflictIndex struct {
	snapshot ConflictSnapshot

	loadsByID    map[string]models.TeachingLoad
	roomsByID    map[string]models.Room
	slotsByCell  map[slotKey]models.TimeSlot
	classDays    map[string]map[int][]models.Session
	teacherCells map[string]map[slotKey][]models.Session
	roomCells    map[string]map[slotKey][]models.Session
}

func buildConflictIndex(snapshot ConflictSnapshot) *conflictIndex {
	index := &conflictIndex{
		snapshot:     snapshot,
		loadsByID:    make(map[string]models.TeachingLoad, len(snapshot.Loads)),
		roomsByID:    make(map[string]models.Room, len(snapshot.Rooms)),
		slotsByCell:  make(map[slotKey]models.TimeSlot),
		classDays:    make(map[string]map[int][]models.Session),
		teacherCells: make(map[string]map[slotKey][]models.Session),
		roomCells:    make(map[string]map[slotKey][]models.Session),
	}
	for _, load := range snapshot.Loads {
		index.loadsByID[load.ID] = load
	}
	for _, room := range snapshot.Rooms {
		index.roomsByID[room.ID] = room
	}
	for _, slot := range snapshot.Grid {
		if !slot.IsBreak {
			index.slotsByCell[slotKey{Day: slot.DayOfWeek, Period: slot.PeriodNumber}] = slot
		}
	}
	for _, session := range snapshot.Sessions {
		cell := slotKey{Day: session.DayOfWeek, Period: session.PeriodNumber}
		if index.classDays[session.ClassID] == nil {
			index.classDays[session.ClassID] = make(map[int][]models.Session)
		}
		index.classDays[session.ClassID][session.DayOfWeek] = append(index.classDays[session.ClassID][session.DayOfWeek], session)
		if index.teacherCells[session.TeacherID] == nil {
			index.teacherCells[session.TeacherID] = make(map[slotKey][]models.Session)
		}
		index.teacherCells[session.TeacherID][cell] = append(index.teacherCells[session.TeacherID][cell], session)
		if session.RoomID != nil && *session.RoomID != "" {
			if index.roomCells[*session.RoomID] == nil {
				index.roomCells[*session.RoomID] = make(map[slotKey][]models.Session)
			}
			index.roomCells[*session.RoomID][cell] = append(index.roomCells[*session.RoomID][cell], session)
		}
	}
	return index
}

func detectTeacherConflicts(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, teacherID := range sortedKeys(index.teacherCells) {
		cells := index.teacherCells[teacherID]
		for _, cell := range sortedCells(cells) {
			sessions := cells[cell]
			if len(sessions) < 2 {
				continue
			}
			conflicts = append(conflicts, models.Conflict{
				Description: fmt.Sprintf("teacher %s is double-booked on day %d period %d", teacherID, cell.Day, cell.Period),
				Details:     detailJSON(map[string]any{"teacher_id": teacherID, "day_of_week": cell.Day, "period_number": cell.Period, "classes": classIDs(sessions)}),
				Suggestion:  "move one of the colliding sessions to a free slot for this teacher",
				SessionIDs:  sessionIDs(sessions),
			})
		}
	}
	return conflicts
}

func detectRoomConflicts(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, roomID := range sortedKeys(index.roomCells) {
		cells := index.roomCells[roomID]
		for _, cell := range sortedCells(cells) {
			sessions := cells[cell]
			if len(sessions) < 2 {
				continue
			}
			conflicts = append(conflicts, models.Conflict{
				Description: fmt.Sprintf("room %s is double-booked on day %d period %d", roomID, cell.Day, cell.Period),
				Details:     detailJSON(map[string]any{"room_id": roomID, "day_of_week": cell.Day, "period_number": cell.Period, "classes": classIDs(sessions)}),
				Suggestion:  "move one of the colliding sessions to another room or slot",
				SessionIDs:  sessionIDs(sessions),
			})
		}
	}
	return conflicts
}

func detectResourceConflicts(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, session := range index.snapshot.Sessions {
		load, ok := index.loadsByID[session.TeachingLoadID]
		if !ok || len(load.Constraints.RequiredEquipment) == 0 {
			continue
		}
		missing := true
		if session.RoomID != nil {
			if room, found := index.roomsByID[*session.RoomID]; found && room.HasEquipment(load.Constraints.RequiredEquipment) {
				missing = false
			}
		}
		if !missing {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Description: fmt.Sprintf("load %s needs equipment %s but day %d period %d lacks it", load.ID, strings.Join(load.Constraints.RequiredEquipment, ","), session.DayOfWeek, session.PeriodNumber),
			Details:     detailJSON(map[string]any{"load_id": load.ID, "required_equipment": load.Constraints.RequiredEquipment, "day_of_week": session.DayOfWeek, "period_number": session.PeriodNumber}),
			Suggestion:  "reassign the session to a room carrying the required equipment",
			SessionIDs:  []string{session.ID},
		})
	}
	return conflicts
}

// detectTimeOverlaps catches sessions whose wall-clock windows collide after
// a manual edit changed slot durations; distinct periods can then overlap.
func detectTimeOverlaps(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, classID := range sortedKeys(index.classDays) {
		days := index.classDays[classID]
		for _, day := range sortedDayKeys(days) {
			sessions := sortSessionsByPeriod(days[day])
			for i := 0; i+1 < len(sessions); i++ {
				a := index.slotsByCell[slotKey{Day: day, Period: sessions[i].PeriodNumber}]
				b := index.slotsByCell[slotKey{Day: day, Period: sessions[i+1].PeriodNumber}]
				if a.StartTime == "" || b.StartTime == "" || sessions[i].PeriodNumber == sessions[i+1].PeriodNumber {
					continue
				}
				if a.EndTime > b.StartTime {
					conflicts = append(conflicts, models.Conflict{
						Description: fmt.Sprintf("class %s periods %d and %d overlap in time on day %d", classID, sessions[i].PeriodNumber, sessions[i+1].PeriodNumber, day),
						Details:     detailJSON(map[string]any{"class_id": classID, "day_of_week": day, "periods": []int{sessions[i].PeriodNumber, sessions[i+1].PeriodNumber}, "windows": []string{a.StartTime + "-" + a.EndTime, b.StartTime + "-" + b.EndTime}}),
						Suggestion:  "review the edited slot durations for this day",
						SessionIDs:  []string{sessions[i].ID, sessions[i+1].ID},
					})
				}
			}
		}
	}
	return conflicts
}

func detectCapacityExceeded(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, session := range index.snapshot.Sessions {
		load, ok := index.loadsByID[session.TeachingLoadID]
		if !ok || load.ClassSize == 0 || session.RoomID == nil {
			continue
		}
		room, found := index.roomsByID[*session.RoomID]
		if !found || room.Capacity == 0 || load.ClassSize <= room.Capacity {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Description: fmt.Sprintf("class %s (%d students) exceeds room %s capacity %d on day %d period %d", session.ClassID, load.ClassSize, room.ID, room.Capacity, session.DayOfWeek, session.PeriodNumber),
			Details:     detailJSON(map[string]any{"class_id": session.ClassID, "class_size": load.ClassSize, "room_id": room.ID, "capacity": room.Capacity}),
			Suggestion:  "move the session to a larger room",
			SessionIDs:  []string{session.ID},
		})
	}
	return conflicts
}

func detectScheduleGaps(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, classID := range sortedKeys(index.classDays) {
		days := index.classDays[classID]
		for _, day := range sortedDayKeys(days) {
			sessions := sortSessionsByPeriod(days[day])
			for i := 0; i+1 < len(sessions); i++ {
				gap := sessions[i+1].PeriodNumber - sessions[i].PeriodNumber
				if gap <= 1 {
					continue
				}
				conflicts = append(conflicts, models.Conflict{
					Description: fmt.Sprintf("class %s has a %d-period gap between periods %d and %d on day %d", classID, gap-1, sessions[i].PeriodNumber, sessions[i+1].PeriodNumber, day),
					Details:     detailJSON(map[string]any{"class_id": classID, "day_of_week": day, "after_period": sessions[i].PeriodNumber, "before_period": sessions[i+1].PeriodNumber}),
					Suggestion:  "shift a later session earlier to close the gap",
					SessionIDs:  []string{sessions[i].ID, sessions[i+1].ID},
				})
			}
		}
	}
	return conflicts
}

func detectInvalidDurations(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, session := range index.snapshot.Sessions {
		load, ok := index.loadsByID[session.TeachingLoadID]
		if !ok {
			continue
		}
		minDur := load.Constraints.MinDurationMinutes
		maxDur := load.Constraints.MaxDurationMinutes
		if minDur == 0 && maxDur == 0 {
			continue
		}
		slot, found := index.slotsByCell[slotKey{Day: session.DayOfWeek, Period: session.PeriodNumber}]
		if !found {
			continue
		}
		if (minDur > 0 && slot.DurationMinutes < minDur) || (maxDur > 0 && slot.DurationMinutes > maxDur) {
			conflicts = append(conflicts, models.Conflict{
				Description: fmt.Sprintf("load %s slot on day %d period %d lasts %d minutes, outside %d-%d", load.ID, session.DayOfWeek, session.PeriodNumber, slot.DurationMinutes, minDur, maxDur),
				Details:     detailJSON(map[string]any{"load_id": load.ID, "duration_minutes": slot.DurationMinutes, "min": minDur, "max": maxDur}),
				Suggestion:  "place the load in a slot within its allowed duration bounds",
				SessionIDs:  []string{session.ID},
			})
		}
	}
	return conflicts
}

func detectBusinessRuleViolations(index *conflictIndex) []models.Conflict {
	var conflicts []models.Conflict
	for _, session := range index.snapshot.Sessions {
		load, ok := index.loadsByID[session.TeachingLoadID]
		if !ok || load.Constraints.RequiredRoomType == "" {
			continue
		}
		violated := true
		if session.RoomID != nil {
			if room, found := index.roomsByID[*session.RoomID]; found && room.Type == load.Constraints.RequiredRoomType {
				violated = false
			}
		}
		if !violated {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Description: fmt.Sprintf("load %s requires a %s room but day %d period %d is not in one", load.ID, load.Constraints.RequiredRoomType, session.DayOfWeek, session.PeriodNumber),
			Details:     detailJSON(map[string]any{"load_id": load.ID, "required_room_type": load.Constraints.RequiredRoomType, "day_of_week": session.DayOfWeek, "period_number": session.PeriodNumber}),
			Suggestion:  fmt.Sprintf("move the session into a free %s room", load.Constraints.RequiredRoomType),
			SessionIDs:  []string{session.ID},
		})
	}
	return conflicts
}

// detectOptimizationSuggestions flags loads whose consecutive-hours
// preference went unmet: every session of the load sits alone on its day.
func detectOptimizationSuggestions(index *conflictIndex) []models.Conflict {
	byLoadDay := make(map[string]map[int][]int)
	for _, session := range index.snapshot.Sessions {
		if byLoadDay[session.TeachingLoadID] == nil {
			byLoadDay[session.TeachingLoadID] = make(map[int][]int)
		}
		byLoadDay[session.TeachingLoadID][session.DayOfWeek] = append(byLoadDay[session.TeachingLoadID][session.DayOfWeek], session.PeriodNumber)
	}

	var conflicts []models.Conflict
	for _, loadID := range sortedKeys(byLoadDay) {
		load, ok := index.loadsByID[loadID]
		if !ok || load.PreferredConsecutiveHrs < 2 {
			continue
		}
		hasPair := false
		for _, periods := range byLoadDay[loadID] {
			sort.Ints(periods)
			for i := 0; i+1 < len(periods); i++ {
				if periods[i+1]-periods[i] == 1 {
					hasPair = true
				}
			}
		}
		if hasPair || load.WeeklyHours < 2 {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Description: fmt.Sprintf("load %s prefers %d consecutive hours but is scheduled in single periods", loadID, load.PreferredConsecutiveHrs),
			Details:     detailJSON(map[string]any{"load_id": loadID, "preferred_consecutive_hours": load.PreferredConsecutiveHrs}),
			Suggestion:  "regenerate or manually pair the load's sessions into blocks",
		})
	}
	return conflicts
}

// --- index helpers ---

func detailJSON(payload map[string]any) types.JSONText {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return types.JSONText(raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedDayKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}

func sortedCells[V any](m map[slotKey]V) []slotKey {
	cells := make([]slotKey, 0, len(m))
	for cell := range m {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day != cells[j].Day {
			return cells[i].Day < cells[j].Day
		}
		return cells[i].Period < cells[j].Period
	})
	return cells
}

func sortSessionsByPeriod(sessions []models.Session) []models.Session {
	sorted := make([]models.Session, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PeriodNumber < sorted[j].PeriodNumber })
	return sorted
}

func sessionIDs(sessions []models.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		if session.ID != "" {
			ids = append(ids, session.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func classIDs(sessions []models.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ClassID)
	}
	sort.Strings(ids)
	return ids
}
