package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// PlacementInput carries everything one placement run needs. The engine
// never touches shared state; each run owns its structures until commit.
type PlacementInput struct {
	ScheduleID string
	Grid       []models.TimeSlot
	Requests   []models.PlacementRequest
	Rooms      []models.Room
	// Busy holds sessions already committed elsewhere (other classes of the
	// same term); their teacher and room occupancy is honoured as hard.
	Busy []models.Session
	// Weights overrides the scoring weights for this run; nil uses defaults.
	Weights *ScoringWeights
}

// PlacementOutcome is the deterministic result of one placement run.
type PlacementOutcome struct {
	Status   models.PlacementStatus
	Sessions []models.Session
	Unplaced []models.UnplacedRequest
	Log      []models.GenerationLogEntry
	Stats    models.GenerationStats
}

type slotKey struct {
	Day    int
	Period int
}

type placedBlock struct {
	Request models.PlacementRequest
	Day     int
	Start   int
	RoomID  string
}

type candidate struct {
	Day    int
	Start  int
	RoomID string
	Score  float64
}

type placementState struct {
	days       []int
	maxPeriod  int
	pauseAfter map[slotKey]bool

	teacherBusy map[string]map[slotKey]bool
	classBusy   map[string]map[slotKey]bool
	roomBusy    map[string]map[slotKey]bool

	// subjectAt marks cells holding a given subject+class, for adjacency.
	subjectAt map[string]map[slotKey]bool
	// loadDayHours tracks placed hours per load per day, for distribution.
	loadDayHours map[string]map[int]int

	rooms   []models.Room
	placed  []placedBlock
	weights ScoringWeights
}

// RunPlacement executes the constructive search over the given requests.
// Cancellation is cooperative: the context is checked between requests,
// never mid-candidate-scan. The progress callback, when set, is invoked
// after each processed request.
func RunPlacement(ctx context.Context, in PlacementInput, progress func(done, total int)) PlacementOutcome {
	state := newPlacementState(in)
	requests := orderRequests(in.Requests)

	outcome := PlacementOutcome{Status: models.PlacementSucceeded}
	seq := 0

	for i, req := range requests {
		if ctx.Err() != nil {
			return PlacementOutcome{
				Status: models.PlacementCancelled,
				Log:    outcome.Log,
				Stats:  models.GenerationStats{RequestsTotal: len(requests)},
			}
		}

		best, reasons := state.bestCandidate(req)
		repaired := false
		if best == nil {
			if moved := state.repair(req, &outcome, &seq); moved != nil {
				best = moved
				repaired = true
			}
		}

		if best == nil {
			outcome.Unplaced = append(outcome.Unplaced, models.UnplacedRequest{
				LoadID:    req.LoadID,
				TeacherID: req.TeacherID,
				ClassID:   req.ClassID,
				Sequence:  req.Sequence,
				Hours:     req.BlockLength,
				Reason:    summarizeReasons(reasons),
			})
			seq++
			outcome.Log = append(outcome.Log, models.GenerationLogEntry{
				Seq:      seq,
				Action:   models.LogActionUnplaced,
				LoadID:   req.LoadID,
				Sequence: req.Sequence,
				Reasons:  reasons,
			})
		} else {
			if !repaired {
				state.place(req, *best)
			}
			if candidateHasPreference(req, *best) {
				outcome.Stats.PreferenceHits++
			}
			seq++
			outcome.Log = append(outcome.Log, models.GenerationLogEntry{
				Seq:          seq,
				Action:       models.LogActionPlaced,
				LoadID:       req.LoadID,
				Sequence:     req.Sequence,
				DayOfWeek:    best.Day,
				PeriodNumber: best.Start,
				RoomID:       best.RoomID,
				Score:        best.Score,
			})
		}

		if progress != nil {
			progress(i+1, len(requests))
		}
	}

	outcome.Sessions = state.exportSessions(in.ScheduleID)
	outcome.Stats.RequestsTotal = len(requests)
	outcome.Stats.SessionsPlaced = len(outcome.Sessions)
	outcome.Stats.Unplaced = len(outcome.Unplaced)
	for _, entry := range outcome.Log {
		if entry.Action == models.LogActionRepairedMove {
			outcome.Stats.RepairMoves++
		}
	}
	outcome.Stats.Score = state.qualityScore(len(outcome.Unplaced), outcome.Stats.RepairMoves)

	switch {
	case len(requests) > 0 && outcome.Stats.SessionsPlaced == 0:
		outcome.Status = models.PlacementFailed
	case len(outcome.Unplaced) > 0:
		outcome.Status = models.PlacementPartiallySucceeded
	}
	return outcome
}

func newPlacementState(in PlacementInput) *placementState {
	state := &placementState{
		pauseAfter:   make(map[slotKey]bool),
		teacherBusy:  make(map[string]map[slotKey]bool),
		classBusy:    make(map[string]map[slotKey]bool),
		roomBusy:     make(map[string]map[slotKey]bool),
		subjectAt:    make(map[string]map[slotKey]bool),
		loadDayHours: make(map[string]map[int]int),
		weights:      DefaultScoringWeights(),
	}
	if in.Weights != nil {
		state.weights = *in.Weights
	}

	dayset := make(map[int]struct{})
	for _, slot := range in.Grid {
		dayset[slot.DayOfWeek] = struct{}{}
		if slot.IsBreak {
			state.pauseAfter[slotKey{Day: slot.DayOfWeek, Period: slot.PeriodNumber}] = true
			continue
		}
		if slot.PeriodNumber > state.maxPeriod {
			state.maxPeriod = slot.PeriodNumber
		}
	}
	for day := range dayset {
		state.days = append(state.days, day)
	}
	sort.Ints(state.days)

	state.rooms = make([]models.Room, len(in.Rooms))
	copy(state.rooms, in.Rooms)
	sort.Slice(state.rooms, func(i, j int) bool { return state.rooms[i].ID < state.rooms[j].ID })

	for _, busy := range in.Busy {
		key := slotKey{Day: busy.DayOfWeek, Period: busy.PeriodNumber}
		markBusy(state.teacherBusy, busy.TeacherID, key)
		if busy.RoomID != nil && *busy.RoomID != "" {
			markBusy(state.roomBusy, *busy.RoomID, key)
		}
	}
	return state
}

// occupy seeds the state with committed sessions, marking teacher, class and
// room cells. Used when rescoring alternatives for an existing session set.
func (s *placementState) occupy(sessions []models.Session) {
	for _, session := range sessions {
		key := slotKey{Day: session.DayOfWeek, Period: session.PeriodNumber}
		markBusy(s.teacherBusy, session.TeacherID, key)
		markBusy(s.classBusy, session.ClassID, key)
		markBusy(s.subjectAt, session.SubjectID+"|"+session.ClassID, key)
		if session.RoomID != nil && *session.RoomID != "" {
			markBusy(s.roomBusy, *session.RoomID, key)
		}
	}
}

// orderRequests sorts descending by (priority, weekly hours) with full
// deterministic tie-breaking so identical input yields identical output.
func orderRequests(requests []models.PlacementRequest) []models.PlacementRequest {
	sorted := make([]models.PlacementRequest, len(requests))
	copy(sorted, requests)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.WeeklyHours != b.WeeklyHours {
			return a.WeeklyHours > b.WeeklyHours
		}
		if a.TeacherID != b.TeacherID {
			return a.TeacherID < b.TeacherID
		}
		if a.LoadID != b.LoadID {
			return a.LoadID < b.LoadID
		}
		return a.Sequence < b.Sequence
	})
	return sorted
}

// bestCandidate scans every feasible (day, start, room) cell for the block
// and returns the highest-scoring one, ties going to the earliest day and
// period. A nil candidate comes back with the rejection reasons seen.
func (s *placementState) bestCandidate(req models.PlacementRequest) (*candidate, []string) {
	var best *candidate
	reasons := newReasonSet()

	for _, day := range s.days {
		if !dayAllowed(req, day) {
			reasons.add("day not allowed by load constraints")
			continue
		}
		for start := 1; start+req.BlockLength-1 <= s.maxPeriod; start++ {
			ok, why := s.feasible(req, day, start)
			if !ok {
				reasons.add(why)
				continue
			}
			roomID, roomOK := s.pickRoom(req, day, start)
			if !roomOK {
				reasons.add("no suitable room available")
				continue
			}
			score := s.scoreCandidate(req, day, start)
			if best == nil || score > best.Score {
				best = &candidate{Day: day, Start: start, RoomID: roomID, Score: score}
			}
		}
	}
	return best, reasons.list()
}

func (s *placementState) feasible(req models.PlacementRequest, day, start int) (bool, string) {
	for offset := 0; offset < req.BlockLength; offset++ {
		period := start + offset
		key := slotKey{Day: day, Period: period}
		if offset > 0 && s.pauseAfter[slotKey{Day: day, Period: period - 1}] {
			return false, "block would span a break"
		}
		if slotListed(req.Unavailable, day, period) {
			return false, "teacher unavailable period"
		}
		if s.teacherBusy[req.TeacherID][key] {
			return false, "teacher already booked"
		}
		if s.classBusy[req.ClassID][key] {
			return false, "class already booked"
		}
	}
	return true, ""
}

// pickRoom returns the first free room satisfying the load's constraints,
// in room-ID order. With no rooms supplied, placement proceeds roomless
// unless the load demands a room type or equipment.
func (s *placementState) pickRoom(req models.PlacementRequest, day, start int) (string, bool) {
	needsRoom := req.Constraints.RequiredRoomType != "" || len(req.Constraints.RequiredEquipment) > 0
	if len(s.rooms) == 0 {
		return "", !needsRoom
	}
	for _, room := range s.rooms {
		if req.Constraints.RequiredRoomType != "" && room.Type != req.Constraints.RequiredRoomType {
			continue
		}
		if !room.HasEquipment(req.Constraints.RequiredEquipment) {
			continue
		}
		if req.ClassSize > 0 && room.Capacity > 0 && req.ClassSize > room.Capacity {
			continue
		}
		free := true
		for offset := 0; offset < req.BlockLength; offset++ {
			if s.roomBusy[room.ID][slotKey{Day: day, Period: start + offset}] {
				free = false
				break
			}
		}
		if free {
			return room.ID, true
		}
	}
	return "", false
}

func (s *placementState) scoreCandidate(req models.PlacementRequest, day, start int) float64 {
	var score float64

	for offset := 0; offset < req.BlockLength; offset++ {
		if slotListed(req.Preferred, day, start+offset) {
			score += s.weights.PreferredSlot
		}
	}

	subjectKey := req.SubjectID + "|" + req.ClassID
	if cells := s.subjectAt[subjectKey]; cells != nil {
		if cells[slotKey{Day: day, Period: start - 1}] || cells[slotKey{Day: day, Period: start + req.BlockLength}] {
			score += s.weights.Adjacency
		}
	}

	target := s.idealTarget(req, day)
	existing := s.loadDayHours[req.LoadID][day]
	if overflow := existing + req.BlockLength - target; overflow > 0 {
		score -= float64(overflow) * s.weights.Distribution
	}

	if s.createsIsolatedPeriod(req.ClassID, day, start, req.BlockLength) {
		score -= s.weights.Gap
	}
	return score
}

// idealTarget resolves the per-day hour target: the load's explicit
// distribution entry for this working day, else an even split.
func (s *placementState) idealTarget(req models.PlacementRequest, day int) int {
	dayIdx := -1
	for i, d := range s.days {
		if d == day {
			dayIdx = i
			break
		}
	}
	if dayIdx >= 0 && dayIdx < len(req.Ideal) {
		return req.Ideal[dayIdx]
	}
	if len(s.days) == 0 {
		return req.WeeklyHours
	}
	target := req.WeeklyHours / len(s.days)
	if req.WeeklyHours%len(s.days) != 0 {
		target++
	}
	return target
}

// createsIsolatedPeriod reports whether the block would sit at distance two
// or more from every other session of the class that day.
func (s *placementState) createsIsolatedPeriod(classID string, day, start, length int) bool {
	cells := s.classBusy[classID]
	if len(cells) == 0 {
		return false
	}
	hasOther := false
	nearest := s.maxPeriod + 1
	for period := 1; period <= s.maxPeriod; period++ {
		if !cells[slotKey{Day: day, Period: period}] {
			continue
		}
		hasOther = true
		distance := period - (start + length - 1)
		if period < start {
			distance = start - period
		}
		if distance < nearest {
			nearest = distance
		}
	}
	return hasOther && nearest >= 2
}

func (s *placementState) place(req models.PlacementRequest, c candidate) {
	subjectKey := req.SubjectID + "|" + req.ClassID
	for offset := 0; offset < req.BlockLength; offset++ {
		key := slotKey{Day: c.Day, Period: c.Start + offset}
		markBusy(s.teacherBusy, req.TeacherID, key)
		markBusy(s.classBusy, req.ClassID, key)
		markBusy(s.subjectAt, subjectKey, key)
		if c.RoomID != "" {
			markBusy(s.roomBusy, c.RoomID, key)
		}
	}
	if s.loadDayHours[req.LoadID] == nil {
		s.loadDayHours[req.LoadID] = make(map[int]int)
	}
	s.loadDayHours[req.LoadID][c.Day] += req.BlockLength
	s.placed = append(s.placed, placedBlock{Request: req, Day: c.Day, Start: c.Start, RoomID: c.RoomID})
}

func (s *placementState) unplace(idx int) placedBlock {
	block := s.placed[idx]
	req := block.Request
	subjectKey := req.SubjectID + "|" + req.ClassID
	for offset := 0; offset < req.BlockLength; offset++ {
		key := slotKey{Day: block.Day, Period: block.Start + offset}
		delete(s.teacherBusy[req.TeacherID], key)
		delete(s.classBusy[req.ClassID], key)
		delete(s.subjectAt[subjectKey], key)
		if block.RoomID != "" {
			delete(s.roomBusy[block.RoomID], key)
		}
	}
	s.loadDayHours[req.LoadID][block.Day] -= req.BlockLength
	s.placed = append(s.placed[:idx], s.placed[idx+1:]...)
	return block
}

// repair attempts one bounded local move: evict a same-or-lower-priority
// placed block of another load, relocate the victim without further repair,
// and log the move. Depth is capped at one to avoid cascades.
func (s *placementState) repair(req models.PlacementRequest, outcome *PlacementOutcome, seq *int) *candidate {
	victims := make([]placedBlock, 0, len(s.placed))
	for _, block := range s.placed {
		if block.Request.Priority > req.Priority || block.Request.LoadID == req.LoadID {
			continue
		}
		victims = append(victims, block)
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.Request.Priority != b.Request.Priority {
			return a.Request.Priority < b.Request.Priority
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Start < b.Start
	})

	for _, target := range victims {
		idx := s.indexOfPlaced(target)
		if idx < 0 {
			continue
		}
		victim := s.unplace(idx)

		best, _ := s.bestCandidate(req)
		if best == nil {
			s.place(victim.Request, candidate{Day: victim.Day, Start: victim.Start, RoomID: victim.RoomID})
			continue
		}
		s.place(req, *best)

		relocation, _ := s.bestCandidate(victim.Request)
		if relocation == nil {
			// The victim has nowhere to go; undo the swap and try the next one.
			s.unplace(len(s.placed) - 1)
			s.place(victim.Request, candidate{Day: victim.Day, Start: victim.Start, RoomID: victim.RoomID})
			continue
		}
		s.place(victim.Request, *relocation)

		*seq++
		outcome.Log = append(outcome.Log, models.GenerationLogEntry{
			Seq:          *seq,
			Action:       models.LogActionRepairedMove,
			LoadID:       victim.Request.LoadID,
			Sequence:     victim.Request.Sequence,
			DayOfWeek:    relocation.Day,
			PeriodNumber: relocation.Start,
			RoomID:       relocation.RoomID,
			Score:        relocation.Score,
			Reasons:      []string{fmt.Sprintf("moved from day %d period %d to free a slot for load %s", victim.Day, victim.Start, req.LoadID)},
		})
		return best
	}
	return nil
}

func (s *placementState) indexOfPlaced(target placedBlock) int {
	for idx, block := range s.placed {
		if block.Request.LoadID == target.Request.LoadID && block.Request.Sequence == target.Request.Sequence {
			return idx
		}
	}
	return -1
}

// exportSessions flattens placed blocks into per-period sessions in
// deterministic day/period order. IDs are assigned at persist time.
func (s *placementState) exportSessions(scheduleID string) []models.Session {
	sessions := make([]models.Session, 0, len(s.placed))
	for _, block := range s.placed {
		for offset := 0; offset < block.Request.BlockLength; offset++ {
			session := models.Session{
				ScheduleID:     scheduleID,
				TeachingLoadID: block.Request.LoadID,
				TeacherID:      block.Request.TeacherID,
				SubjectID:      block.Request.SubjectID,
				ClassID:        block.Request.ClassID,
				DayOfWeek:      block.Day,
				PeriodNumber:   block.Start + offset,
			}
			if block.RoomID != "" {
				room := block.RoomID
				session.RoomID = &room
			}
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.PeriodNumber != b.PeriodNumber {
			return a.PeriodNumber < b.PeriodNumber
		}
		return a.ClassID < b.ClassID
	})
	return sessions
}

// qualityScore folds unplaced requests, class gaps and repair churn into a
// 0-100 summary for operators.
func (s *placementState) qualityScore(unplaced, repairs int) float64 {
	gaps := 0
	for _, cells := range s.classBusy {
		for _, day := range s.days {
			var periods []int
			for period := 1; period <= s.maxPeriod; period++ {
				if cells[slotKey{Day: day, Period: period}] {
					periods = append(periods, period)
				}
			}
			for i := 0; i+1 < len(periods); i++ {
				if diff := periods[i+1] - periods[i]; diff > 1 {
					gaps += diff - 1
				}
			}
		}
	}
	score := 100 - float64(unplaced)*scoreUnplacedPenalty - float64(gaps)*scoreGapPenalty - float64(repairs)*scoreRepairPenalty
	if score < 0 {
		return 0
	}
	return score
}

func dayAllowed(req models.PlacementRequest, day int) bool {
	if len(req.Constraints.AllowedDays) == 0 {
		return true
	}
	for _, allowed := range req.Constraints.AllowedDays {
		if allowed == day {
			return true
		}
	}
	return false
}

// slotListed matches a SlotRef list; day 0 in a ref means "every day".
func slotListed(refs []models.SlotRef, day, period int) bool {
	for _, ref := range refs {
		if ref.PeriodNumber != period {
			continue
		}
		if ref.DayOfWeek == 0 || ref.DayOfWeek == day {
			return true
		}
	}
	return false
}

func markBusy(index map[string]map[slotKey]bool, id string, key slotKey) {
	if index[id] == nil {
		index[id] = make(map[slotKey]bool)
	}
	index[id][key] = true
}

func candidateHasPreference(req models.PlacementRequest, c candidate) bool {
	for offset := 0; offset < req.BlockLength; offset++ {
		if slotListed(req.Preferred, c.Day, c.Start+offset) {
			return true
		}
	}
	return false
}

// reasonSet dedupes rejection reasons while keeping first-seen order.
type reasonSet struct {
	seen  map[string]bool
	order []string
}

func newReasonSet() *reasonSet {
	return &reasonSet{seen: make(map[string]bool)}
}

func (r *reasonSet) add(reason string) {
	if reason == "" || r.seen[reason] {
		return
	}
	r.seen[reason] = true
	r.order = append(r.order, reason)
}

func (r *reasonSet) list() []string {
	return r.order
}

func summarizeReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "no feasible slot in grid"
	}
	return reasons[0]
}
