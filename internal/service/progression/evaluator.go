// Package progression computes lesson unlock state and course progress from
// snapshots of a course's structure and one student's recorded activity.
package progression

import (
	"math"
	"sort"

	"github.com/codeschool/lms-service/internal/models"
)

// LessonState is one lesson of the flattened course sequence as seen by a student.
type LessonState struct {
	Lesson         models.Lesson
	IsCompleted    bool
	HasHomework    bool
	HomeworkStatus models.HomeworkStatus
	IsUnlocked     bool
}

// HomeworkCleared reports whether this lesson's homework gate is satisfied.
func (s LessonState) HomeworkCleared() bool {
	return !s.HasHomework || s.HomeworkStatus == models.HomeworkStatusApproved
}

func (s LessonState) Response() models.LessonStateResponse {
	return models.LessonStateResponse{
		Lesson:         s.Lesson,
		IsCompleted:    s.IsCompleted,
		HasHomework:    s.HasHomework,
		HomeworkStatus: s.HomeworkStatus.String(),
		IsUnlocked:     s.IsUnlocked,
	}
}

// OrderModules returns a sorted copy of modules using the same ordering as Sequence.
func OrderModules(modules []models.Module) []models.Module {
	mods := make([]models.Module, len(modules))
	copy(mods, modules)
	sort.SliceStable(mods, func(i, j int) bool {
		a, b := mods[i], mods[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return mods
}

// Sequence flattens a course into its global lesson order: modules by order
// index, then lessons by order index within each module. Equal order indexes
// fall back to creation time and then ID. Lessons of unknown modules are dropped.
func Sequence(modules []models.Module, lessons []models.Lesson) []models.Lesson {
	mods := OrderModules(modules)

	byModule := make(map[string][]models.Lesson, len(mods))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}

	seq := make([]models.Lesson, 0, len(lessons))
	for _, m := range mods {
		ls := byModule[m.ID]
		sort.SliceStable(ls, func(i, j int) bool {
			a, b := ls[i], ls[j]
			if a.OrderIndex != b.OrderIndex {
				return a.OrderIndex < b.OrderIndex
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		seq = append(seq, ls...)
		// a module listed twice must not duplicate its lessons
		delete(byModule, m.ID)
	}

	return seq
}

// Evaluate returns one state per lesson in global order. Lesson i is unlocked
// iff lesson i-1 is completed and its homework is cleared; the first lesson is
// always unlocked.
func Evaluate(
	modules []models.Module,
	lessons []models.Lesson,
	progress []models.LessonProgress,
	homework []models.HomeworkSubmission,
) []LessonState {
	completed := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.IsCompleted {
			completed[p.LessonID] = true
		}
	}

	status := make(map[string]models.HomeworkStatus, len(homework))
	for _, h := range homework {
		status[h.LessonID] = h.Status
	}

	seq := Sequence(modules, lessons)
	states := make([]LessonState, 0, len(seq))

	prevCompleted, prevHomeworkCleared := true, true
	for _, lesson := range seq {
		state := LessonState{
			Lesson:         lesson,
			IsCompleted:    completed[lesson.ID],
			HasHomework:    lesson.HasHomework(),
			HomeworkStatus: status[lesson.ID],
			IsUnlocked:     prevCompleted && prevHomeworkCleared,
		}
		states = append(states, state)

		prevCompleted = state.IsCompleted
		prevHomeworkCleared = state.HomeworkCleared()
	}

	return states
}

// Summarize computes completed/total and the rounded percentage.
func Summarize(states []LessonState) models.Progress {
	total := len(states)
	done := 0
	for _, s := range states {
		if s.IsCompleted {
			done++
		}
	}

	return models.Progress{
		Completed: done,
		Total:     total,
		Percent:   Percent(done, total),
	}
}

// Percent rounds completed/total to the nearest integer percent; 0/0 is 0.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// Finished reports whether every lesson is completed with its homework cleared.
func Finished(states []LessonState) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if !s.IsCompleted || !s.HomeworkCleared() {
			return false
		}
	}
	return true
}

// Find returns the index of lessonID in states, or -1.
func Find(states []LessonState, lessonID string) int {
	for i, s := range states {
		if s.Lesson.ID == lessonID {
			return i
		}
	}
	return -1
}
