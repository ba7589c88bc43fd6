package progression

import "github.com/codeschool/lms-service/internal/models"

// Navigation holds the neighbours of a lesson in the course sequence.
type Navigation struct {
	Previous *models.LessonRef
	Next     *models.LessonRef
	Blocked  bool
	Found    bool
}

func (n Navigation) Response() models.NavigationResponse {
	return models.NavigationResponse{
		Previous: n.Previous,
		Next:     n.Next,
		Blocked:  n.Blocked,
	}
}

// Resolve finds the neighbours of the current lesson. Previous is always
// reachable; Next is only returned when it is unlocked.
func Resolve(states []LessonState, currentLessonID string) Navigation {
	idx := Find(states, currentLessonID)
	if idx < 0 {
		return Navigation{}
	}

	nav := Navigation{Found: true}
	if idx > 0 {
		nav.Previous = states[idx-1].Lesson.Ref()
	}

	if idx+1 < len(states) {
		next := states[idx+1]
		if next.IsUnlocked {
			nav.Next = next.Lesson.Ref()
		} else {
			nav.Blocked = true
		}
	}

	return nav
}
