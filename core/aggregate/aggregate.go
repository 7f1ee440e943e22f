// Package aggregate keeps the derived counters of courses, modules and contents consistent with their children.
//
// Every counter is fully recomputed from the current child rows, so prior drift is corrected on the next write.
// Hooks run synchronously inside the unit of work of the mutation that triggers them:
// a failing hook fails the whole mutation.
package aggregate

import (
	"context"
	"errors"
	"math"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Content kinds, by content category name.
const (
	KindPDF                = "pdf"
	KindVideo              = "video"
	KindMultipleChoiceQuiz = "multiple-choice-quiz"
	KindCodeExercise       = "code-exercise"
)

var (
	InstructionalKinds = []string{KindPDF, KindVideo}
	AssessmentKinds    = []string{KindMultipleChoiceQuiz, KindCodeExercise}

	ErrMissingTarget = errors.New("missing hook target")
)

func IsInstructional(kind string) bool { return contains(InstructionalKinds, kind) }
func IsAssessment(kind string) bool    { return contains(AssessmentKinds, kind) }

func contains(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Tally is the raw feedback read from child rows.
type Tally struct {
	Reviews   int          // number of interactions
	Comments  int          // number of comments
	RatingAvg null.Float64 // mean of non-null interaction ratings; invalid when there are none
}

// Feedback is the derived feedback stored on contents and courses.
type Feedback struct {
	Reviews  int
	Comments int
	Rating   float64
}

func (t Tally) Feedback() Feedback {
	return Feedback{Reviews: t.Reviews, Comments: t.Comments, Rating: RoundRating(t.RatingAvg)}
}

// RoundRating rounds avg to 2 decimal places, halves to even. A missing average is 0.
func RoundRating(avg null.Float64) float64 {
	if !avg.Valid {
		return 0
	}
	return math.RoundToEven(avg.Float64*100) / 100
}

// Store reads child rows and writes derived counters. Implementations are bound to the unit of work.
type Store interface {
	CountModules(ctx context.Context, courseID string) (int, error)
	CountContentsByKind(ctx context.Context, moduleID string, kinds []string) (int, error)
	SumModuleAssessments(ctx context.Context, courseID string) (int, error)
	ContentTally(ctx context.Context, contentID string) (Tally, error)
	CourseTally(ctx context.Context, courseID string) (Tally, error)

	SetModuleCount(ctx context.Context, courseID string, n int) error
	SetModuleItemCounts(ctx context.Context, moduleID string, instructional, assessment int) error
	SetCourseAssessmentCount(ctx context.Context, courseID string, n int) error
	SetContentFeedback(ctx context.Context, contentID string, fb Feedback) error
	SetCourseFeedback(ctx context.Context, courseID string, fb Feedback) error
}

// Target identifies the ancestors of a mutated record.
type Target struct {
	CourseID  string
	ModuleID  string
	ContentID string
}

// Hook recomputes one derived counter after a mutation.
type Hook struct {
	Name string
	Fn   func(ctx context.Context, s Store, t Target) error
}

// HookList is an ordered list of hooks.
type HookList []Hook

// Run runs the hooks in order, stopping at the first failure.
func (hl HookList) Run(ctx context.Context, s Store, t Target) error {
	for _, h := range hl {
		if err := h.Fn(ctx, s, t); err != nil {
			return pkgerrors.Wrapf(err, "running %s hook", h.Name)
		}
	}
	return nil
}

var (
	// RecountModules sets Course.module_count.
	RecountModules = Hook{Name: "recount modules", Fn: recountModules}
	// RecountModuleItems sets Module.instructional_item_count and Module.assessment_item_count.
	RecountModuleItems = Hook{Name: "recount module items", Fn: recountModuleItems}
	// RecountCourseAssessments sets Course.assessment_item_count to the sum over its modules.
	// Must run after RecountModuleItems.
	RecountCourseAssessments = Hook{Name: "recount course assessments", Fn: recountCourseAssessments}
	// RecomputeContentFeedback sets the review/comment counts and the rating of a content.
	RecomputeContentFeedback = Hook{Name: "recompute content feedback", Fn: recomputeContentFeedback}
	// RecomputeCourseFeedback rolls the feedback of a course's contents up to the course.
	RecomputeCourseFeedback = Hook{Name: "recompute course feedback", Fn: recomputeCourseFeedback}
)

// Default hook lists, per mutated entity.
func ModuleHooks() HookList {
	return HookList{RecountModules, RecountCourseAssessments, RecomputeCourseFeedback}
}

func ContentHooks() HookList {
	return HookList{RecountModuleItems, RecountCourseAssessments, RecomputeCourseFeedback}
}

func CommentHooks() HookList {
	return HookList{RecomputeContentFeedback, RecomputeCourseFeedback}
}

func InteractionHooks() HookList {
	return HookList{RecomputeContentFeedback, RecomputeCourseFeedback}
}

func recountModules(ctx context.Context, s Store, t Target) error {
	if t.CourseID == "" {
		return ErrMissingTarget
	}
	n, err := s.CountModules(ctx, t.CourseID)
	if err != nil {
		return pkgerrors.Wrap(err, "counting modules")
	}
	return s.SetModuleCount(ctx, t.CourseID, n)
}

func recountModuleItems(ctx context.Context, s Store, t Target) error {
	if t.ModuleID == "" {
		return ErrMissingTarget
	}
	instructional, err := s.CountContentsByKind(ctx, t.ModuleID, InstructionalKinds)
	if err != nil {
		return pkgerrors.Wrap(err, "counting instructional items")
	}
	assessment, err := s.CountContentsByKind(ctx, t.ModuleID, AssessmentKinds)
	if err != nil {
		return pkgerrors.Wrap(err, "counting assessment items")
	}
	return s.SetModuleItemCounts(ctx, t.ModuleID, instructional, assessment)
}

func recountCourseAssessments(ctx context.Context, s Store, t Target) error {
	if t.CourseID == "" {
		return ErrMissingTarget
	}
	n, err := s.SumModuleAssessments(ctx, t.CourseID)
	if err != nil {
		return pkgerrors.Wrap(err, "summing module assessments")
	}
	return s.SetCourseAssessmentCount(ctx, t.CourseID, n)
}

func recomputeContentFeedback(ctx context.Context, s Store, t Target) error {
	if t.ContentID == "" {
		return ErrMissingTarget
	}
	tally, err := s.ContentTally(ctx, t.ContentID)
	if err != nil {
		return pkgerrors.Wrap(err, "tallying content feedback")
	}
	return s.SetContentFeedback(ctx, t.ContentID, tally.Feedback())
}

func recomputeCourseFeedback(ctx context.Context, s Store, t Target) error {
	if t.CourseID == "" {
		return ErrMissingTarget
	}
	tally, err := s.CourseTally(ctx, t.CourseID)
	if err != nil {
		return pkgerrors.Wrap(err, "tallying course feedback")
	}
	return s.SetCourseFeedback(ctx, t.CourseID, tally.Feedback())
}
