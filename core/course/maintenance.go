package course

import (
	"context"
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
	"github.com/trezcool/minerva/core/ordering"
)

// ReleaseUsers deletes the comments and interactions of users about to be deleted,
// then recomputes the feedback of every content and course they touched. It runs in the caller's transaction.
func (svc *Service) ReleaseUsers(ctx context.Context, tx core.DBExecutor, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	targets, err := svc.repo.FeedbackTargets(ctx, ids, tx)
	if err != nil {
		return pkgerrors.Wrap(err, "finding feedback targets")
	}

	// lock courses in a stable order
	courseIDs := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !seen[t.CourseID] {
			seen[t.CourseID] = true
			courseIDs = append(courseIDs, t.CourseID)
		}
	}
	sort.Strings(courseIDs)
	gone := make(map[string]bool)
	for _, id := range courseIDs {
		if err = svc.repo.LockCourse(ctx, id, tx); err != nil {
			if pkgerrors.Cause(err) != ordering.ErrParentNotFound {
				return pkgerrors.Wrap(err, "locking course")
			}
			gone[id] = true // deleted with its feedback meanwhile
		}
	}

	if err = svc.repo.DeleteUserFeedback(ctx, ids, tx); err != nil {
		return pkgerrors.Wrap(err, "deleting user feedback")
	}

	store := svc.repo.Aggregates(tx)
	for _, t := range targets {
		if gone[t.CourseID] {
			continue
		}
		if err = svc.Hooks.Interaction.Run(ctx, store, t); err != nil {
			return err
		}
	}
	return nil
}

// RepairReport sums up a Repair run.
type RepairReport struct {
	Courses int `json:"courses"` // courses repaired
	Moved   int `json:"moved"`   // modules & contents whose order changed
}

// Repair re-sequences the modules and contents of the given courses (all courses if none)
// and recomputes all their derived counters. Each course is repaired in its own transaction.
func (svc *Service) Repair(ctx context.Context, courseIDs ...string) (RepairReport, error) {
	var report RepairReport

	if len(courseIDs) == 0 {
		courses, err := svc.repo.QueryCourses(ctx, nil, nil)
		if err != nil {
			return report, pkgerrors.Wrap(err, "querying courses")
		}
		for _, c := range courses {
			courseIDs = append(courseIDs, c.ID)
		}
	}

	for _, id := range courseIDs {
		var moved int
		err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
			var err error
			moved, err = svc.repairCourse(ctx, tx, id)
			return err
		})
		if err != nil {
			return report, pkgerrors.Wrapf(err, "repairing course %s", id)
		}
		report.Courses++
		report.Moved += moved
	}
	return report, nil
}

func (svc *Service) repairCourse(ctx context.Context, tx core.DBExecutor, courseID string) (int, error) {
	modSeq := svc.repo.ModuleSequence(tx)
	if err := modSeq.Lock(ctx, courseID); err != nil {
		return 0, lockErr(err, ErrCourseNotFound, "locking course")
	}
	moved, err := ordering.Compact(ctx, modSeq, courseID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "compacting modules")
	}

	mods, err := svc.repo.QueryModules(ctx, courseID, tx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "querying modules")
	}

	store := svc.repo.Aggregates(tx)
	cntSeq := svc.repo.ContentSequence(tx)
	for _, mod := range mods {
		if err = cntSeq.Lock(ctx, mod.ID); err != nil {
			return 0, lockErr(err, ErrModuleNotFound, "locking module")
		}
		n, err := ordering.Compact(ctx, cntSeq, mod.ID)
		if err != nil {
			return 0, pkgerrors.Wrap(err, "compacting contents")
		}
		moved += n

		t := aggregate.Target{CourseID: courseID, ModuleID: mod.ID}
		if err = aggregate.RecountModuleItems.Fn(ctx, store, t); err != nil {
			return 0, pkgerrors.Wrap(err, "recounting module items")
		}

		cnts, err := svc.repo.QueryContents(ctx, mod.ID, tx)
		if err != nil {
			return 0, pkgerrors.Wrap(err, "querying contents")
		}
		for _, cnt := range cnts {
			t.ContentID = cnt.ID
			if err = aggregate.RecomputeContentFeedback.Fn(ctx, store, t); err != nil {
				return 0, pkgerrors.Wrap(err, "recomputing content feedback")
			}
		}
	}

	courseHooks := aggregate.HookList{
		aggregate.RecountModules,
		aggregate.RecountCourseAssessments,
		aggregate.RecomputeCourseFeedback,
	}
	if err = courseHooks.Run(ctx, store, aggregate.Target{CourseID: courseID}); err != nil {
		return 0, err
	}
	return moved, nil
}
