package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
	"github.com/trezcool/minerva/core/ordering"
)

// lockErr maps a parent deleted before it could be locked to notFound.
func lockErr(err, notFound error, msg string) error {
	if pkgerrors.Cause(err) == ordering.ErrParentNotFound {
		return notFound
	}
	return pkgerrors.Wrap(err, msg)
}

// Modules

// CreateModule appends a module to its course, or puts it at the requested order.
// The course is locked for the whole transaction: its module count and the order sequence cannot change meanwhile.
func (svc *Service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	now := time.Now().UTC()
	mod := Module{
		ID:          uuid.NewString(),
		CourseID:    nm.CourseID,
		Name:        nm.Name,
		Description: nm.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		seq := svc.repo.ModuleSequence(tx)
		if err := seq.Lock(ctx, mod.CourseID); err != nil {
			return lockErr(err, fieldError("course_id", ErrCourseNotFound), "locking course")
		}

		store := svc.repo.Aggregates(tx)
		if svc.maxModules > 0 {
			n, err := store.CountModules(ctx, mod.CourseID)
			if err != nil {
				return pkgerrors.Wrap(err, "counting modules")
			}
			if n >= svc.maxModules {
				return core.NewConflictError(ErrModuleLimitReached)
			}
		}

		order, err := ordering.Assign(ctx, seq, mod.CourseID, nm.Order)
		if err != nil {
			if pkgerrors.Cause(err) == ordering.ErrInvalidOrder {
				return fieldError("order", err)
			}
			return pkgerrors.Wrap(err, "assigning order")
		}
		mod.Order = order

		if mod, err = svc.repo.CreateModule(ctx, mod, tx); err != nil {
			return err
		}
		return svc.Hooks.Module.Run(ctx, store, aggregate.Target{CourseID: mod.CourseID})
	})
	if err != nil {
		return Module{}, err
	}
	return mod, nil
}

func (svc *Service) QueryModules(ctx context.Context, courseID string) ([]Module, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryModules(ctx, courseID)
}

func (svc *Service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *Service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if um.Name != "" {
		mod.Name = um.Name
	}
	if um.Description != nil {
		mod.Description = *um.Description
	}
	mod.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateModule(ctx, mod)
}

// DeleteModule deletes a module with its contents, then re-sequences the remaining modules of the course.
func (svc *Service) DeleteModule(ctx context.Context, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		mod, err := svc.repo.GetModule(ctx, id, tx)
		if err != nil {
			return err
		}
		seq := svc.repo.ModuleSequence(tx)
		if err = seq.Lock(ctx, mod.CourseID); err != nil {
			return lockErr(err, ErrModuleNotFound, "locking course")
		}
		if err = svc.repo.DeleteModule(ctx, mod.ID, tx); err != nil {
			return err
		}
		if _, err = ordering.Compact(ctx, seq, mod.CourseID); err != nil {
			return pkgerrors.Wrap(err, "compacting modules")
		}
		return svc.Hooks.Module.Run(ctx, svc.repo.Aggregates(tx), aggregate.Target{CourseID: mod.CourseID})
	})
}

// Contents

// lockModule locks the course, then the module, of a content mutation.
// ErrModuleNotFound is returned when either is gone.
func (svc *Service) lockModule(ctx context.Context, tx core.DBExecutor, moduleID string) (Module, ordering.Collection, error) {
	mod, err := svc.repo.GetModule(ctx, moduleID, tx)
	if err != nil {
		return Module{}, nil, err
	}
	if err = svc.repo.LockCourse(ctx, mod.CourseID, tx); err != nil {
		return Module{}, nil, lockErr(err, ErrModuleNotFound, "locking course")
	}
	seq := svc.repo.ContentSequence(tx)
	if err = seq.Lock(ctx, mod.ID); err != nil {
		return Module{}, nil, lockErr(err, ErrModuleNotFound, "locking module")
	}
	return mod, seq, nil
}

// contentCategory returns the content category with the given ID, as a field error if it does not exist.
func (svc *Service) contentCategory(ctx context.Context, tx core.DBExecutor, id string) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, ContentCategories, id, tx)
	if err != nil {
		if pkgerrors.Cause(err) == ErrCategoryNotFound {
			return Category{}, fieldError("category_id", err)
		}
		return Category{}, err
	}
	return cat, nil
}

// CreateContent appends a content to its module, or puts it at the requested order,
// then recounts the items of the module and of the course.
func (svc *Service) CreateContent(ctx context.Context, nc NewContent) (Content, error) {
	now := time.Now().UTC()
	cnt := Content{
		ID:          uuid.NewString(),
		ModuleID:    nc.ModuleID,
		CategoryID:  nc.CategoryID,
		Name:        nc.Name,
		Description: nc.Description,
		Metadata:    nc.Metadata,
		Body:        nc.Body,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cat, err := svc.contentCategory(ctx, tx, cnt.CategoryID)
		if err != nil {
			return err
		}
		if err = ValidatePayload(cat.Name, cnt.Metadata, cnt.Body); err != nil {
			return err
		}
		cnt.CategoryName = cat.Name

		mod, seq, err := svc.lockModule(ctx, tx, cnt.ModuleID)
		if err != nil {
			if pkgerrors.Cause(err) == ErrModuleNotFound {
				return fieldError("module_id", ErrModuleNotFound)
			}
			return err
		}
		cnt.CourseID = mod.CourseID

		order, err := ordering.Assign(ctx, seq, mod.ID, nc.Order)
		if err != nil {
			if pkgerrors.Cause(err) == ordering.ErrInvalidOrder {
				return fieldError("order", err)
			}
			return pkgerrors.Wrap(err, "assigning order")
		}
		cnt.Order = order

		if cnt, err = svc.repo.CreateContent(ctx, cnt, tx); err != nil {
			return err
		}
		return svc.Hooks.Content.Run(ctx, svc.repo.Aggregates(tx), aggregate.Target{
			CourseID:  cnt.CourseID,
			ModuleID:  cnt.ModuleID,
			ContentID: cnt.ID,
		})
	})
	if err != nil {
		return Content{}, err
	}
	return cnt, nil
}

func (svc *Service) QueryContents(ctx context.Context, moduleID string) ([]Content, error) {
	if _, err := svc.repo.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return svc.repo.QueryContents(ctx, moduleID)
}

func (svc *Service) GetContent(ctx context.Context, id string) (Content, error) {
	return svc.repo.GetContent(ctx, id)
}

// UpdateContent edits a content in place. Changing its category recounts the items of the module and of the course.
func (svc *Service) UpdateContent(ctx context.Context, id string, uc UpdateContent) (Content, error) {
	var cnt Content
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if cnt, err = svc.repo.GetContent(ctx, id, tx); err != nil {
			return err
		}

		kindChanged := uc.CategoryID != "" && uc.CategoryID != cnt.CategoryID
		if kindChanged {
			cat, err := svc.contentCategory(ctx, tx, uc.CategoryID)
			if err != nil {
				return err
			}
			cnt.CategoryID = cat.ID
			cnt.CategoryName = cat.Name
		}
		if uc.Name != "" {
			cnt.Name = uc.Name
		}
		if uc.Description != nil {
			cnt.Description = *uc.Description
		}
		if uc.Metadata != nil {
			cnt.Metadata = uc.Metadata
		}
		if uc.Body != nil {
			cnt.Body = *uc.Body
		}
		if err = ValidatePayload(cnt.CategoryName, cnt.Metadata, cnt.Body); err != nil {
			return err
		}
		cnt.UpdatedAt = time.Now().UTC()

		if !kindChanged {
			cnt, err = svc.repo.UpdateContent(ctx, cnt, tx)
			return err
		}

		if _, _, err = svc.lockModule(ctx, tx, cnt.ModuleID); err != nil {
			return contentGone(err)
		}
		if cnt, err = svc.repo.UpdateContent(ctx, cnt, tx); err != nil {
			return err
		}
		return svc.Hooks.Content.Run(ctx, svc.repo.Aggregates(tx), aggregate.Target{
			CourseID:  cnt.CourseID,
			ModuleID:  cnt.ModuleID,
			ContentID: cnt.ID,
		})
	})
	if err != nil {
		return Content{}, err
	}
	return cnt, nil
}

// DeleteContent deletes a content with its feedback, re-sequences the remaining contents of the module,
// then recounts the items of the module and of the course.
func (svc *Service) DeleteContent(ctx context.Context, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cnt, err := svc.repo.GetContent(ctx, id, tx)
		if err != nil {
			return err
		}
		_, seq, err := svc.lockModule(ctx, tx, cnt.ModuleID)
		if err != nil {
			return contentGone(err)
		}
		if err = svc.repo.DeleteContent(ctx, cnt.ID, tx); err != nil {
			return err
		}
		if _, err = ordering.Compact(ctx, seq, cnt.ModuleID); err != nil {
			return pkgerrors.Wrap(err, "compacting contents")
		}
		return svc.Hooks.Content.Run(ctx, svc.repo.Aggregates(tx), aggregate.Target{
			CourseID: cnt.CourseID,
			ModuleID: cnt.ModuleID,
		})
	})
}

// contentGone reports a content whose module was deleted meanwhile as not found.
func contentGone(err error) error {
	if pkgerrors.Cause(err) == ErrModuleNotFound {
		return ErrContentNotFound
	}
	return err
}
