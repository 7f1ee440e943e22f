package course

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
	"github.com/trezcool/minerva/core/ordering"
	"github.com/trezcool/minerva/core/user"
)

var (
	// errors
	ErrCourseNotFound      = errors.New("course not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrContentNotFound     = errors.New("content not found")
	ErrCommentNotFound     = errors.New("comment not found")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrInstitutionNotFound = errors.New("institution not found")

	ErrCourseNameExists   = errors.New("a course with this name already exists")
	ErrCourseAliasExists  = errors.New("a course with this alias already exists")
	ErrCourseExists       = errors.New("a course with this name or alias already exists")
	ErrCategoryExists     = errors.New("a category with this name already exists")
	ErrCategoryInUse      = errors.New("category is used by existing contents")
	ErrModuleLimitReached = errors.New("the course has reached its maximum number of modules")
	ErrOrderTaken         = errors.New("another sibling already has this order")
	ErrInteractionExists  = errors.New("an interaction with this content already exists")
	ErrInvalidParent      = errors.New("a reply must belong to the same content as its parent")
	ErrNotOwner           = errors.New("only the owner can modify this record")
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, kind CategoryKind, cat Category, exec ...core.DBExecutor) (Category, error)
		QueryCategories(ctx context.Context, kind CategoryKind, exec ...core.DBExecutor) ([]Category, error)
		GetCategory(ctx context.Context, kind CategoryKind, id string, exec ...core.DBExecutor) (Category, error)
		UpdateCategory(ctx context.Context, kind CategoryKind, cat Category, exec ...core.DBExecutor) (Category, error)
		DeleteCategory(ctx context.Context, kind CategoryKind, id string, exec ...core.DBExecutor) error
		CountContentsInCategory(ctx context.Context, categoryID string, exec ...core.DBExecutor) (int, error)

		CreateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		QueryInstitutions(ctx context.Context, exec ...core.DBExecutor) ([]Institution, error)
		GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (Institution, error)
		UpdateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error

		// CheckCourseUniqueness returns ErrCourseNameExists or ErrCourseAliasExists if another course
		// (not in excludedCourses) already uses name or alias.
		CheckCourseUniqueness(ctx context.Context, name, alias string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available CourseFilter fields.
		QueryCourses(ctx context.Context, filter *CourseFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		GetCourseByAlias(ctx context.Context, alias string, exec ...core.DBExecutor) (Course, error)
		// UpdateCourse only writes the editable fields: derived counters are left untouched.
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		// LockCourse serializes writers of the course and of everything below it until the end of the transaction.
		// Returns ordering.ErrParentNotFound when the course does not exist.
		LockCourse(ctx context.Context, id string, exec core.DBExecutor) error

		CreateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		// QueryModules returns the modules of a course sorted by order.
		QueryModules(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		UpdateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		DeleteModule(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateContent(ctx context.Context, c Content, exec ...core.DBExecutor) (Content, error)
		// QueryContents returns the contents of a module sorted by order.
		QueryContents(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]Content, error)
		GetContent(ctx context.Context, id string, exec ...core.DBExecutor) (Content, error)
		UpdateContent(ctx context.Context, c Content, exec ...core.DBExecutor) (Content, error)
		DeleteContent(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		// QueryComments returns the matching comments sorted by creation date.
		QueryComments(ctx context.Context, filter CommentFilter, exec ...core.DBExecutor) ([]Comment, error)
		GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (Comment, error)
		UpdateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		// DeleteComment deletes a comment. Its replies are kept and become top-level comments.
		DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateInteraction(ctx context.Context, i Interaction, exec ...core.DBExecutor) (Interaction, error)
		QueryInteractions(ctx context.Context, filter InteractionFilter, exec ...core.DBExecutor) ([]Interaction, error)
		GetInteraction(ctx context.Context, id string, exec ...core.DBExecutor) (Interaction, error)
		UpdateInteraction(ctx context.Context, i Interaction, exec ...core.DBExecutor) (Interaction, error)
		DeleteInteraction(ctx context.Context, id string, exec ...core.DBExecutor) error

		// FeedbackTargets returns the contents, with their course, holding comments or interactions of the given users.
		FeedbackTargets(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]aggregate.Target, error)
		DeleteUserFeedback(ctx context.Context, userIDs []string, exec ...core.DBExecutor) error

		ModuleSequence(exec core.DBExecutor) ordering.Collection
		ContentSequence(exec core.DBExecutor) ordering.Collection
		Aggregates(exec core.DBExecutor) aggregate.Store
	}

	ServiceInterface interface {
		CreateCategory(ctx context.Context, kind CategoryKind, nc NewCategory) (Category, error)
		QueryCategories(ctx context.Context, kind CategoryKind) ([]Category, error)
		GetCategory(ctx context.Context, kind CategoryKind, id string) (Category, error)
		UpdateCategory(ctx context.Context, kind CategoryKind, id string, nc NewCategory) (Category, error)
		DeleteCategory(ctx context.Context, kind CategoryKind, id string) error

		CreateInstitution(ctx context.Context, ni NewInstitution) (Institution, error)
		QueryInstitutions(ctx context.Context) ([]Institution, error)
		GetInstitution(ctx context.Context, id string) (Institution, error)
		UpdateInstitution(ctx context.Context, id string, ni NewInstitution) (Institution, error)
		DeleteInstitution(ctx context.Context, id string) error

		CheckCourseUniqueness(ctx context.Context, name, alias string, exclCourses ...Course) error
		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context, filter *CourseFilter, orderings []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		GetCourseByAlias(ctx context.Context, alias string) (Course, error)
		UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateModule(ctx context.Context, nm NewModule) (Module, error)
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		CreateContent(ctx context.Context, nc NewContent) (Content, error)
		QueryContents(ctx context.Context, moduleID string) ([]Content, error)
		GetContent(ctx context.Context, id string) (Content, error)
		UpdateContent(ctx context.Context, id string, uc UpdateContent) (Content, error)
		DeleteContent(ctx context.Context, id string) error

		CreateComment(ctx context.Context, author user.User, nc NewComment) (Comment, error)
		QueryComments(ctx context.Context, contentID string) ([]Comment, error)
		QueryReplies(ctx context.Context, commentID string) ([]Comment, error)
		GetComment(ctx context.Context, id string) (Comment, error)
		UpdateComment(ctx context.Context, userID, id string, uc UpdateComment) (Comment, error)
		DeleteComment(ctx context.Context, userID, id string) error

		CreateInteraction(ctx context.Context, userID string, ni NewInteraction) (Interaction, error)
		QueryInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, error)
		GetInteraction(ctx context.Context, id string) (Interaction, error)
		UpdateInteraction(ctx context.Context, userID, id string, ui UpdateInteraction) (Interaction, error)
		DeleteInteraction(ctx context.Context, userID, id string) error

		ReleaseUsers(ctx context.Context, tx core.DBExecutor, ids []string) error
		Repair(ctx context.Context, courseIDs ...string) (RepairReport, error)
	}

	// Hooks are the aggregate hooks run after each kind of mutation.
	Hooks struct {
		Module      aggregate.HookList
		Content     aggregate.HookList
		Comment     aggregate.HookList
		Interaction aggregate.HookList
	}

	Service struct {
		db         core.DB
		repo       Repository
		usrRepo    user.Repository
		mailSvc    core.EmailService
		conf       *core.Config
		maxModules int

		Hooks Hooks
	}
)

var (
	_ ServiceInterface = (*Service)(nil)
	_ user.DeleteHook  = (*Service)(nil).ReleaseUsers
)

func DefaultHooks() Hooks {
	return Hooks{
		Module:      aggregate.ModuleHooks(),
		Content:     aggregate.ContentHooks(),
		Comment:     aggregate.CommentHooks(),
		Interaction: aggregate.InteractionHooks(),
	}
}

func NewService(db core.DB, repo Repository, usrRepo user.Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrRepo, "usrRepo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		db:         db,
		repo:       repo,
		usrRepo:    usrRepo,
		mailSvc:    mailSvc,
		conf:       conf,
		maxModules: conf.Courses.MaxModules,
		Hooks:      DefaultHooks(),
	}
}

func fieldError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Catalog

func (svc *Service) CreateCategory(ctx context.Context, kind CategoryKind, nc NewCategory) (Category, error) {
	return svc.repo.CreateCategory(ctx, kind, Category{ID: uuid.NewString(), Name: nc.Name})
}

func (svc *Service) QueryCategories(ctx context.Context, kind CategoryKind) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, kind)
}

func (svc *Service) GetCategory(ctx context.Context, kind CategoryKind, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, kind, id)
}

func (svc *Service) UpdateCategory(ctx context.Context, kind CategoryKind, id string, nc NewCategory) (Category, error) {
	var cat Category
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetCategory(ctx, kind, id, tx)
		if err != nil {
			return err
		}
		if kind == ContentCategories && orig.Name != nc.Name {
			// the name of a content category is the kind of its contents
			n, err := svc.repo.CountContentsInCategory(ctx, id, tx)
			if err != nil {
				return pkgerrors.Wrap(err, "counting contents")
			}
			if n > 0 {
				return core.NewConflictError(ErrCategoryInUse)
			}
		}
		orig.Name = nc.Name
		cat, err = svc.repo.UpdateCategory(ctx, kind, orig, tx)
		return err
	})
	return cat, err
}

// DeleteCategory deletes a category. Courses of a deleted course category are left uncategorized;
// a content category still used by contents cannot be deleted.
func (svc *Service) DeleteCategory(ctx context.Context, kind CategoryKind, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetCategory(ctx, kind, id, tx); err != nil {
			return err
		}
		if kind == ContentCategories {
			n, err := svc.repo.CountContentsInCategory(ctx, id, tx)
			if err != nil {
				return pkgerrors.Wrap(err, "counting contents")
			}
			if n > 0 {
				return core.NewConflictError(ErrCategoryInUse)
			}
		}
		return svc.repo.DeleteCategory(ctx, kind, id, tx)
	})
}

func (svc *Service) CreateInstitution(ctx context.Context, ni NewInstitution) (Institution, error) {
	return svc.repo.CreateInstitution(ctx, Institution{
		ID:          uuid.NewString(),
		Name:        ni.Name,
		Description: ni.Description,
		URL:         ni.URL,
		Image:       ni.Image,
		Icon:        ni.Icon,
	})
}

func (svc *Service) QueryInstitutions(ctx context.Context) ([]Institution, error) {
	return svc.repo.QueryInstitutions(ctx)
}

func (svc *Service) GetInstitution(ctx context.Context, id string) (Institution, error) {
	return svc.repo.GetInstitution(ctx, id)
}

func (svc *Service) UpdateInstitution(ctx context.Context, id string, ni NewInstitution) (Institution, error) {
	inst, err := svc.repo.GetInstitution(ctx, id)
	if err != nil {
		return Institution{}, err
	}
	inst.Name = ni.Name
	inst.Description = ni.Description
	inst.URL = ni.URL
	inst.Image = ni.Image
	inst.Icon = ni.Icon
	return svc.repo.UpdateInstitution(ctx, inst)
}

func (svc *Service) DeleteInstitution(ctx context.Context, id string) error {
	if _, err := svc.repo.GetInstitution(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteInstitution(ctx, id)
}

// Courses

func (svc *Service) CheckCourseUniqueness(ctx context.Context, name, alias string, exclCourses ...Course) error {
	if err := svc.repo.CheckCourseUniqueness(ctx, name, alias, exclCourses); err != nil {
		var field string
		switch pkgerrors.Cause(err) {
		case ErrCourseNameExists:
			field = "name"
		case ErrCourseAliasExists:
			field = "alias"
		default:
			return pkgerrors.Wrap(err, "checking course uniqueness")
		}
		return fieldError(field, err)
	}
	return nil
}

// checkCourseRefs checks that the category and institution a course refers to exist.
func (svc *Service) checkCourseRefs(ctx context.Context, categoryID, institutionID string) error {
	if categoryID != "" {
		if _, err := svc.repo.GetCategory(ctx, CourseCategories, categoryID); err != nil {
			if pkgerrors.Cause(err) == ErrCategoryNotFound {
				return fieldError("category_id", err)
			}
			return err
		}
	}
	if institutionID != "" {
		if _, err := svc.repo.GetInstitution(ctx, institutionID); err != nil {
			if pkgerrors.Cause(err) == ErrInstitutionNotFound {
				return fieldError("institution_id", err)
			}
			return err
		}
	}
	return nil
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.checkCourseRefs(ctx, nc.CategoryID, nc.InstitutionID); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	c := Course{
		ID:            uuid.NewString(),
		CategoryID:    null.NewString(nc.CategoryID, nc.CategoryID != ""),
		InstitutionID: null.NewString(nc.InstitutionID, nc.InstitutionID != ""),
		Name:          nc.Name,
		Alias:         nc.Alias,
		Active:        true,
		Description:   nc.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nc.Active != nil {
		c.Active = *nc.Active
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) QueryCourses(ctx context.Context, filter *CourseFilter, orderings []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, orderings)
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) GetCourseByAlias(ctx context.Context, alias string) (Course, error) {
	return svc.repo.GetCourseByAlias(ctx, core.CleanString(alias, true /* lower */))
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.GetCourse(ctx, id)
	if err != nil {
		return Course{}, pkgerrors.Wrap(err, "finding course by ID")
	}

	var categoryID, institutionID string
	if uc.CategoryID != nil {
		categoryID = *uc.CategoryID
		c.CategoryID = null.NewString(categoryID, categoryID != "")
	}
	if uc.InstitutionID != nil {
		institutionID = *uc.InstitutionID
		c.InstitutionID = null.NewString(institutionID, institutionID != "")
	}
	if err = svc.checkCourseRefs(ctx, categoryID, institutionID); err != nil {
		return Course{}, err
	}

	c.Name = uc.Name
	c.Alias = uc.Alias
	if uc.Active != nil {
		c.Active = *uc.Active
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// DeleteCourse deletes a course with all its modules, contents and their feedback.
func (svc *Service) DeleteCourse(ctx context.Context, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.LockCourse(ctx, id, tx); err != nil {
			return lockErr(err, ErrCourseNotFound, "locking course")
		}
		return svc.repo.DeleteCourse(ctx, id, tx)
	})
}
