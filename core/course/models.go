package course

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
)

type CategoryKind string

const (
	CourseCategories  CategoryKind = "course"
	ContentCategories CategoryKind = "content"
)

// CourseOrderingFields are the fields courses can be sorted by.
var CourseOrderingFields = []string{"name", "alias", "created_at", "updated_at", "rating", "review_count", "module_count"}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Institution struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	Icon        string `json:"icon"`
}

type Course struct {
	ID                  string      `json:"id"`
	CategoryID          null.String `json:"category_id"`
	InstitutionID       null.String `json:"institution_id"`
	Name                string      `json:"name"`
	Alias               string      `json:"alias"`
	Active              bool        `json:"active"`
	Description         string      `json:"description"`
	ModuleCount         int         `json:"module_count"`
	AssessmentItemCount int         `json:"assessment_item_count"`
	ReviewCount         int         `json:"review_count"`
	CommentCount        int         `json:"comment_count"`
	Rating              float64     `json:"rating"`
	CreatedAt           time.Time   `json:"created_at"` // UTC
	UpdatedAt           time.Time   `json:"updated_at"` // UTC
}

// Module is an ordered child of a Course.
type Module struct {
	ID                     string    `json:"id"`
	CourseID               string    `json:"course_id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description"`
	Order                  int       `json:"order"`
	InstructionalItemCount int       `json:"instructional_item_count"`
	AssessmentItemCount    int       `json:"assessment_item_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Content is an ordered child of a Module. Its kind is the name of its content category.
type Content struct {
	ID           string          `json:"id"`
	ModuleID     string          `json:"module_id"`
	CourseID     string          `json:"course_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"kind"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Order        int             `json:"order"`
	ReviewCount  int             `json:"review_count"`
	CommentCount int             `json:"comment_count"`
	Rating       float64         `json:"rating"`
	Metadata     json.RawMessage `json:"metadata"`
	Body         string          `json:"body"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Comment struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ContentID string      `json:"content_id"`
	ParentID  null.String `json:"parent_id"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Replies []Comment `json:"replies,omitempty"`
}

func (c Comment) IsReply() bool { return c.ParentID.Valid }

func (c Comment) MarshalJSON() ([]byte, error) {
	type comment Comment // no MarshalJSON
	return json.Marshal(struct {
		comment
		IsReply bool `json:"is_reply"`
	}{comment(c), c.IsReply()})
}

type Interaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	Completed bool      `json:"completed"`
	Rating    null.Int  `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inputs

type NewCategory struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name, true /* lower */)
	return validate.Struct(nc)
}

type NewInstitution struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"omitempty,url"`
	Image       string `json:"image" validate:"omitempty,url"`
	Icon        string `json:"icon" validate:"omitempty,url"`
}

func (ni *NewInstitution) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

type NewCourse struct {
	CategoryID    string `json:"category_id" validate:"omitempty,uuid"`
	InstitutionID string `json:"institution_id" validate:"omitempty,uuid"`
	Name          string `json:"name" validate:"required,max=64"`
	Alias         string `json:"alias" validate:"required,max=16,alias"`
	Active        *bool  `json:"active"`
	Description   string `json:"description" validate:"max=512"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Alias = core.CleanString(nc.Alias, true /* lower */)
	nc.Description = core.CleanString(nc.Description)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCourseUniqueness(ctx, nc.Name, nc.Alias)
}

// UpdateCourse holds the editable fields of a Course. Derived counters are never editable.
type UpdateCourse struct {
	CategoryID    *string `json:"category_id" validate:"omitempty,uuid"`
	InstitutionID *string `json:"institution_id" validate:"omitempty,uuid"`
	Name          string  `json:"name" validate:"max=64"`
	Alias         string  `json:"alias" validate:"omitempty,max=16,alias"`
	Active        *bool   `json:"active"`
	Description   *string `json:"description" validate:"omitempty,max=512"`
}

func (uc *UpdateCourse) Validate(ctx context.Context, orig Course, validate *validator.Validate, svc ServiceInterface) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if alias := core.CleanString(uc.Alias, true /* lower */); alias != "" {
		uc.Alias = alias
	} else {
		uc.Alias = orig.Alias
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckCourseUniqueness(ctx, uc.Name, uc.Alias, orig)
}

type NewModule struct {
	CourseID    string `json:"course_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
	Order       int    `json:"order" validate:"min=0"` // 0: append
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// UpdateModule never moves a module: its course and order are fixed.
type UpdateModule struct {
	Name        string  `json:"name" validate:"max=64"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error {
	um.Name = core.CleanString(um.Name)
	if um.Description != nil {
		desc := core.CleanString(*um.Description)
		um.Description = &desc
	}
	return validate.Struct(um)
}

type NewContent struct {
	ModuleID    string          `json:"module_id" validate:"required"`
	CategoryID  string          `json:"category_id" validate:"required"`
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description"`
	Order       int             `json:"order" validate:"min=0"` // 0: append
	Metadata    json.RawMessage `json:"metadata"`
	Body        string          `json:"body"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

// UpdateContent never moves a content: its module and order are fixed.
type UpdateContent struct {
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name" validate:"max=128"`
	Description *string         `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
	Body        *string         `json:"body"`
}

func (uc *UpdateContent) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	if string(uc.Metadata) == "null" {
		uc.Metadata = nil // keep the current metadata
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	if uc.Body != nil {
		body := core.CleanString(*uc.Body)
		uc.Body = &body
	}
	return validate.Struct(uc)
}

type NewComment struct {
	ContentID string `json:"content_id" validate:"required"`
	ParentID  string `json:"parent_id"`
	Body      string `json:"body" validate:"required"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

type UpdateComment struct {
	Body string `json:"body" validate:"required"`
}

func (uc *UpdateComment) Validate(validate *validator.Validate) error {
	uc.Body = core.CleanString(uc.Body)
	return validate.Struct(uc)
}

type NewInteraction struct {
	ContentID string `json:"content_id" validate:"required"`
	Completed bool   `json:"completed"`
	Rating    *int   `json:"rating" validate:"omitempty,min=1,max=5"`
}

func (ni *NewInteraction) Validate(validate *validator.Validate) error { return validate.Struct(ni) }

// UpdateInteraction replaces the completion flag and the rating (nil clears it).
type UpdateInteraction struct {
	Completed bool `json:"completed"`
	Rating    *int `json:"rating" validate:"omitempty,min=1,max=5"`
}

func (ui *UpdateInteraction) Validate(validate *validator.Validate) error { return validate.Struct(ui) }

// Filters

type CourseFilter struct {
	Search        string `query:"search"`
	CategoryID    string `query:"category"`
	InstitutionID string `query:"institution"`
	Active        *bool  `query:"active"`
}

func (cf *CourseFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
}

type CommentFilter struct {
	ContentID string
	ParentID  string
	UserIDs   []string
}

type InteractionFilter struct {
	ContentID string
	UserID    string
}
