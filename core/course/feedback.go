package course

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
	"github.com/trezcool/minerva/core/user"
)

// feedbackTx runs fn in a transaction after locking the course of the content receiving feedback.
// Recomputed course counters cannot interleave with another writer this way.
func (svc *Service) feedbackTx(ctx context.Context, contentID, contentField string, fn func(tx core.DBExecutor, cnt Content) error) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cnt, err := svc.repo.GetContent(ctx, contentID, tx)
		if err != nil {
			if contentField != "" && pkgerrors.Cause(err) == ErrContentNotFound {
				return fieldError(contentField, err)
			}
			return err
		}
		if err = svc.repo.LockCourse(ctx, cnt.CourseID, tx); err != nil {
			notFound := error(ErrContentNotFound)
			if contentField != "" {
				notFound = fieldError(contentField, ErrContentNotFound)
			}
			return lockErr(err, notFound, "locking course")
		}
		return fn(tx, cnt)
	})
}

func feedbackTarget(cnt Content) aggregate.Target {
	return aggregate.Target{CourseID: cnt.CourseID, ModuleID: cnt.ModuleID, ContentID: cnt.ID}
}

// Comments

// CreateComment creates a comment, or a reply when a parent is given,
// and emails the author of the parent comment when someone else replies.
func (svc *Service) CreateComment(ctx context.Context, author user.User, nc NewComment) (Comment, error) {
	now := time.Now().UTC()
	cmt := Comment{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		ContentID: nc.ContentID,
		ParentID:  null.NewString(nc.ParentID, nc.ParentID != ""),
		Body:      nc.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var (
		cnt    Content
		parent Comment
	)
	err := svc.feedbackTx(ctx, cmt.ContentID, "content_id", func(tx core.DBExecutor, c Content) error {
		var err error
		cnt = c
		if cmt.ParentID.Valid {
			if parent, err = svc.repo.GetComment(ctx, cmt.ParentID.String, tx); err != nil {
				if pkgerrors.Cause(err) == ErrCommentNotFound {
					return fieldError("parent_id", err)
				}
				return err
			}
			if parent.ContentID != cmt.ContentID {
				return fieldError("parent_id", ErrInvalidParent)
			}
		}
		if cmt, err = svc.repo.CreateComment(ctx, cmt, tx); err != nil {
			return err
		}
		return svc.Hooks.Comment.Run(ctx, svc.repo.Aggregates(tx), feedbackTarget(cnt))
	})
	if err != nil {
		return Comment{}, err
	}

	if cmt.ParentID.Valid && parent.UserID != author.ID {
		svc.notifyReply(ctx, author, parent, cmt, cnt)
	}
	return cmt, nil
}

// notifyReply emails the author of a comment about a reply. Failures are not reported: the reply is already saved.
func (svc *Service) notifyReply(ctx context.Context, replier user.User, parent, reply Comment, cnt Content) {
	to, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: parent.UserID})
	if err != nil || !to.IsActive {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: to.Name, Address: to.Email}},
		Subject:      "New reply to your comment",
		TemplateName: "comment_reply",
		TemplateData: map[string]string{
			"Name":        to.Name,
			"ReplierName": replier.Name,
			"ContentName": cnt.Name,
			"Body":        reply.Body,
			"ContentID":   cnt.ID,
			"CommentID":   parent.ID,
		},
	})
}

// QueryComments returns the top-level comments of a content, each with its replies.
func (svc *Service) QueryComments(ctx context.Context, contentID string) ([]Comment, error) {
	if _, err := svc.repo.GetContent(ctx, contentID); err != nil {
		return nil, err
	}
	cmts, err := svc.repo.QueryComments(ctx, CommentFilter{ContentID: contentID})
	if err != nil {
		return nil, err
	}
	return commentTree(cmts, ""), nil
}

// QueryReplies returns the replies to a comment, each with its own replies.
func (svc *Service) QueryReplies(ctx context.Context, commentID string) ([]Comment, error) {
	cmt, err := svc.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	cmts, err := svc.repo.QueryComments(ctx, CommentFilter{ContentID: cmt.ContentID})
	if err != nil {
		return nil, err
	}
	return commentTree(cmts, cmt.ID), nil
}

// commentTree nests cmts (sorted by creation date) under their parent, starting from the children of rootID.
// An empty rootID starts from the top-level comments.
func commentTree(cmts []Comment, rootID string) []Comment {
	children := make(map[string][]Comment, len(cmts))
	for _, c := range cmts {
		children[c.ParentID.String] = append(children[c.ParentID.String], c)
	}

	var build func(parentID string) []Comment
	build = func(parentID string) []Comment {
		nodes := children[parentID]
		tree := make([]Comment, 0, len(nodes))
		for _, c := range nodes {
			c.Replies = build(c.ID)
			tree = append(tree, c)
		}
		return tree
	}
	return build(rootID)
}

func (svc *Service) GetComment(ctx context.Context, id string) (Comment, error) {
	return svc.repo.GetComment(ctx, id)
}

func (svc *Service) UpdateComment(ctx context.Context, userID, id string, uc UpdateComment) (Comment, error) {
	cmt, err := svc.repo.GetComment(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if cmt.UserID != userID {
		return Comment{}, ErrNotOwner
	}
	cmt.Body = uc.Body
	cmt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateComment(ctx, cmt)
}

// DeleteComment deletes a comment of userID. Its replies are kept as top-level comments.
func (svc *Service) DeleteComment(ctx context.Context, userID, id string) error {
	cmt, err := svc.repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if cmt.UserID != userID {
		return ErrNotOwner
	}
	return svc.feedbackTx(ctx, cmt.ContentID, "", func(tx core.DBExecutor, cnt Content) error {
		if err := svc.repo.DeleteComment(ctx, cmt.ID, tx); err != nil {
			return err
		}
		return svc.Hooks.Comment.Run(ctx, svc.repo.Aggregates(tx), feedbackTarget(cnt))
	})
}

// Interactions

func (svc *Service) CreateInteraction(ctx context.Context, userID string, ni NewInteraction) (Interaction, error) {
	now := time.Now().UTC()
	itr := Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContentID: ni.ContentID,
		Completed: ni.Completed,
		Rating:    null.IntFromPtr(ni.Rating),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := svc.feedbackTx(ctx, itr.ContentID, "content_id", func(tx core.DBExecutor, cnt Content) error {
		var err error
		if itr, err = svc.repo.CreateInteraction(ctx, itr, tx); err != nil {
			return err
		}
		return svc.Hooks.Interaction.Run(ctx, svc.repo.Aggregates(tx), feedbackTarget(cnt))
	})
	if err != nil {
		return Interaction{}, err
	}
	return itr, nil
}

func (svc *Service) QueryInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, error) {
	return svc.repo.QueryInteractions(ctx, filter)
}

func (svc *Service) GetInteraction(ctx context.Context, id string) (Interaction, error) {
	return svc.repo.GetInteraction(ctx, id)
}

func (svc *Service) UpdateInteraction(ctx context.Context, userID, id string, ui UpdateInteraction) (Interaction, error) {
	itr, err := svc.repo.GetInteraction(ctx, id)
	if err != nil {
		return Interaction{}, err
	}
	if itr.UserID != userID {
		return Interaction{}, ErrNotOwner
	}
	itr.Completed = ui.Completed
	itr.Rating = null.IntFromPtr(ui.Rating)
	itr.UpdatedAt = time.Now().UTC()

	err = svc.feedbackTx(ctx, itr.ContentID, "", func(tx core.DBExecutor, cnt Content) error {
		if itr, err = svc.repo.UpdateInteraction(ctx, itr, tx); err != nil {
			return err
		}
		return svc.Hooks.Interaction.Run(ctx, svc.repo.Aggregates(tx), feedbackTarget(cnt))
	})
	if err != nil {
		return Interaction{}, err
	}
	return itr, nil
}

func (svc *Service) DeleteInteraction(ctx context.Context, userID, id string) error {
	itr, err := svc.repo.GetInteraction(ctx, id)
	if err != nil {
		return err
	}
	if itr.UserID != userID {
		return ErrNotOwner
	}
	return svc.feedbackTx(ctx, itr.ContentID, "", func(tx core.DBExecutor, cnt Content) error {
		if err := svc.repo.DeleteInteraction(ctx, itr.ID, tx); err != nil {
			return err
		}
		return svc.Hooks.Interaction.Run(ctx, svc.repo.Aggregates(tx), feedbackTarget(cnt))
	})
}
