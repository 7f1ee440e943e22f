package user

import (
	"context"

	"github.com/trezcool/minerva/core"
)

type serviceMock struct {
	*Service
}

// NewServiceMock returns a Service sending emails synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config, deleteHooks ...DeleteHook) ServiceInterface {
	return &serviceMock{Service: NewService(db, repo, mailSvc, conf, deleteHooks...)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
