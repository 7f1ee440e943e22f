package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/minerva/apps/api/echo"
	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
	emailsvc "github.com/trezcool/minerva/services/email"
	googlesvc "github.com/trezcool/minerva/services/google"
	logsvc "github.com/trezcool/minerva/services/logger"
	schedulersvc "github.com/trezcool/minerva/services/scheduler"
	"github.com/trezcool/minerva/storage/database"
	sqlxrepos "github.com/trezcool/minerva/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     user.ServiceInterface
	CourseSvc   course.ServiceInterface
	GoogleAuth  user.GoogleAuthenticator
	RateLimiter *echoapi.RateLimiter `optional:"true"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newCourseService(svc *course.Service) course.ServiceInterface {
	return svc
}

// newUserService releases the feedback of deleted users before they go.
func newUserService(db core.DB, repo user.Repository, mailSvc core.EmailService, conf *core.Config, courseSvc *course.Service) user.ServiceInterface {
	return user.NewService(db, repo, mailSvc, conf, courseSvc.ReleaseUsers)
}

// newRateLimiter returns nil when Redis is not configured; login endpoints are not throttled then.
func newRateLimiter(conf *core.Config, logger core.Logger) *echoapi.RateLimiter {
	client := echoapi.NewRedisClient(conf)
	if client == nil {
		logger.Info("redis not configured: rate limiting disabled")
		return nil
	}
	return echoapi.NewRateLimiter(client, logger)
}

func newScheduler(conf *core.Config, logger core.Logger, courseSvc course.ServiceInterface) (*schedulersvc.Scheduler, error) {
	return schedulersvc.New(conf, logger, courseSvc)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		CourseSvc:   p.CourseSvc,
		GoogleAuth:  p.GoogleAuth,
		RateLimiter: p.RateLimiter,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(course.NewService))
	must(c.Provide(newCourseService))
	must(c.Provide(newUserService))
	must(c.Provide(googlesvc.NewAuthenticator, dig.As(new(user.GoogleAuthenticator))))
	must(c.Provide(newRateLimiter))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
