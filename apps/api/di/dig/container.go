package dig_container

import (
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/classboard/apps/api/echo"
	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/grading"
	"github.com/trezcool/classboard/core/reminder"
	"github.com/trezcool/classboard/core/session"
	classroomsvc "github.com/trezcool/classboard/services/classroom"
	emailsvc "github.com/trezcool/classboard/services/email"
	"github.com/trezcool/classboard/services/eventapi"
	logsvc "github.com/trezcool/classboard/services/logger"
	"github.com/trezcool/classboard/storage/database"
	sqlxrepos "github.com/trezcool/classboard/storage/database/sqlx"
	inmemdb "github.com/trezcool/classboard/storage/database/inmem"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Stores are the repositories the services persist to.
// DB is nil when the database is disabled.
type Stores struct {
	dig.Out
	Drafts   attendance.DraftStore
	Sessions session.Repository
	DB       *sqlx.DB
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("API : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB : ", conf)
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	// sessions hold Google access tokens; they never leave the process
	mem := inmemdb.Open()
	stores := Stores{
		Drafts:   inmemdb.NewDraftRepository(mem),
		Sessions: inmemdb.NewSessionRepository(mem),
	}
	if conf.Database.Disabled {
		loggerParam.Logger.Warn("database disabled: attendance drafts are kept in memory")
		return stores
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf.Database); err != nil {
			return nil, err
		}

		db, err := database.Open(conf.Database)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	stores.DB = db
	stores.Drafts = sqlxrepos.NewDraftRepository(db)
	return stores
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newRemoteFactory(conf *core.Config) session.RemoteFactory {
	return eventapi.NewFactory(conf)
}

func newEngine(conf *core.Config) *grading.Engine {
	return grading.NewEngine(grading.Options{
		PassMark:       conf.Grading.PassMark,
		HistogramWidth: conf.Grading.HistogramWidth,
	})
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	sessionSvc *session.Service,
	reminderSvc *reminder.Service,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		SessionSvc:  sessionSvc,
		ReminderSvc: reminderSvc,
		Validate:    validate,
		Translator:  translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newEmailService))
	must(c.Provide(classroomsvc.NewFactory))
	must(c.Provide(newRemoteFactory))
	must(c.Provide(newEngine))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(session.NewService))
	must(c.Provide(reminder.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
