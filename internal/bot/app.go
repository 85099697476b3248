// Package bot assembles the permit-issuing Telegram application: the folio
// lifecycle service, the PDF renderer, the status-page server and the
// conversation handlers on top of the core runtime.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Gsr1989/Aguascalientes/core/bootstrap"
	coreconfig "github.com/Gsr1989/Aguascalientes/core/config"
	"github.com/Gsr1989/Aguascalientes/core/logger"
	coretelegram "github.com/Gsr1989/Aguascalientes/core/telegram"
	"github.com/Gsr1989/Aguascalientes/core/telegram/router"
	"github.com/Gsr1989/Aguascalientes/core/telegram/state"
	"github.com/Gsr1989/Aguascalientes/internal/document"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
	"github.com/Gsr1989/Aguascalientes/internal/storage/postgres"
	"github.com/Gsr1989/Aguascalientes/internal/web"
)

// App owns every long-lived component of the permit service.
type App struct {
	cfg      *coreconfig.Config
	db       *sqlx.DB
	service  *permit.Service
	renderer *document.Renderer
	webSrv   *web.Server
	fsm      state.Manager
	notifier *telegramNotifier
}

// NewApp bootstraps logging, the database and migrations, then wires the
// permit service and the web server around them.
func NewApp(cfg *coreconfig.Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Permits.Timezone)
	if err != nil {
		logger.L.Warn("unknown timezone, falling back to UTC",
			slog.String("event", "tz"),
			slog.String("err", err.Error()),
		)
		loc = time.UTC
	}

	store := postgres.NewPermitStore(res.DB)
	notifier := &telegramNotifier{}
	service := permit.NewService(permit.Config{
		Prefix:       cfg.Permits.FolioPrefix,
		Entidad:      cfg.Permits.Entidad,
		SuffixStart:  cfg.Permits.FolioSuffixStart,
		PendingTTL:   time.Duration(cfg.Permits.PendingTTLMinutes) * time.Minute,
		ValidityDays: cfg.Permits.ValidityDays,
		AdminMarker:  cfg.Permits.AdminMarker,
		Location:     loc,
	}, store, notifier)

	webSrv, err := web.NewServer(cfg.Web, cfg.Permits, store, service)
	if err != nil {
		service.Stop()
		_ = res.DB.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		db:       res.DB,
		service:  service,
		renderer: document.NewRenderer(cfg.Permits.OutputDir, cfg.Web.BaseURL),
		webSrv:   webSrv,
		fsm:      state.NewMemoryManager(),
		notifier: notifier,
	}, nil
}

// TelegramRunOptions builds the runtime wiring consumed by core/cmd.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerFormStates()
	reg.SetTextFallback(a.handleFallbackText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.fsm, reg, router.TextOptions{
		Photo: a.handleProofPhoto,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(_ context.Context, rt coretelegram.Runtime) error {
	a.notifier.Bind(rt.Bot)

	errCh := a.webSrv.Start()
	go func() {
		if err, ok := <-errCh; ok && err != nil {
			logger.Web.Error("status server failed",
				slog.String("event", "web.listen"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.webSrv.Shutdown(shutdownCtx); err != nil {
		logger.Web.Warn("status server shutdown",
			slog.String("event", "web.shutdown"),
			slog.String("err", err.Error()),
		)
	}

	a.service.Stop()
	return a.db.Close()
}
