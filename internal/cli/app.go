package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dkozyrev/jobport/internal/api"
	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/config"
	"github.com/dkozyrev/jobport/internal/cryptox"
	"github.com/dkozyrev/jobport/internal/logging"
	"github.com/dkozyrev/jobport/internal/repositories/localstate"
	"github.com/dkozyrev/jobport/internal/services"
	"github.com/dkozyrev/jobport/internal/session"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config           *config.Config
	store            *session.Store
	apiClient        api.Client
	authService      services.AuthService
	twoFactorService services.TwoFactorService
	accountService   services.AccountService
	Mode             Mode
	reader           *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	db, err := localstate.Open(ctx, c.LocalDBPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	repo := localstate.NewSQLiteRepository(db)

	clientID, secret, salt, err := bootstrapIdentity(ctx, repo)
	if err != nil {
		return nil, err
	}

	logger := logging.NewSlogLogger(slog.Default())

	store := session.NewPersistentStore(repo, cryptox.NewSealer(secret, salt), logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	apiClient := api.NewHTTPClient(c.ServerBaseURL, clientID, store, c.RequestTimeout, logger)

	as := services.NewAuthService(apiClient, store, logger)
	ts := services.NewTwoFactorService(apiClient, store, logger)
	acs := services.NewAccountService(apiClient, store, logger)

	return &App{
		config:           c,
		store:            store,
		apiClient:        apiClient,
		authService:      as,
		twoFactorService: ts,
		accountService:   acs,
		reader:           bufio.NewReader(os.Stdin),
	}, nil
}

// bootstrapIdentity loads the per-install client ID and device key
// material, generating and persisting them on first run.
func bootstrapIdentity(ctx context.Context, repo localstate.Repository) (string, []byte, []byte, error) {
	id, err := repo.Get(ctx, localstate.KeyClientID)
	if err != nil {
		return "", nil, nil, err
	}
	if id == nil {
		id = []byte(uuid.NewString())
		if err := repo.Set(ctx, localstate.KeyClientID, id); err != nil {
			return "", nil, nil, err
		}
	}

	secret, err := repo.Get(ctx, localstate.KeyDeviceSecret)
	if err != nil {
		return "", nil, nil, err
	}
	if secret == nil {
		secret = common.GenerateRandByteArray(32)
		if err := repo.Set(ctx, localstate.KeyDeviceSecret, secret); err != nil {
			return "", nil, nil, err
		}
	}

	salt, err := repo.Get(ctx, localstate.KeyDeviceSalt)
	if err != nil {
		return "", nil, nil, err
	}
	if salt == nil {
		salt = common.GenerateRandByteArray(16)
		if err := repo.Set(ctx, localstate.KeyDeviceSalt, salt); err != nil {
			return "", nil, nil, err
		}
	}

	return string(id), secret, salt, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.authService.Close(ctx)
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	_, ok := a.store.Current()
	return ok
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.apiClient.Ping(ctx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
