package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	uu "github.com/google/uuid"

	"authd/internal/app/httpapp"
	"authd/internal/config"
	"authd/internal/domain/models"
	"authd/internal/http/controllers/oauth"
	"authd/internal/http/controllers/oidc"
	"authd/internal/http/router"
	"authd/internal/lib/signer"
	"authd/internal/metrics"
	"authd/internal/services/authorize"
	"authd/internal/services/revoke"
	"authd/internal/services/token"
	"authd/internal/services/userinfo"
	"authd/internal/services/verify"
	"authd/internal/storage"
	"authd/internal/storage/cached"
	"authd/internal/storage/memory"
	"authd/internal/storage/postgres"
	"authd/internal/storage/protected"
	vaultsigner "authd/internal/storage/protected/vault"
	"authd/internal/storage/redis"
)

// Storage is the full repository surface both persistence drivers implement.
type Storage interface {
	Client(ctx context.Context, clientID string) (*models.Client, error)
	SaveClient(ctx context.Context, client *models.Client) error
	UserByID(ctx context.Context, id string) (models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SaveAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error
	AuthRequest(ctx context.Context, id uu.UUID) (*models.AuthorizationRequest, error)
	UpdateAuthRequest(ctx context.Context, req *models.AuthorizationRequest) error
	RemoveAuthRequest(ctx context.Context, id uu.UUID) error
	SaveAuthCode(ctx context.Context, code *models.AuthorizationCode) error
	ConsumeAuthCode(ctx context.Context, codeHash string) (*models.AuthorizationCode, error)
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	MarkRotated(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID uu.UUID) ([]models.RefreshToken, error)
	RevokeJTI(ctx context.Context, entry models.RevokedJti) error
	IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	PruneDenylist(ctx context.Context, now time.Time) (int64, error)
	Consent(ctx context.Context, subject, clientID string) (*models.ConsentGrant, error)
	SaveConsent(ctx context.Context, grant *models.ConsentGrant) error
	RemoveConsent(ctx context.Context, subject, clientID string) error
}

type denylistStorage interface {
	RevokeJTI(ctx context.Context, entry models.RevokedJti) error
	IsJTIRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	PruneDenylist(ctx context.Context, now time.Time) (int64, error)
}

// App is the wired application.
type App struct {
	HTTPSrv       *httpapp.App
	Revoker       *revoke.Revoke
	SweepInterval time.Duration

	log     *slog.Logger
	storage Storage
	cache   *redis.Cache
	pg      *postgres.Storage
}

// New wires storage, cache, signer, services and the HTTP server from config.
func New(log *slog.Logger, cfg *config.Config) *App {
	ctx := context.Background()

	var store Storage
	var pg *postgres.Storage
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.New()
	default:
		var err error
		pg, err = postgres.New(ctx, cfg.Storage.ConnString)
		if err != nil {
			panic(err)
		}
		store = pg
	}

	cache, err := redis.NewCache(&cfg.Redis)
	if err != nil {
		if !errors.Is(err, storage.InfoCacheDisabled) {
			panic(err)
		}
		cache = nil
	}

	var denylist denylistStorage = store
	if cache != nil {
		denylist = cached.NewCachedDenylist(store, cache, log)
	}

	var sgn signer.Signer
	switch cfg.Signer.Mode {
	case "vault":
		vaultClient, err := protected.NewVaultClient(cfg.Signer.VaultAddress, cfg.Signer.VaultToken)
		if err != nil {
			panic(err)
		}
		sgn = vaultsigner.NewSigner(vaultClient, cfg.Signer.VaultKeyName)
	default:
		local, err := signer.NewLocal(cfg.Signer.KeyPath)
		if err != nil {
			panic(err)
		}
		sgn = local
	}

	m := metrics.New()

	authorizeService := authorize.New(
		log,
		store,
		store,
		store,
		store,
		cfg.AuthorizationRequestTTL,
		cfg.AuthorizationCodeTTL,
	)
	tokenService := token.New(
		log,
		store,
		store,
		store,
		store,
		denylist,
		store,
		sgn,
		m,
		cfg.Issuer,
		cfg.TokenTTL,
		cfg.RefreshTokenTTL,
		cfg.IDTokenTTL,
	)
	verifyService := verify.New(log, sgn, denylist, m)
	revokeService := revoke.New(log, store, denylist, sgn, m)
	userinfoService := userinfo.New(log, verifyService, store)

	mux := router.New(router.Deps{
		Authorize: oauth.NewAuthorizeController(log, authorizeService),
		Token:     oauth.NewTokenController(log, tokenService),
		Revoke:    oauth.NewRevokeController(log, revokeService),
		OIDC:      oidc.New(log, userinfoService, sgn, cache, cfg.Issuer),
	})

	httpApp := httpapp.New(log, mux, cfg.HTTP.Port, cfg.HTTP.Timeout)

	return &App{
		HTTPSrv:       httpApp,
		Revoker:       revokeService,
		SweepInterval: cfg.DenylistSweepInterval,
		log:           log,
		storage:       store,
		cache:         cache,
		pg:            pg,
	}
}

// Stop shuts down the HTTP server and closes storage connections.
func (a *App) Stop() {
	a.HTTPSrv.Stop()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Error("failed to close redis cache", slog.String("error", err.Error()))
		}
	}
	if a.pg != nil {
		a.pg.CloseStorage()
	}
}
