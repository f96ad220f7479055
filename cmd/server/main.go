package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"docshare/internal/audit"
	auditrepo "docshare/internal/audit/repository"
	authhandler "docshare/internal/auth/handler"
	authservice "docshare/internal/auth/service"
	"docshare/internal/config"
	"docshare/internal/db"
	"docshare/internal/devotp"
	dochandler "docshare/internal/document/handler"
	docrepo "docshare/internal/document/repository"
	docservice "docshare/internal/document/service"
	"docshare/internal/document/storage"
	"docshare/internal/logger"
	"docshare/internal/notification"
	"docshare/internal/otp"
	"docshare/internal/security"
	"docshare/internal/server"
	"docshare/internal/server/middleware"
	sharehandler "docshare/internal/share/handler"
	sharerepo "docshare/internal/share/repository"
	shareservice "docshare/internal/share/service"
	userrepo "docshare/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer database.Close()

	privKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		zlog.Fatal("jwt private key", zap.Error(err))
	}
	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		zlog.Fatal("jwt public key", zap.Error(err))
	}
	tokens := security.NewTokenProvider(privKey, pubKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTLDuration())

	ctx := context.Background()
	blobs, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		zlog.Fatal("blob store", zap.Error(err))
	}

	var sender notification.Sender
	var mockMail *notification.MockSender
	switch cfg.MailMode {
	case "api":
		sender = notification.NewMailAPIClient(cfg.MailAPIKey, cfg.MailAPIBaseURL, cfg.MailSender)
	default:
		mockMail, err = notification.NewMockSender(cfg.MailDir)
		if err != nil {
			zlog.Fatal("mock mail", zap.Error(err))
		}
		sender = mockMail
	}

	var devOTPs devotp.Store
	if cfg.OTPReturnToClient {
		devOTPs = devotp.NewMemoryStore(cfg.OTPTTLDuration())
	}

	clock := clockwork.NewRealClock()
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.ClientIPFromContext, zlog)
	users := userrepo.NewPostgresRepository(database)

	passwordHasher := security.NewHasher(cfg.BcryptCost)
	otpEngine := otp.NewEngine(security.NewHasher(cfg.OTPCost), cfg.OTPTTLDuration(), clock)
	authSvc := authservice.NewAuthService(users, passwordHasher, otpEngine, tokens, sender, blobs, auditLog, clock, cfg.OTPReturnToClient, devOTPs, zlog)

	documents := docrepo.NewPostgresRepository(database)
	docSvc := docservice.NewDocumentService(documents, users, blobs, auditLog, clock, cfg.MaxUploadBytes)

	grants := sharerepo.NewPostgresRepository(database)
	shareSvc := shareservice.NewShareService(grants, documents, shareUsers{users}, blobs, sender, auditLog, clock, cfg.GrantTTLDuration(), zlog)

	router := server.NewRouter(server.Deps{
		Log:       zlog,
		Tokens:    tokens,
		Auth:      authhandler.New(authSvc),
		Documents: dochandler.New(docSvc, cfg.MaxUploadBytes),
		Shares:    sharehandler.New(shareSvc),
		DevOTPs:   devOTPs,
		MockMail:  mockMail,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
	zlog.Info("http server stopped")
}

// shareUsers adapts the user repository to the sharing engine's directory view.
type shareUsers struct {
	repo userrepo.Repository
}

func (s shareUsers) GetByID(ctx context.Context, id string) (*shareservice.Party, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return &shareservice.Party{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func (s shareUsers) GetByEmail(ctx context.Context, email string) (*shareservice.Party, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}
	return &shareservice.Party{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}
