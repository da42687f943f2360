package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/kbchat/internal/infra/config"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	"github.com/mkrupp/kbchat/internal/infra/metrics"
	http_ "github.com/mkrupp/kbchat/internal/infra/transport/http"
	"github.com/mkrupp/kbchat/internal/repo/session"
	"github.com/mkrupp/kbchat/internal/repo/user"
	"github.com/mkrupp/kbchat/internal/svc/chatsvc"
	"github.com/mkrupp/kbchat/internal/svc/chatsvc/knowledgeclient"
	"github.com/mkrupp/kbchat/internal/svc/credsvc"
	"github.com/mkrupp/kbchat/internal/svc/gatesvc"
)

const (
	appName = "kbchat"
	svcName = "server"
)

type Config struct {
	config.EnvConfig

	Log          logging.LoggerConfig                 `envPrefix:"LOG_"`
	HTTP         http_.HTTPTransportConfig            `envPrefix:"HTTP_"`
	User         user.RepositoryConfig                `envPrefix:"USER_"`
	Creds        credsvc.CredentialConfig             `envPrefix:"CREDS_"`
	Session      gatesvc.SessionConfig                `envPrefix:"SESSION_"`
	SessionStore session.RepositoryConfig             `envPrefix:"SESSION_"`
	Redis        session.RedisSessionRepositoryConfig `envPrefix:"REDIS_"`
	KB           knowledgeclient.BedrockClientConfig  `envPrefix:"KB_"`
	Chat         chatsvc.ChatConfig                   `envPrefix:"CHAT_"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.kbchat")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	m := metrics.New()

	credStore, err := credsvc.NewCredentialStore(user.Factory(cfg.User), cfg.Creds, m)
	if err != nil {
		return fmt.Errorf("new credential store: %w", err)
	}
	defer credStore.Close()

	if err := credStore.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}

	sessions, err := gatesvc.NewSessionService(session.Factory(cfg.SessionStore, cfg.Redis), credStore, cfg.Session, m)
	if err != nil {
		return fmt.Errorf("new session service: %w", err)
	}
	defer sessions.Close()

	knowledge, err := knowledgeclient.NewBedrockClient(ctx, cfg.KB)
	if err != nil {
		return fmt.Errorf("new knowledge client: %w", err)
	}

	chatSvc := chatsvc.NewChatService(knowledge, sessions, cfg.Chat, m)

	if err := http_.ListenAndServe(ctx, newHandler(sessions, chatSvc, m), m, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// newHandler routes the gate and chat transports behind the session middleware.
// /metrics is served outside of it so scrapes do not start sessions.
func newHandler(sessions *gatesvc.SessionService, chatSvc *chatsvc.ChatService, m *metrics.Metrics) http.Handler {
	chat := chatsvc.NewHTTPTransport(chatSvc)

	app := http.NewServeMux()
	app.Handle("/auth/", gatesvc.NewHTTPTransport(sessions))
	app.Handle("/chat", chat)
	app.Handle("/chat/", chat)

	root := http.NewServeMux()
	root.Handle("GET /metrics", m.Handler())
	root.Handle("/", gatesvc.SessionMiddleware(app, sessions))

	return root
}
