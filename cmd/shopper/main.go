// Command shopper is a terminal storefront client. Guests keep their cart in
// the state directory; signed-in shoppers use the server cart.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/client/cartstore"
	"github.com/example/storefront/internal/client/checkoutconfig"
	"github.com/example/storefront/internal/client/storage"
	"github.com/example/storefront/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const sessionKey = "session"

type savedSession struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// app is everything a command needs, built once per invocation.
type app struct {
	log         *zap.Logger
	store       storage.Storage
	credentials *apiclient.Credentials
	client      *apiclient.Client
	loader      *checkoutconfig.Loader
	carts       *cartstore.Service
}

type options struct {
	apiURL   string
	stateDir string
	timeout  time.Duration
	verbose  bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	a := &app{}

	root := &cobra.Command{
		Use:          "shopper",
		Short:        "Browse, fill and check out a storefront cart",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, opts)
		},
	}

	home, _ := os.UserHomeDir()
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("STOREFRONT_API", "http://localhost:8080"), "storefront API base URL")
	root.PersistentFlags().StringVar(&opts.stateDir, "state-dir", envOr("STOREFRONT_STATE_DIR", filepath.Join(home, ".storefront")), "directory holding the guest cart and session")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and state changes")

	root.AddCommand(
		newCartCmd(a),
		newConfigCmd(a),
		newCheckoutCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, opts *options) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Development: true, Level: level, Encoding: "console", DisableStacktrace: true})
	if err != nil {
		return err
	}
	a.log = log

	store, err := storage.NewFileStorage(opts.stateDir)
	if err != nil {
		return err
	}
	a.store = store

	a.credentials = &apiclient.Credentials{}
	if raw, ok, err := store.Get(sessionKey); err == nil && ok {
		var s savedSession
		if json.Unmarshal(raw, &s) == nil && s.Token != "" {
			a.credentials.Login(s.UserID, s.Token)
		}
	}

	a.client, err = apiclient.New(opts.apiURL, &http.Client{Timeout: opts.timeout}, a.credentials)
	if err != nil {
		return err
	}

	a.loader = checkoutconfig.NewLoader(a.client, log)
	a.carts = a.newCartService(cmd)
	return nil
}

// newCartService picks the cart backend for the current session.
func (a *app) newCartService(cmd *cobra.Command) *cartstore.Service {
	repo := cartstore.NewRepository(cartstore.Session{
		Auth:    a.credentials,
		API:     a.client,
		Storage: a.store,
	})
	return cartstore.NewService(repo, a.client, a.notifier(cmd), a.log)
}

func (a *app) notifier(cmd *cobra.Command) cartstore.Notifier {
	return cartstore.NotifierFunc(func(level cartstore.Level, message string) {
		if level == cartstore.LevelError {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", message)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), message)
	})
}

func (a *app) saveSession(userID, token string) error {
	raw, err := json.Marshal(savedSession{UserID: userID, Token: token})
	if err != nil {
		return err
	}
	return a.store.Set(sessionKey, raw)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
