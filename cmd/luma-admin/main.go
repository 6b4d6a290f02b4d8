// Package main is the entry point for the Luma admin CLI.
// This tool provides operator commands for managing accounts outside of a session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/lock"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/repository/store"
	"github.com/prn-tf/luma-identity/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("Luma Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "create-root":
		err = createRoot(args)

	case "set-group":
		err = setGroup(args)

	case "delete-user":
		err = deleteUser(args)

	case "gen-secret":
		err = genSecret()

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the services an admin command runs against.
type app struct {
	store   *repository.Store
	auth    *service.AuthService
	profile *service.ProfileService
	users   *service.UserService
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	hasher, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost, 1)
	if err != nil {
		st.Close()
		return nil, err
	}

	users := st.Repos.User
	authService := service.NewAuthService(users, hasher, nil, nil, logger)
	return &app{
		store: st,
		auth:  authService,
		profile: service.NewProfileService(users, hasher, authService, lock.NewNoOpLocker(), nil, nil, logger, service.ProfileOptions{
			LockTTL: cfg.Auth.MutationLockTTL,
		}),
		users: service.NewUserService(users, cfg.Users.DefaultPageSize, cfg.Users.MaxPageSize, logger),
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func createRoot(args []string) error {
	fs := flag.NewFlagSet("create-root", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("LUMA_ROOT_PASSWORD"), "password (defaults to $LUMA_ROOT_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	positional(fs, username, email, password)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	uid, err := a.auth.Register(ctx, service.RegisterInput{
		Username: *username,
		Password: *password,
		Email:    *email,
		IP:       "127.0.0.1",
	})
	if err != nil {
		return err
	}

	if err := a.assignGroup(ctx, uid, domain.RootGroupID); err != nil {
		return err
	}

	fmt.Printf("Created root user %q (uid %d)\n", *username, uid)
	return nil
}

func setGroup(args []string) error {
	fs := flag.NewFlagSet("set-group", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	uid := fs.Int64("uid", 0, "user id")
	gid := fs.Int64("gid", 0, "group id (1 root, 2 staff, 3 member)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 2 {
		*uid, _ = strconv.ParseInt(fs.Arg(0), 10, 64)
		*gid, _ = strconv.ParseInt(fs.Arg(1), 10, 64)
	}
	if *uid <= 0 || *gid <= 0 {
		return fmt.Errorf("usage: set-group <uid> <gid>")
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.assignGroup(ctx, *uid, *gid); err != nil {
		return err
	}

	fmt.Printf("User %d moved to group %d\n", *uid, *gid)
	return nil
}

// positional fills unset flags from the remaining arguments, in order.
func positional(fs *flag.FlagSet, targets ...*string) {
	for i, target := range targets {
		if i < fs.NArg() && *target == "" {
			*target = fs.Arg(i)
		}
	}
}

func (a *app) assignGroup(ctx context.Context, uid, gid int64) error {
	_, err := a.profile.UpdateProfile(ctx, service.UpdateProfileInput{
		Actor:     domain.System(),
		TargetUID: uid,
		Fields: []service.FieldUpdate{
			{Field: domain.FieldGID, Value: strconv.FormatInt(gid, 10)},
		},
	})
	return err
}

func deleteUser(args []string) error {
	fs := flag.NewFlagSet("delete-user", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	uid := fs.Int64("uid", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uid <= 0 {
		return fmt.Errorf("--uid is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.users.Delete(ctx, domain.System(), *uid); err != nil {
		return err
	}

	fmt.Printf("Deleted user %d\n", *uid)
	return nil
}

func genSecret() error {
	secret, err := crypto.GenerateSecret()
	if err != nil {
		return err
	}
	fmt.Println(secret)
	return nil
}

func printUsage() {
	fmt.Println(`Luma Admin CLI

Usage:
  luma-admin <command> [arguments]

Commands:
  create-root   Register an account and place it in the root group
  set-group     Move a user to another group
  delete-user   Delete a user account
  gen-secret    Print a random session signing secret
  version       Print version information
  help          Show this help message

Examples:
  luma-admin create-root admin admin@example.com s3cret
  luma-admin create-root --username admin --email admin@example.com
  luma-admin set-group 42 2
  luma-admin delete-user --uid 42
  luma-admin gen-secret

Use "luma-admin <command> --help" for more information about a command.`)
}
