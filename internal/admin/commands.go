// Package admin implements the salesdash provisioning CLI: account
// management and schema migration against the user and session stores.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/salesdash/internal/server/services"
	"github.com/dmitrijs2005/salesdash/internal/server/sessions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	gs "github.com/dmitrijs2005/salesdash/internal/server/grpc"
)

// Env is what the commands read from and write to.
type Env struct {
	In  io.Reader
	Out io.Writer
	// Open returns the stores for dsn. It defaults to repomanager.OpenPostgres.
	Open func(ctx context.Context, dsn string) (*repomanager.Stores, error)
	// Dial connects to a running server's gRPC endpoint.
	Dial func(target string) (*grpc.ClientConn, error)
}

func dialInsecure(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

type runtime struct {
	env    Env
	v      *viper.Viper
	in     *bufio.Reader
	stores *repomanager.Stores
	users  *services.UserService
	mgr    *sessions.Manager
}

// NewRootCommand builds the admin command tree.
func NewRootCommand(env Env) *cobra.Command {
	if env.In == nil {
		env.In = os.Stdin
	}
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Open == nil {
		env.Open = repomanager.OpenPostgres
	}
	if env.Dial == nil {
		env.Dial = dialInsecure
	}

	rt := &runtime{env: env, v: viper.New(), in: bufio.NewReader(env.In)}

	root := &cobra.Command{
		Use:           "salesdash-admin",
		Short:         "Manage salesdash accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Out)
	root.SetErr(env.Out)

	root.PersistentFlags().String("dsn", "", "PostgreSQL DSN (env DATABASE_DSN)")
	root.PersistentFlags().Int("cost", 10, "bcrypt cost factor (env HASH_COST_FACTOR)")
	_ = rt.v.BindPFlag("dsn", root.PersistentFlags().Lookup("dsn"))
	_ = rt.v.BindPFlag("cost", root.PersistentFlags().Lookup("cost"))
	_ = rt.v.BindEnv("dsn", "DATABASE_DSN")
	_ = rt.v.BindEnv("cost", "HASH_COST_FACTOR")

	root.AddCommand(
		rt.userAddCmd(),
		rt.passwdCmd(),
		rt.setActiveCmd("deactivate", "Disable an account and end its sessions", false),
		rt.setActiveCmd("activate", "Re-enable an account", true),
		rt.revokeCmd(),
		rt.sweepCmd(),
		rt.migrateCmd(),
		rt.probeCmd(),
	)
	return root
}

// open connects the stores and builds the services once per invocation.
func (rt *runtime) open(ctx context.Context) error {
	dsn := rt.v.GetString("dsn")
	if dsn == "" {
		return fmt.Errorf("no database configured: set --dsn or DATABASE_DSN")
	}

	stores, err := rt.env.Open(ctx, dsn)
	if err != nil {
		return err
	}
	rt.stores = stores

	hasher, err := cryptox.NewHasher(cryptox.ClampCost(rt.v.GetInt("cost")))
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.FormatText, io.Discard)
	if err != nil {
		return err
	}
	sink := audit.NewLogSink(logger)
	rt.mgr = sessions.NewManager(stores.Sessions, services.NewUserDirectory(stores.Users), hasher, sessions.WithAudit(sink))
	rt.users = services.NewUserService(stores.Users, hasher, rt.mgr, sink, logger)
	return nil
}

// withStores opens the stores around fn and always closes them again.
func (rt *runtime) withStores(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		defer func() {
			if cerr := rt.close(); err == nil {
				err = cerr
			}
		}()
		if err := rt.open(ctx); err != nil {
			return err
		}
		return fn(ctx, args)
	}
}

func (rt *runtime) close() error {
	if rt.stores == nil {
		return nil
	}
	err := rt.stores.Close()
	rt.stores = nil
	return err
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.env.Out, format+"\n", args...)
}

func (rt *runtime) userAddCmd() *cobra.Command {
	var displayName, email string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			pw, err := newPassword(rt.in, rt.env.Out, fromStdin)
			if err != nil {
				return err
			}
			u, err := rt.users.Register(ctx, args[0], displayName, email, pw)
			if err != nil {
				return err
			}
			rt.printf("created user %s (%s)", u.UserName, u.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown on the dashboard")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (rt *runtime) passwdCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a new password and end all sessions of the account",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			u, err := rt.users.Lookup(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			pw, err := newPassword(rt.in, rt.env.Out, fromStdin)
			if err != nil {
				return err
			}
			if err := rt.users.SetPassword(ctx, u.ID, pw); err != nil {
				return err
			}
			rt.printf("password updated for %s", u.UserName)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (rt *runtime) setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			u, err := rt.users.Lookup(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			if active {
				err = rt.users.Activate(ctx, u.ID)
			} else {
				err = rt.users.Deactivate(ctx, u.ID)
			}
			if err != nil {
				return err
			}
			rt.printf("%s: %sd", u.UserName, use)
			return nil
		}),
	}
}

func (rt *runtime) revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username>",
		Short: "End every session of an account",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			u, err := rt.users.Lookup(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			n, err := rt.mgr.InvalidateAllSessions(ctx, u.ID)
			if err != nil {
				return err
			}
			rt.printf("revoked %d session(s) of %s", n, u.UserName)
			return nil
		}),
	}
}

func (rt *runtime) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions",
		Args:  cobra.NoArgs,
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			n, err := rt.mgr.SweepExpired(ctx)
			if err != nil {
				return err
			}
			rt.printf("removed %d expired session(s)", n)
			return nil
		}),
	}
}

func (rt *runtime) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: rt.withStores(func(ctx context.Context, args []string) error {
			rt.printf("schema is up to date")
			return nil
		}),
	}
}

// probeCmd logs in against a running server, validates the new session and
// logs out again. It needs no database access.
func (rt *runtime) probeCmd() *cobra.Command {
	var addr string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "probe <username>",
		Short: "Check that an account can log in on a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var pw string
			var err error
			if fromStdin {
				pw, err = readLine(rt.in)
			} else {
				pw, err = getPassword(rt.env.Out, "Password")
			}
			if err != nil {
				return err
			}

			conn, err := rt.env.Dial(addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			client := gs.NewClient(conn)
			res, err := client.Login(ctx, args[0], pw)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			id, err := client.Validate(ctx, res.Token)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			if err := client.Logout(ctx, res.Token); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			rt.printf("ok: %s (%s), session valid until %s", id.UserName, id.UserID, res.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC address of the server")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
