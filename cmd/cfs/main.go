package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cfs-go/internal/app"
	"cfs-go/internal/config"
	"cfs-go/internal/database"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file with CFS_* environment overrides applied.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a CFSApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Serve", "Reconcile").
func newApp(ctx context.Context, operation string) (*app.CFSApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewCFSApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo. With confirm set the
// passphrase is asked twice.
func readPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("a terminal is required to read the passphrase")
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Repeat passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	return string(first), nil
}

var rootCmd = &cobra.Command{
	Use:          "cfs",
	Short:        "Personal cloud file storage",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// shutdownSignals is defined in signals.go and extended by
		// signals_unix.go via build tags.
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Next: cfs db migrate, then cfs keys init")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Listen:     %s\n", cfg.Server.Addr)
		fmt.Printf("Storage:    %s\n", cfg.Storage.Type)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Sessions:   %s\n", cfg.Auth.SessionStore)
		fmt.Printf("Spool:      %s (max %d bytes)\n", cfg.Upload.Type, cfg.Upload.MaxSize)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase("Passphrase for the private key: ", true)
		if err != nil {
			return err
		}
		if err := app.InitKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("initializing keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.NewDatabaseFromConfig(cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		fmt.Printf("Database up to date: %s\n", db.Path())
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.NewDatabaseFromConfig(cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		st, err := db.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Printf("%s: schema %s\n", db.Path(), st)
		return db.CheckMigrations()
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Store an encrypted database snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.BackupDatabase(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Snapshot stored at %s\n", key)
		return nil
	},
}

var dbSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List database snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots stored.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%-50s  v%-6d  %d\n", s.Key, s.Version, s.Size)
		}
		return nil
	},
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore [KEY]",
	Short: "Replace the local database with a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		key := ""
		if len(args) > 0 {
			key = args[0]
		}
		passphrase, err := readPassphrase("Passphrase: ", false)
		if err != nil {
			return err
		}

		restored, err := app.RestoreDatabase(cmd.Context(), cfg, key, passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s\n", restored)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassphrase("Password: ", true)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "AddUser")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.AddUser(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("adding user: %w", err)
		}
		fmt.Printf("Created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListUsers")
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users.")
			return nil
		}
		for _, u := range users {
			fmt.Printf("%-6d  %-20s  %s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair metadata from storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("user")

		a, err := newApp(cmd.Context(), "Reconcile")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Reconcile(cmd.Context(), username)
		if report != nil {
			fmt.Printf("Repaired %d operation(s), rebuilt %d subtree(s), wrote %d row(s)\n",
				report.Operations, report.Rebuilt, report.Rows)
		}
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				fmt.Sprintf("user %d", op.OwnerID),
				op.Status,
				duration,
				op.Source,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbSnapshotsCmd)
	dbCmd.AddCommand(dbRestoreCmd)

	// user subcommands
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringP("user", "u", "", "Rebuild the whole namespace of this user")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
