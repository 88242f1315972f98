package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/journalkeeper/internal/client/config"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	goversion "go.hein.dev/go-version"
)

// Build information, set with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// NewRootCommand builds the journal command tree. The App is opened before
// any subcommand runs and closed afterwards, which pushes armed edits.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var app *App

	root := &cobra.Command{
		Use:           "journal",
		Short:         "Daily mood journal that works offline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if standalone(cmd) {
				return nil
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			log := logging.NewTextLogger(os.Stderr, level)

			app, err = NewApp(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if app == nil {
				return nil
			}
			return app.Close(context.WithoutCancel(cmd.Context()))
		},
	}
	if err := config.BindFlags(root.PersistentFlags(), v); err != nil {
		panic(err)
	}

	get := func() *App { return app }

	addLogin(root, get)
	addLogout(root, get)
	addToday(root, get)
	addSet(root, get)
	addSubmit(root, get)
	addReset(root, get)
	addWeek(root, get)
	addSync(root, get)
	addAssess(root, get)
	addTerms(root, get)
	addExport(root, get)
	addRepl(root, get)
	addVersion(root)

	return root
}

// standalone commands run without opening the local cache.
func standalone(cmd *cobra.Command) bool {
	if cmd.Annotations["standalone"] == "true" || cmd.Name() == "help" {
		return true
	}
	return cmd.HasParent() && cmd.Parent().Name() == "completion"
}

func addLogin(root *cobra.Command, app func() *App) {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an access token",
		Example: `
journal login --token eyJhbGciOi...
journal login            # prompts for the token
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Login(cmd.Context(), token)
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", "", "access token (prompted when empty)")
	root.AddCommand(cmd)
}

func addLogout(root *cobra.Command, app func() *App) {
	root.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Sign out; later entries stay on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Logout(cmd.Context())
		},
	})
}

func addToday(root *cobra.Command, app func() *App) {
	var d string
	cmd := &cobra.Command{
		Use:     "today",
		Aliases: []string{"show"},
		Short:   "Show a day (today by default)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Show(cmd.Context(), d)
		},
	}
	cmd.Flags().StringVarP(&d, "date", "d", "", "day to show: YYYY-MM-DD, today or yesterday")
	root.AddCommand(cmd)
}

func addSet(root *cobra.Command, app func() *App) {
	o := SetOptions{}
	var notes string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Edit mood, reason or notes of a day",
		Example: `
journal set --mood calm --reason school
journal set --notes "long walk after class" --date yesterday
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("notes") {
				o.Notes = &notes
			}
			return app().Set(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVarP(&o.Date, "date", "d", "", "day to edit: YYYY-MM-DD, today or yesterday")
	cmd.Flags().StringVarP(&o.Mood, "mood", "m", "", "Happy, Calm, Okay, Sad, Anxious, Angry or Tired")
	cmd.Flags().StringVarP(&o.Reason, "reason", "r", "", "School, Family, Friends, Health, Work, Sleep, Money or Other")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free text, at most 250 words")
	root.AddCommand(cmd)
}

func addSubmit(root *cobra.Command, app func() *App) {
	var d string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a day; it stays read-only until reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Submit(cmd.Context(), d)
		},
	}
	cmd.Flags().StringVarP(&d, "date", "d", "", "day to submit")
	root.AddCommand(cmd)
}

func addReset(root *cobra.Command, app func() *App) {
	var d string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear a day and its submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Reset(cmd.Context(), d)
		},
	}
	cmd.Flags().StringVarP(&d, "date", "d", "", "day to reset")
	root.AddCommand(cmd)
}

func addWeek(root *cobra.Command, app func() *App) {
	root.AddCommand(&cobra.Command{
		Use:   "week",
		Short: "Show the last seven days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Week(cmd.Context())
		},
	})
}

func addSync(root *cobra.Command, app func() *App) {
	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Pull recent days from the server and push pending ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Sync(cmd.Context())
		},
	})
}

func addAssess(root *cobra.Command, app func() *App) {
	var status bool
	cmd := &cobra.Command{
		Use:   "assess [answers...]",
		Short: "Take the weekly PHQ-9 self-check",
		Example: `
journal assess                    # asks each question
journal assess 1 0 2 1 0 0 1 0 0
journal assess --status
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status {
				return app().AssessStatus(cmd.Context())
			}
			return app().Assess(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show the latest result and when the next one is due")
	root.AddCommand(cmd)
}

func addTerms(root *cobra.Command, app func() *App) {
	terms := &cobra.Command{
		Use:   "terms",
		Short: "Terms of use",
	}
	terms.AddCommand(&cobra.Command{
		Use:   "accept",
		Short: "Accept the terms of use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Terms(cmd.Context(), true)
		},
	})
	terms.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the terms were accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Terms(cmd.Context(), false)
		},
	})
	root.AddCommand(terms)
}

func addExport(root *cobra.Command, app func() *App) {
	root.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Create a download link for the whole journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Export(cmd.Context())
		},
	})
}

func addRepl(root *cobra.Command, app func() *App) {
	root.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Interactive session with online status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Repl(cmd.Context())
		},
	})
}

func addVersion(root *cobra.Command) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the journal version",
		Annotations: map[string]string{"standalone": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			resp := goversion.FuncWithOutput(shortened, version, commit, date, output)
			_, _ = fmt.Fprint(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	root.AddCommand(cmd)
}
