package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"eventharvest-backend/lib/assets"
	"eventharvest-backend/lib/configutil"
	"eventharvest-backend/lib/eventstore"
	"eventharvest-backend/lib/scrapers/meetup"
	"eventharvest-backend/lib/surface"
	"eventharvest-backend/services/harvest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Group     string `json:"group"`
	Output    string `json:"output"`
	MaxEvents int    `json:"max_events"`
	// opens a visible browser window, required for interactive login
	Headful  bool   `json:"headful"`
	StateDir string `json:"state_dir"`
	CSVLog   bool   `json:"csv_log"`
	Avatars  bool   `json:"avatars"`
}

var runOutput *string
var runMax *int
var runHeadful *bool
var runCSV *bool
var runAvatars *bool

func init() {
	runOutput = runCmd.Flags().String("output", "", "Directory to write scraped events to.")
	runMax = runCmd.Flags().Int("max", 0, "Maximum number of events to extract, 0 means all of them.")
	runHeadful = runCmd.Flags().Bool("headful", false, "Show the browser window instead of running headless.")
	runCSV = runCmd.Flags().Bool("csv", false, "Also append one CSV row per saved event.")
	runAvatars = runCmd.Flags().Bool("avatars", false, "Download attendee avatars next to the event documents.")
	rootCmd.AddCommand(runCmd)
}

func readRunConfig(cmd *cobra.Command, args []string) Config {
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		fatal("failed to read config", err)
	}

	if len(args) > 0 {
		config.Group = args[0]
	}
	if cmd.Flags().Changed("output") {
		config.Output = *runOutput
	}
	if cmd.Flags().Changed("max") {
		config.MaxEvents = *runMax
	}
	if cmd.Flags().Changed("headful") {
		config.Headful = *runHeadful
	}
	if cmd.Flags().Changed("csv") {
		config.CSVLog = *runCSV
	}
	if cmd.Flags().Changed("avatars") {
		config.Avatars = *runAvatars
	}

	if config.Group == "" {
		fatal("no group given", fmt.Errorf("pass a group url name or set it in config.json5"))
	}
	if config.Output == "" {
		config.Output = "output"
	}
	if config.StateDir == "" {
		config.StateDir = ".harvest-state"
	}
	return config
}

var runCmd = &cobra.Command{
	Use:   "run [group]",
	Short: "Scrapes a group's past events into the output directory.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := readRunConfig(cmd, args)

		store, err := eventstore.Open(config.Output)
		if err != nil {
			fatal("failed to open event store", err)
		}
		defer store.Close()

		browser, err := surface.NewBrowser(ctx, surface.BrowserOptions{
			StateDir:          config.StateDir,
			Headless:          !config.Headful,
			NavigationTimeout: time.Second * 30,
		})
		if err != nil {
			fatal("failed to start browser", err)
		}
		defer browser.Close()

		session := surface.SessionStore{
			Path: filepath.Join(config.StateDir, "session.json"),
		}
		if session.Restore(browser) {
			slog.InfoContext(ctx, "restored saved session cookies")
		}

		var fetcher meetup.AssetFetcher
		if config.Avatars {
			fetcher = assets.NewDownloader(config.Output)
		}

		var login harvest.LoginPrompt
		if config.Headful {
			login = consoleLogin{}
		}

		summary, err := harvest.Run(ctx, harvest.Options{
			Group:     config.Group,
			MaxEvents: config.MaxEvents,
			Client: meetup.NewClient(meetup.ClientOptions{
				Surface: browser,
				Assets:  fetcher,
			}),
			Store:  store,
			CSVLog: config.CSVLog,
			Login:  login,
		})
		if errors.Is(err, meetup.ErrLoginRequired) && !config.Headful {
			fatal("login required", fmt.Errorf("re-run with --headful and log in when the browser window opens"))
		}
		if err != nil {
			fatal("harvest failed", err)
		}

		err = session.Save(browser)
		if err != nil {
			slog.WarnContext(ctx, "failed to save session cookies", "err", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Loaded", "Candidates", "Dropped", "Extracted", "Skipped", "Saved", "Save failures"})
		t.AppendRow(table.Row{
			summary.Loaded, summary.Candidates, summary.Dropped,
			summary.Extracted, summary.Skipped, summary.Saved, summary.SaveFailures,
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

// consoleLogin blocks until the operator reports they finished logging
// in inside the browser window.
type consoleLogin struct{}

func (consoleLogin) RequestLogin(ctx context.Context) error {
	fmt.Println("Log in inside the browser window, then press Enter to continue.")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
