package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/lexwork/internal/config"
	"github.com/dshills/lexwork/internal/config/watcher"
	"github.com/dshills/lexwork/internal/logging"
	"github.com/dshills/lexwork/internal/view"
)

func newViewCmd(a *app) *cobra.Command {
	var (
		language string
		follow   bool
		tabWidth int
	)
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Show a highlighted file in the terminal and follow changes",
		Long: "View draws the file with its classification and a status line\n" +
			"with the background parse state. Keys: arrows, j/k, PgUp/PgDn,\n" +
			"Home/End scroll; r forces a reparse; q quits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if a.cfg.Log.Path == "" {
				// The terminal belongs to the viewer.
				logging.Configure(logging.LevelOff, "")
			}
			uri, content, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ws := a.newWorkspace()
			defer ws.CloseAll()
			doc, err := ws.Open(uri, language, content)
			if err != nil {
				return err
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("create terminal: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("init terminal: %w", err)
			}
			defer screen.Fini()

			v := view.New(screen, doc, path,
				view.WithTheme(a.cfg.Theme()),
				view.WithTabWidth(tabWidth),
			)
			defer v.Close()

			if follow && path != "-" {
				w, err := watcher.New()
				if err != nil {
					return err
				}
				defer w.Close()
				if err := v.Follow(w); err != nil {
					return err
				}
				if err := a.reloadThemeOnChange(w, v); err != nil {
					return err
				}
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)
			go func() {
				if _, ok := <-signals; ok {
					screen.Fini()
				}
			}()

			v.Run()
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language name (default: by file extension)")
	cmd.Flags().BoolVar(&follow, "follow", true, "reload the file when it changes on disk")
	cmd.Flags().IntVar(&tabWidth, "tab-width", view.DefaultTabWidth, "tab width in cells")
	return cmd
}

// reloadThemeOnChange watches the config file and applies its theme when it
// changes. Other settings take effect on the next start.
func (a *app) reloadThemeOnChange(w *watcher.Watcher, v *view.Viewer) error {
	if a.flags.configPath == "" {
		return nil
	}
	abs, err := filepath.Abs(a.flags.configPath)
	if err != nil {
		return err
	}
	log := logging.Get("config")
	w.OnChange(func(ev watcher.Event) {
		if ev.Path != abs || ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		cfg, err := config.Load(abs)
		if err != nil {
			log.Warningf("ignoring config change: %v", err)
			return
		}
		log.Infof("reloaded %s", abs)
		v.SetTheme(cfg.Theme())
	})
	return w.Watch(abs)
}
