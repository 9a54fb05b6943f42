package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/schedule"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var (
		showVersion bool
		configPath  string
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Telegram secretary bot for Notion tasks, logs and focus windows",
		Long: strings.TrimSpace(`secretary answers Telegram messages with a tool-calling model backed by
exported Notion tasks, records progress logs, and reminds you when focus
windows end. Without a model backend it answers with built-in commands.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config.json")

	cfgPath := func() string { return configPath }

	root.AddCommand(newOnboardCommand(cfgPath))
	root.AddCommand(newChatCommand(cfgPath))
	root.AddCommand(newGatewayCommand(cfgPath))
	root.AddCommand(newStatusCommand(cfgPath))
	root.AddCommand(newHistoryCommand(cfgPath))
	root.AddCommand(newBlocksCommand(cfgPath))
	root.AddCommand(newBriefingCommand(cfgPath))
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Write a default config file",
		Example: "  secretary onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Config already exists at %s\n", path)
				fmt.Fprint(out, "Overwrite? (y/n): ")
				response, readErr := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if readErr != nil || (response != "y" && response != "yes") {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if err := config.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(out, "%s is ready!\n", appName)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Set channels.telegram.token in", path)
			fmt.Fprintln(out, "  2. Add a model API key (providers.openrouter.api_key by default)")
			fmt.Fprintln(out, "  3. Put the exported Notion snapshots in", cfg.ProcessedDir())
			fmt.Fprintln(out, "  4. Chat locally: secretary chat -m \"/tasks\"")
			fmt.Fprintln(out, "  5. Run the bot: secretary gateway")
			return nil
		},
	}
}

func newChatCommand(configPath func() string) *cobra.Command {
	var (
		message string
		chatID  int64
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the secretary in the terminal",
		Long:  "Run an interactive local session, or send one message with --message. Conversation context is kept in memory only.",
		Example: strings.Join([]string{
			"  secretary chat",
			"  secretary chat -m \"/tasks\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.OutOrStdout(), configPath(), debug, chatID, message)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send")
	cmd.Flags().Int64Var(&chatID, "chat-id", 1, "Chat id used for tools and time windows")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newGatewayCommand(configPath func() string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the Telegram bot with reminders, briefing and health server",
		Long:    "Long-poll Telegram, answer through the agent, deliver focus-window reminders, run the daily briefing and serve /health and /ready.",
		Example: "  secretary gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.OutOrStdout(), configPath(), debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and readiness",
		Example: "  secretary status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			cfg, err := loadConfig(path, false)
			if err != nil {
				return err
			}

			mark := func(ok bool) string {
				if ok {
					return "✓"
				}
				return "not set"
			}

			fmt.Fprintf(out, "%s Status\n", appName)
			fmt.Fprintf(out, "Version: %s\n\n", formatVersion())
			_, statErr := os.Stat(path)
			fmt.Fprintln(out, "Config:", path, mark(statErr == nil))
			fmt.Fprintln(out, "Data dir:", cfg.DataPath())

			cred, err := providers.ProviderCredentialStatus(cfg)
			if err != nil {
				fmt.Fprintf(out, "Provider: %s (%v)\n", cred.Provider, err)
			} else {
				detail := mark(cred.Configured)
				if cred.Mode != "" {
					detail += " (" + cred.Mode + ")"
				}
				fmt.Fprintf(out, "Provider: %s %s\n", cred.Provider, detail)
			}
			fmt.Fprintf(out, "Model: %s\n", cfg.Agent.Model)
			fmt.Fprintln(out, "Telegram token:", mark(strings.TrimSpace(cfg.Channels.Telegram.Token) != ""))
			fmt.Fprintln(out, "WeCom mirror:", mark(strings.TrimSpace(cfg.Channels.WeCom.WebhookURL) != ""))
			fmt.Fprintln(out, "Discord mirror:", mark(strings.TrimSpace(cfg.Channels.Discord.MirrorChannelID) != ""))
			if cfg.Briefing.Enabled {
				fmt.Fprintf(out, "Briefing: %s -> chat %d\n", cfg.Briefing.Cron, cfg.Briefing.ChatID)
			} else {
				fmt.Fprintln(out, "Briefing: disabled")
			}

			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if last, ok := a.history.LastCheckpoint(); ok {
				fmt.Fprintf(out, "Last update id: %d\n", last)
			} else {
				fmt.Fprintln(out, "Last update id: none")
			}
			windows, err := a.windows.List(cmd.Context(), false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Upcoming windows: %d\n", len(windows))
			return nil
		},
	}
}

func newHistoryCommand(configPath func() string) *cobra.Command {
	historyRoot := &cobra.Command{
		Use:   "history",
		Short: "Manage stored chat history",
	}

	var chatID int64
	clearCmd := &cobra.Command{
		Use:     "clear",
		Short:   "Archive a chat's history and start a new session",
		Example: "  secretary history clear --chat-id 123456",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatID == 0 {
				return fmt.Errorf("--chat-id is required")
			}
			cfg, err := loadConfig(configPath(), false)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.history.ClearChat(chatID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "History for chat %d archived\n", chatID)
			return nil
		},
	}
	clearCmd.Flags().Int64Var(&chatID, "chat-id", 0, "Telegram chat id")
	historyRoot.AddCommand(clearCmd)
	return historyRoot
}

func newBlocksCommand(configPath func() string) *cobra.Command {
	blocksRoot := &cobra.Command{
		Use:   "blocks",
		Short: "Manage task and rest windows",
		Long:  "Windows added here are stored immediately; a running gateway arms their reminders on its next start.",
	}

	withApp := func(fn func(a *app) error) error {
		cfg, err := loadConfig(configPath(), false)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a)
	}

	var (
		listChat int64
		all      bool
	)
	list := &cobra.Command{
		Use:     "list",
		Short:   "List windows",
		Example: "  secretary blocks list --chat-id 123456 --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				var (
					windows []schedule.Window
					err     error
				)
				if listChat != 0 {
					windows, err = a.schedule.List(cmd.Context(), listChat, all)
				} else {
					windows, err = a.windows.List(cmd.Context(), all)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(windows) == 0 {
					fmt.Fprintln(out, "No windows.")
					return nil
				}
				for _, w := range windows {
					fmt.Fprintf(out, "%s  chat=%d  %s\n", w.ID, w.ChatID, schedule.FormatWindow(w))
				}
				return nil
			})
		},
	}
	list.Flags().Int64Var(&listChat, "chat-id", 0, "Only show windows of this chat")
	list.Flags().BoolVar(&all, "all", false, "Include windows that already ended")

	var (
		addChat  int64
		kind     string
		start    string
		end      string
		taskName string
		taskID   string
		note     string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a window",
		Example: strings.Join([]string{
			"  secretary blocks add --chat-id 123456 --kind task --start 14:00 --end 16:00 --task \"Magnet\"",
			"  secretary blocks add --chat-id 123456 --kind rest --start \"2026-03-01 13:00\" --end \"2026-03-01 14:00\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addChat == 0 {
				return fmt.Errorf("--chat-id is required")
			}
			startAt, endAt, err := schedule.ParseRange(start, end, time.Now())
			if err != nil {
				return err
			}
			return withApp(func(a *app) error {
				created, err := a.schedule.Add(cmd.Context(), schedule.Window{
					ChatID:   addChat,
					Kind:     strings.ToLower(strings.TrimSpace(kind)),
					Start:    startAt,
					End:      endAt,
					TaskID:   taskID,
					TaskName: taskName,
					Note:     note,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s  %s\n", created.ID, schedule.FormatWindow(created))
				return nil
			})
		},
	}
	add.Flags().Int64Var(&addChat, "chat-id", 0, "Telegram chat id")
	add.Flags().StringVar(&kind, "kind", schedule.KindTask, "Window kind: task or rest")
	add.Flags().StringVar(&start, "start", "", "Start time (RFC 3339, \"YYYY-MM-DD HH:MM\" or \"HH:MM\", Beijing time)")
	add.Flags().StringVar(&end, "end", "", "End time, same formats as --start")
	add.Flags().StringVar(&taskName, "task", "", "Task name")
	add.Flags().StringVar(&taskID, "task-id", "", "Notion task id")
	add.Flags().StringVar(&note, "note", "", "Free-form note")

	cancel := &cobra.Command{
		Use:     "cancel <window-id>",
		Short:   "Delete a window",
		Args:    cobra.ExactArgs(1),
		Example: "  secretary blocks cancel 3f1c...",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ok, err := a.schedule.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("window %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", args[0])
				return nil
			})
		},
	}

	blocksRoot.AddCommand(list, add, cancel)
	return blocksRoot
}

func newBriefingCommand(configPath func() string) *cobra.Command {
	briefingRoot := &cobra.Command{
		Use:   "briefing",
		Short: "Daily briefing",
	}

	var chatID int64
	run := &cobra.Command{
		Use:     "run",
		Short:   "Send the briefing now",
		Example: "  secretary briefing run --chat-id 123456",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBriefing(cmd.Context(), cmd.OutOrStdout(), configPath(), chatID)
		},
	}
	run.Flags().Int64Var(&chatID, "chat-id", 0, "Chat to send to (defaults to briefing.chat_id)")
	briefingRoot.AddCommand(run)
	return briefingRoot
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  secretary version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}
