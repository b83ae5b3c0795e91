package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"
)

const stopEvent = "Stop"

var setupClaudeCodeCmd = &cobra.Command{
	Use:   "claude-code",
	Short: "Set up ClaudeWatch for Claude Code (Stop hook)",
	Long: `Install or remove the Stop hook so every response Claude Code finishes is
analyzed by ClaudeWatch.

  claudewatch setup claude-code             # enable hook
  claudewatch setup claude-code --disable   # disable hook`,
	RunE: setupClaudeCodeCommand,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set up ClaudeWatch for your environment",
	Long: `Set up ClaudeWatch integration with Claude Code.

  claudewatch setup claude-code           # install the Stop hook
  claudewatch setup claude-code --disable # remove the Stop hook`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var disableFlag bool

func init() {
	setupClaudeCodeCmd.Flags().BoolVar(&disableFlag, "disable", false, "Remove the ClaudeWatch hook")
	setupCmd.AddCommand(setupClaudeCodeCmd)
	rootCmd.AddCommand(setupCmd)
}

func claudeSettingsPath() string {
	return filepath.Join(os.Getenv("HOME"), ".claude", "settings.json")
}

func setupClaudeCodeCommand(cmd *cobra.Command, args []string) error {
	settingsPath := claudeSettingsPath()
	out := cmd.OutOrStdout()

	if disableFlag {
		removed, err := removeClaudeHook(settingsPath)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(out, "ℹ  ClaudeWatch hook not found in Claude Code settings; nothing to disable.")
			return nil
		}
		fmt.Fprintln(out, "✅ ClaudeWatch hook disabled for Claude Code")
		fmt.Fprintf(out, "   Settings: %s\n", settingsPath)
		fmt.Fprintln(out, "Re-enable anytime with: claudewatch setup claude-code")
		return nil
	}

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  ClaudeWatch + Claude Code (Stop Hook)")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	binPath, err := exec.LookPath("claudewatch")
	if err != nil {
		fmt.Fprintln(out, "⚠  claudewatch not found in PATH. Install it first:")
		fmt.Fprintln(out, "   go install github.com/gzhole/claudewatch/cmd/claudewatch@latest")
		return nil
	}
	fmt.Fprintf(out, "✅ claudewatch found: %s\n", binPath)

	var cfgArg string
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			cfgArg = abs
		}
	}
	command, err := hookCommandLine(binPath, cfgArg)
	if err != nil {
		return err
	}

	installed, err := installClaudeHook(settingsPath, command)
	if err != nil {
		return err
	}
	if !installed {
		fmt.Fprintf(out, "✅ Claude Code hook already configured: %s\n", settingsPath)
		fmt.Fprintln(out, "To disable: claudewatch setup claude-code --disable")
		return nil
	}

	fmt.Fprintf(out, "✅ Stop hook installed: %s\n", settingsPath)
	fmt.Fprintf(out, "   Command: %s\n", command)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "How it works:")
	fmt.Fprintln(out, "  1. Claude Code finishes a response")
	fmt.Fprintln(out, "  2. The Stop hook calls `claudewatch hook`")
	fmt.Fprintln(out, "  3. ClaudeWatch analyzes the latest response in the transcript")
	fmt.Fprintln(out, "  4. If the bad behavior is detected, the configured sinks are notified")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To disable: claudewatch setup claude-code --disable")
	return nil
}

// hookCommandLine builds the shell command Claude Code runs, quoting paths
// that contain spaces or shell metacharacters.
func hookCommandLine(binPath, cfgPath string) (string, error) {
	bin, err := syntax.Quote(binPath, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %s: %w", binPath, err)
	}
	line := bin + " hook"
	if cfgPath != "" {
		q, err := syntax.Quote(cfgPath, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote %s: %w", cfgPath, err)
		}
		line += " --config " + q
	}
	return line, nil
}

// installClaudeHook adds a Stop hook entry running command. It reports false
// when a ClaudeWatch entry is already present.
func installClaudeHook(settingsPath, command string) (bool, error) {
	settings, err := readClaudeSettings(settingsPath)
	if err != nil {
		return false, err
	}

	hooks := getOrCreateMap(settings, "hooks")
	stop := getOrCreateSlice(hooks, stopEvent)
	for _, entry := range stop {
		if isClaudeWatchHookEntry(entry) {
			return false, nil
		}
	}

	hooks[stopEvent] = append(stop, map[string]interface{}{
		"hooks": []interface{}{
			map[string]interface{}{
				"type":    "command",
				"command": command,
			},
		},
	})
	settings["hooks"] = hooks

	if err := writeClaudeSettings(settingsPath, settings); err != nil {
		return false, err
	}
	return true, nil
}

// removeClaudeHook deletes ClaudeWatch Stop entries, leaving other hooks alone.
func removeClaudeHook(settingsPath string) (bool, error) {
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return false, nil
	}
	settings, err := readClaudeSettings(settingsPath)
	if err != nil {
		return false, err
	}
	hooks, ok := settings["hooks"].(map[string]interface{})
	if !ok {
		return false, nil
	}

	stop, _ := hooks[stopEvent].([]interface{})
	filtered := stop[:0]
	removed := false
	for _, entry := range stop {
		if isClaudeWatchHookEntry(entry) {
			removed = true
			continue
		}
		filtered = append(filtered, entry)
	}
	if !removed {
		return false, nil
	}

	if len(filtered) == 0 {
		delete(hooks, stopEvent)
	} else {
		hooks[stopEvent] = filtered
	}
	if len(hooks) == 0 {
		delete(settings, "hooks")
	} else {
		settings["hooks"] = hooks
	}
	if err := writeClaudeSettings(settingsPath, settings); err != nil {
		return false, err
	}
	return true, nil
}

// claudeHookInstalled reports whether settings carry a ClaudeWatch Stop hook.
func claudeHookInstalled(settingsPath string) bool {
	settings, err := readClaudeSettings(settingsPath)
	if err != nil {
		return false
	}
	hooks, _ := settings["hooks"].(map[string]interface{})
	stop, _ := hooks[stopEvent].([]interface{})
	for _, entry := range stop {
		if isClaudeWatchHookEntry(entry) {
			return true
		}
	}
	return false
}

// isClaudeWatchHookEntry returns true if the hook entry runs `claudewatch hook`.
func isClaudeWatchHookEntry(entry interface{}) bool {
	m, ok := entry.(map[string]interface{})
	if !ok {
		return false
	}
	subHooks, _ := m["hooks"].([]interface{})
	for _, h := range subHooks {
		hm, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		command, _ := hm["command"].(string)
		if strings.Contains(command, "claudewatch") && strings.Contains(command, " hook") {
			return true
		}
	}
	return false
}

func readClaudeSettings(path string) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return settings, nil
}

func writeClaudeSettings(path string, settings map[string]interface{}) error {
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func getOrCreateMap(parent map[string]interface{}, key string) map[string]interface{} {
	if v, ok := parent[key].(map[string]interface{}); ok {
		return v
	}
	m := make(map[string]interface{})
	parent[key] = m
	return m
}

func getOrCreateSlice(parent map[string]interface{}, key string) []interface{} {
	if v, ok := parent[key].([]interface{}); ok {
		return v
	}
	return nil
}
