package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/emojicam/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB   bool
	resetLogs bool
	resetYes  bool
)

var resetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Reset system state (session database, log files)",
	Long:        "Clears recorded data. By default, it resets everything. Use flags to clear specific components.",
	Annotations: map[string]string{dbAnnotation: dbOptional},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetLogs {
			resetDB = true
			resetLogs = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				fmt.Fprintln(os.Stderr, "⚠️  No database connection, skipping session reset.")
			} else if resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all session tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.ShowError("Failed to reset database", err, nil)
					return err
				}
			}
		}

		if resetLogs && logFile != "" {
			if resetYes || confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete %s and its rotated copies?", logFile)) {
				fmt.Println("🗑️  Clearing Log Files...")
				for _, path := range logFiles(logFile) {
					removeFile(path)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear the session database")
	resetCmd.Flags().BoolVar(&resetLogs, "logs", false, "Clear the file given by --log-file and its rotated backups")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// backupTimeFormat is the timestamp lumberjack puts in rotated file names.
const backupTimeFormat = "2006-01-02T15-04-05.000"

// logFiles returns path plus the backups lumberjack rotates it into
// (name-<timestamp>.ext, optionally gzipped, next to the original).
func logFiles(path string) []string {
	files := []string{path}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(filepath.Base(path), ext) + "-"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if isBackupName(name, prefix, ext) || isBackupName(name, prefix, ext+".gz") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files
}

func isBackupName(name, prefix, ext string) bool {
	if len(name) < len(prefix)+len(ext) || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
		return false
	}
	_, err := time.Parse(backupTimeFormat, name[len(prefix):len(name)-len(ext)])
	return err == nil
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
