package main

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

const version = "dev"

const titleColumnWidth = 48

func printFolders(output io.Writer, folders []types.Folder) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tNOTES\tCREATED")
	for _, folder := range folders {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\n", folder.ID, truncate(folder.Name), folder.NoteCount, formatTime(folder.CreatedAt))
	}
	_ = writer.Flush()
}

func printNotes(output io.Writer, list []types.Note) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tUPDATED")
	for _, note := range list {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", note.ID, truncate(note.Title), formatTime(note.UpdatedAt))
	}
	_ = writer.Flush()
}

func printUser(output io.Writer, user types.User) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintf(writer, "ID\t%s\n", user.ID)
	fmt.Fprintf(writer, "NAME\t%s\n", user.Name)
	fmt.Fprintf(writer, "EMAIL\t%s\n", user.Email)
	if user.Avatar != "" {
		fmt.Fprintf(writer, "AVATAR\t%s\n", user.Avatar)
	}
	_ = writer.Flush()
}

func truncate(text string) string {
	return runewidth.Truncate(strings.ReplaceAll(text, "\n", " "), titleColumnWidth, "…")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// readSecret returns flagValue, or the first line of stdin when the flag is empty.
func readSecret(cmd *cobra.Command, flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readText returns the inline value, the contents of path, or stdin for "-".
func readText(cmd *cobra.Command, inline, path string) (string, bool, error) {
	switch {
	case path == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), true, err
	case path != "":
		data, err := os.ReadFile(path)
		return string(data), true, err
	case inline != "":
		return inline, true, nil
	}
	return "", false, nil
}

func exitOnErr(root *cobra.Command, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "smartnotes error: %s\n", apperr.Message(err))
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		os.Exit(2)
	case apperr.KindNotAuthenticated, apperr.KindInvalidCredentials:
		fmt.Fprintln(stderr, "run 'smartnotes login' to sign in")
		os.Exit(3)
	case "":
		if strings.Contains(err.Error(), "unknown command") || strings.Contains(err.Error(), "flag") {
			fmt.Fprintln(stderr)
			_ = root.Usage()
			os.Exit(2)
		}
	}
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}

	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}

	return version
}
