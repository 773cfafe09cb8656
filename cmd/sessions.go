package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/store"
	"github.com/andresmejia3/emojicam/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var sessionChart string

var sessionsCmd = &cobra.Command{
	Use:         "sessions",
	Short:       "List recorded emotion sessions",
	Annotations: map[string]string{dbAnnotation: dbRequired},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sessions, err := DB.ListSessions(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to list sessions", err, nil)
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded yet.")
			return nil
		}
		printSessions(os.Stdout, sessions)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:         "show <session-id>",
	Short:       "Show the emotion tally of one session",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{dbAnnotation: dbRequired},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", args[0], err)
		}

		counts, err := DB.SessionTally(cmd.Context(), id)
		if errors.Is(err, store.ErrSessionNotFound) {
			fmt.Printf("❌ Session %d not found.\n", id)
			return err
		}
		if err != nil {
			utils.ShowError("Failed to load session tally", err, nil)
			return err
		}

		tally := overlay.NewTally(overlay.Emotions...)
		for emotion, n := range counts {
			tally.Add(emotion, n)
		}
		printTallySummary(os.Stdout, tally, -1, id)

		if sessionChart != "" {
			if err := saveTallyChart(sessionChart, tally); err != nil {
				utils.ShowError("Failed to write chart", err, nil)
				return err
			}
			fmt.Printf("📊 Chart saved to %s\n", sessionChart)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&sessionChart, "chart", "", "Also render the tally as a bar chart image (png/jpg)")
	sessionsCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func printSessions(w io.Writer, sessions []store.Session) {
	wOut := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(wOut, "ID\tSOURCE\tBACKEND\tSTARTED\tDURATION\tEVENTS\tDOMINANT")
	fmt.Fprintln(wOut, "--\t------\t-------\t-------\t--------\t------\t--------")
	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = fmtTime(s.EndedAt.Sub(s.StartedAt).Seconds())
		}
		dominant := s.Dominant
		if dominant == "" {
			dominant = "-"
		}
		fmt.Fprintf(wOut, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			filepath.Base(s.Source),
			s.Backend,
			s.StartedAt.Local().Format(time.DateTime),
			duration,
			s.Events,
			dominant,
		)
	}
	wOut.Flush()
}

// printTallySummary writes the tally as a ranked table. frames < 0 omits the frame count.
func printTallySummary(w io.Writer, tally *overlay.Tally, frames int, sessionID int64) {
	total := tally.Total()
	if frames >= 0 {
		fmt.Fprintf(w, "\n🎞️  %d frame(s), %d with a dominant emotion\n", frames, total)
	}
	if sessionID != 0 {
		fmt.Fprintf(w, "📼 Session %d\n", sessionID)
	}
	if total == 0 {
		fmt.Fprintln(w, "No emotions recorded.")
		return
	}

	wOut := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(wOut, "EMOTION\tCOUNT\tSHARE")
	for _, item := range tally.Normalized() {
		n := tally.Count(item.Category)
		fmt.Fprintf(wOut, "%s\t%d\t%.1f%%\n", item.Category, n, 100*float64(n)/float64(total))
	}
	wOut.Flush()
}

// renderTallyChart draws the normalized tally on a dark canvas sized to fit MaxBars rows.
func renderTallyChart(tally *overlay.Tally) (*image.RGBA, error) {
	text, err := overlay.NewTextRenderer()
	if err != nil {
		return nil, err
	}
	style := overlay.BarStyle{Width: 300, Height: 28, Spacing: 8, FontScale: 0.6}
	const margin = 20
	height := style.Extent(overlay.MaxBars) + 2*margin
	canvas := image.NewRGBA(image.Rect(0, 0, style.Width+2*margin, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{20, 20, 20, 255}), image.Point{}, draw.Src)

	chart := overlay.BarChart{
		Style:   style,
		Palette: overlay.EmotionPalette,
		Text:    text,
		Label: func(item overlay.RankedItem) string {
			return fmt.Sprintf("%s (%d)", item.Category, tally.Count(item.Category))
		},
	}
	return chart.Render(canvas, image.Pt(margin, margin), overlay.Down, tally.Normalized()), nil
}

func saveTallyChart(path string, tally *overlay.Tally) error {
	img, err := renderTallyChart(tally)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// fmtTime formats seconds as HH:MM:SS.
func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
