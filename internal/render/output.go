package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/fedbook/fedbook/internal/datasets"
	"github.com/fedbook/fedbook/internal/domain"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Sessions formats a session list.
func (r *Renderer) Sessions(sessions []*domain.Session) string {
	if len(sessions) == 0 {
		return "No sessions found"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Training Sessions\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, s := range sessions {
		timeStr := s.CreatedAt.Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s\n", color.HiBlackString(timeStr), s.ID, color.YellowString(s.Name))
			if len(s.DatasetFolders) > 0 {
				fmt.Fprintf(&sb, "    datasets: %s\n", strings.Join(s.DatasetFolders, ", "))
			}
		} else {
			fmt.Fprintf(&sb, "[%s] %s %s datasets=%s\n", timeStr, s.ID, s.Name, strings.Join(s.DatasetFolders, ","))
		}
	}

	return sb.String()
}

// Cells formats a session's cells in notebook order.
func (r *Renderer) Cells(cells []*domain.Cell) string {
	if len(cells) == 0 {
		return "No cells found"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Notebook Cells\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, c := range cells {
		r.formatCell(&sb, c)
	}

	return sb.String()
}

func (r *Renderer) formatCell(sb *strings.Builder, c *domain.Cell) {
	code := firstLine(c.Code)

	if r.pretty {
		fmt.Fprintf(sb, "[%d] %s %s %s\n", c.Position, StatusBadge(c.Status), color.HiBlackString(shortID(c.ID)), code)
		if c.Status == domain.StatusRejected && c.RejectionReason != "" {
			fmt.Fprintf(sb, "    %s\n", color.RedString(c.RejectionReason))
		}
		if c.Status == domain.StatusExecuted && c.Output != "" {
			fmt.Fprintf(sb, "    %s\n", color.HiBlackString(firstLine(c.Output)))
		}
	} else {
		fmt.Fprintf(sb, "[%d] %s %s %s\n", c.Position, c.Status, c.ID, code)
	}
}

// Cell formats a single cell with its full output.
func (r *Renderer) Cell(c *domain.Cell) string {
	var sb strings.Builder

	if r.pretty {
		fmt.Fprintf(&sb, "%s %s (%s)\n", StatusBadge(c.Status), c.ID, c.Kind)
	} else {
		fmt.Fprintf(&sb, "%s %s (%s)\n", c.Status, c.ID, c.Kind)
	}

	if c.Code != "" {
		sb.WriteString(indent(c.Code) + "\n")
	}
	if c.RejectionReason != "" {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", color.RedString("rejected:"), c.RejectionReason)
		} else {
			fmt.Fprintf(&sb, "rejected: %s\n", c.RejectionReason)
		}
	}
	if c.Output != "" {
		sb.WriteString("--- output ---\n")
		sb.WriteString(c.Output + "\n")
	}

	return sb.String()
}

// Datasets formats the provider folder list.
func (r *Renderer) Datasets(folders []datasets.Folder) string {
	if len(folders) == 0 {
		return "No dataset folders found"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Provider Folders\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
	}

	for _, f := range folders {
		if r.pretty {
			fmt.Fprintf(&sb, "  %s  %d files, %s\n", color.YellowString(f.Name), f.FileCount, formatSize(f.SizeBytes))
		} else {
			fmt.Fprintf(&sb, "%s files=%d bytes=%d\n", f.Name, f.FileCount, f.SizeBytes)
		}
	}

	return sb.String()
}

// StatusBadge maps a cell status onto a colored badge.
func StatusBadge(status domain.CellStatus) string {
	switch status {
	case domain.StatusExecuted, domain.StatusReady:
		return color.GreenString("✓ %s", status)
	case domain.StatusApproved:
		return color.GreenString("● %s", status)
	case domain.StatusRejected:
		return color.RedString("✗ %s", status)
	case domain.StatusError:
		return color.RedString("! %s", status)
	case domain.StatusReviewing, domain.StatusExecuting:
		return color.YellowString("… %s", status)
	default:
		return color.HiBlackString("○ %s", status)
	}
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "…"
	}
	if len(s) > 80 {
		s = s[:80] + "…"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
