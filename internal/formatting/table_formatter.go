package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"credbroker/internal/store"
	"credbroker/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// FormatInstallations renders one row per installation.
func (f *TableFormatter) FormatInstallations(installations []store.InstallationSummary) error {
	if len(installations) == 0 {
		f.formatEmptyMessage("📋", "No installations found")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TEAM"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("ENTERPRISE"),
		text.FgHiCyan.Sprint("BOT USER"),
		text.FgHiCyan.Sprint("TOKENS"),
		text.FgHiCyan.Sprint("INSTALLED"),
	})

	for _, inst := range installations {
		t.AppendRow(table.Row{
			inst.TeamID,
			strings.TruncateCell(inst.TeamName, strings.DefaultCellMaxLen),
			inst.EnterpriseID,
			inst.BotUserID,
			tokenKinds(inst),
			inst.InstalledAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()

	_, err := fmt.Fprintf(f.options.Output, "\n%s %s %s\n",
		text.FgHiBlue.Sprint("Total:"),
		text.FgHiWhite.Sprint(len(installations)),
		text.FgHiBlue.Sprint("installations"))
	return err
}

// FormatToken renders the token as key value pairs.
func (f *TableFormatter) FormatToken(token TokenView) error {
	t := f.createTable()
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})
	t.AppendRow(table.Row{"Workspace", token.WorkspaceID})
	t.AppendRow(table.Row{"User", token.UserID})
	t.AppendRow(table.Row{"Access token", token.AccessToken})
	if !token.Expiry.IsZero() {
		t.AppendRow(table.Row{"Expires", token.Expiry.Format("2006-01-02 15:04:05 MST")})
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Output)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) formatEmptyMessage(icon, message string) {
	_, _ = fmt.Fprintf(f.options.Output, "%s %s\n", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
}

func tokenKinds(inst store.InstallationSummary) string {
	switch {
	case inst.HasBotToken && inst.HasUserToken:
		return "bot, user"
	case inst.HasBotToken:
		return "bot"
	case inst.HasUserToken:
		return "user"
	default:
		return "-"
	}
}
