package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuadavidthomas/aikeys/internal/access"
	"github.com/joshuadavidthomas/aikeys/internal/console"
	"github.com/joshuadavidthomas/aikeys/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	badgeStyles = map[models.AccessStatus]lipgloss.Style{
		models.AccessShared:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		models.AccessPersonal: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		models.AccessNoKey:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		models.AccessNoAccess: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// StatusBadge renders the status label. Disabled providers show "off" in
// the activation column instead, so their badge is empty.
func StatusBadge(status models.AccessStatus, noColor bool) string {
	label := access.Label(status)
	if label == "" || noColor {
		return label
	}
	if style, ok := badgeStyles[status]; ok {
		return style.Render(label)
	}
	return label
}

func activeLabel(st models.EffectiveAccessState, noColor bool) string {
	if st.AccessStatus == models.AccessNoAccess {
		return "—"
	}
	if st.IsActive {
		return "on"
	}
	if noColor {
		return "off"
	}
	return dimStyle.Render("off")
}

func scopeLabel(v console.ProviderView) string {
	if v.State.AccessStatus == models.AccessNoAccess {
		return "—"
	}
	scope := string(v.State.ActiveScope())
	if v.State.CanUseShared && !v.State.UseShared {
		scope += " (shared available)"
	}
	return scope
}

func keyLabel(v console.ProviderView) string {
	switch {
	case v.DisplayKey == "":
		return "—"
	case v.DisplayKey == models.MaskSentinel:
		return "stored"
	default:
		return v.DisplayKey
	}
}

// RenderProviderTable renders one row per provider view.
func RenderProviderTable(views []console.ProviderView, opts TableOptions) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		name := v.Descriptor.Name
		if v.Pending {
			name += " …"
		}
		rows = append(rows, []string{
			name,
			StatusBadge(v.State.AccessStatus, opts.NoColor),
			activeLabel(v.State, opts.NoColor),
			scopeLabel(v),
			keyLabel(v),
			strconv.Itoa(v.Descriptor.ModelCount()),
		})
	}
	opts.AlignRight = append(opts.AlignRight, 5)
	return NewTableWithOptions([]string{"Provider", "Status", "Active", "Scope", "Key", "Models"}, rows, opts)
}

// RenderProviderDetail renders a single provider as labelled lines.
func RenderProviderDetail(v console.ProviderView, noColor bool) string {
	label := func(s string) string {
		if noColor {
			return s
		}
		return labelStyle.Render(s)
	}
	title := v.Descriptor.Name
	if !noColor {
		title = titleStyle.Render(title)
	}

	var b strings.Builder
	b.WriteString(title)
	if v.Descriptor.Description != "" {
		b.WriteString("\n")
		if noColor {
			b.WriteString(v.Descriptor.Description)
		} else {
			b.WriteString(dimStyle.Render(v.Descriptor.Description))
		}
	}
	b.WriteString("\n\n")

	line := func(k, val string) {
		fmt.Fprintf(&b, "%s %s\n", label(fmt.Sprintf("%-10s", k+":")), val)
	}
	line("ID", v.Descriptor.FrontendID)
	line("Status", access.Describe(v.State))
	if v.State.AccessStatus != models.AccessNoAccess {
		line("Active", activeLabel(v.State, noColor))
		line("Scope", scopeLabel(v))
		line("Key", keyLabel(v))
	}
	if n := v.Descriptor.ModelCount(); n > 0 {
		names := make([]string, 0, n)
		for _, m := range v.Descriptor.Models {
			names = append(names, m.Name)
		}
		line("Models", strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProviderJSON is the machine-readable form of a provider view.
type ProviderJSON struct {
	ID           string              `json:"id" yaml:"id"`
	Name         string              `json:"name" yaml:"name"`
	Backend      string              `json:"backend" yaml:"backend"`
	BackendID    *int64              `json:"backend_id,omitempty" yaml:"backend_id,omitempty"`
	AccessStatus models.AccessStatus `json:"access_status" yaml:"access_status"`
	Active       bool                `json:"active" yaml:"active"`
	Scope        models.Scope        `json:"scope" yaml:"scope"`
	CanUseShared bool                `json:"can_use_shared" yaml:"can_use_shared"`
	UseShared    bool                `json:"use_shared" yaml:"use_shared"`
	KeyPresent   bool                `json:"key_present" yaml:"key_present"`
	Key          string              `json:"key,omitempty" yaml:"key,omitempty"`
	Models       int                 `json:"models" yaml:"models"`
	Pending      bool                `json:"pending,omitempty" yaml:"pending,omitempty"`
}

func ToProviderJSON(v console.ProviderView) ProviderJSON {
	return ProviderJSON{
		ID:           v.Descriptor.FrontendID,
		Name:         v.Descriptor.Name,
		Backend:      v.Descriptor.BackendName,
		BackendID:    v.Descriptor.BackendID,
		AccessStatus: v.State.AccessStatus,
		Active:       v.State.IsActive,
		Scope:        v.State.ActiveScope(),
		CanUseShared: v.State.CanUseShared,
		UseShared:    v.State.UseShared,
		KeyPresent:   v.State.EffectiveKeyPresent,
		Key:          v.DisplayKey,
		Models:       v.Descriptor.ModelCount(),
		Pending:      v.Pending,
	}
}

func ToProvidersJSON(views []console.ProviderView) []ProviderJSON {
	out := make([]ProviderJSON, 0, len(views))
	for _, v := range views {
		out = append(out, ToProviderJSON(v))
	}
	return out
}
