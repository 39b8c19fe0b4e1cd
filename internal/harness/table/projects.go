package table

import (
	"fmt"

	"github.com/ethpandaops/sitecheck/internal/config"
)

// ProjectsFormatter formats the project matrix.
type ProjectsFormatter struct {
	renderer Renderer
	colors   *ColorHelper
}

// NewProjectsFormatter creates a new project matrix formatter.
func NewProjectsFormatter(renderer Renderer) *ProjectsFormatter {
	return &ProjectsFormatter{
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

var projectColumns = []Column{
	{Header: "Project"},
	{Header: "Engine"},
	{Header: "Driver"},
	{Header: "Device"},
	{Header: "Viewport", Align: AlignRight},
	{Header: "Scale", Align: AlignRight},
	{Header: "Mobile"},
	{Header: "Touch"},
}

// Format renders one row per project with the driver behind its engine.
func (f *ProjectsFormatter) Format(projects []config.ResolvedProject) string {
	rows := make([][]string, 0, len(projects))

	for _, p := range projects {
		rows = append(rows, []string{
			f.colors.Bold(p.Name),
			string(p.Engine),
			f.colors.Muted(p.Engine.Driver()),
			p.Device.Name,
			fmt.Sprintf("%dx%d", p.Device.Width, p.Device.Height),
			fmt.Sprintf("%gx", p.Device.DeviceScaleFactor),
			yesNo(p.Device.IsMobile),
			yesNo(p.Device.HasTouch),
		})
	}

	return f.renderer.Render(Section{
		Title:   "Projects",
		Columns: projectColumns,
		Rows:    rows,
		Empty:   "No projects configured",
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
