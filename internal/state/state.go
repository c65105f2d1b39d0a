package state

import (
	"math"

	"github.com/ziadkadry99/draw2ui/internal/store"
)

// ViewMode selects which panes the editor shows.
type ViewMode string

const (
	ViewDraw  ViewMode = "draw"
	ViewCode  ViewMode = "code"
	ViewSplit ViewMode = "split"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewDraw || m == ViewCode || m == ViewSplit
}

// Device is the preview frame size.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceTablet  Device = "tablet"
	DeviceMobile  Device = "mobile"
)

// Valid reports whether d is a known device.
func (d Device) Valid() bool {
	return d == DeviceDesktop || d == DeviceTablet || d == DeviceMobile
}

// Zoom bounds for PreviewSettings.Scale.
const (
	MinScale  = 0.25
	MaxScale  = 2.0
	ZoomStep  = 0.1
	baseScale = 1.0
)

// PreviewSettings are the preview's post-processing and presentation options.
type PreviewSettings struct {
	ThemeColor string  `json:"themeColor"`
	Font       string  `json:"font"`
	Device     Device  `json:"device"`
	Scale      float64 `json:"scale"`
}

// DefaultPreview returns the initial preview settings.
func DefaultPreview() PreviewSettings {
	return PreviewSettings{
		ThemeColor: "zinc",
		Font:       "font-sans",
		Device:     DeviceDesktop,
		Scale:      baseScale,
	}
}

// PreviewPatch is a partial update of PreviewSettings.
type PreviewPatch struct {
	ThemeColor *string  `json:"themeColor,omitempty"`
	Font       *string  `json:"font,omitempty"`
	Device     *Device  `json:"device,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
}

// Merge returns p with the patch's set fields overwritten. Scale is clamped
// to [MinScale, MaxScale].
func (p PreviewSettings) Merge(patch PreviewPatch) PreviewSettings {
	if patch.ThemeColor != nil {
		p.ThemeColor = *patch.ThemeColor
	}
	if patch.Font != nil {
		p.Font = *patch.Font
	}
	if patch.Device != nil {
		p.Device = *patch.Device
	}
	if patch.Scale != nil {
		p.Scale = ClampScale(*patch.Scale)
	}
	return p
}

// ClampScale bounds s to the zoom range and rounds away float drift from
// repeated steps.
func ClampScale(s float64) float64 {
	s = math.Round(s*100) / 100
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// NoticeLevel classifies a Notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is the latest user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Cell names, as used in snapshots and change events.
const (
	CellProjects           = "projects"
	CellCurrentProjectID   = "currentProjectId"
	CellCurrentProjectData = "currentProjectData"
	CellViewMode           = "viewMode"
	CellTheme              = "theme"
	CellGenerating         = "isGenerating"
	CellPreview            = "preview"
	CellDialogOpen         = "dialogOpen"
	CellNotice             = "notice"
)

// State is the set of cells shared by the views of one workspace. It is
// created per session and passed explicitly.
type State struct {
	Projects           *Cell[[]store.Project]
	CurrentProjectID   *Cell[string]
	CurrentProjectData *Cell[*store.ProjectData]
	ViewMode           *Cell[ViewMode]
	Theme              *Cell[store.Theme]
	Generating         *Cell[bool]
	Preview            *Cell[PreviewSettings]
	DialogOpen         *Cell[bool]
	Notice             *Cell[Notice]
}

// New returns a State with every cell at its initial value.
func New() *State {
	return &State{
		Projects:           NewCell([]store.Project{}),
		CurrentProjectID:   NewCell(""),
		CurrentProjectData: NewCell[*store.ProjectData](nil),
		ViewMode:           NewCell(ViewSplit),
		Theme:              NewCell(store.ThemeDark),
		Generating:         NewCell(false),
		Preview:            NewCell(DefaultPreview()),
		DialogOpen:         NewCell(false),
		Notice:             NewCell(Notice{}),
	}
}

// MergePreview merges patch into the Preview cell and returns the result.
func (s *State) MergePreview(patch PreviewPatch) PreviewSettings {
	return s.Preview.Update(func(p PreviewSettings) PreviewSettings {
		return p.Merge(patch)
	})
}

// Snapshot is a serializable copy of all cells.
type Snapshot struct {
	Projects           []store.Project    `json:"projects"`
	CurrentProjectID   string             `json:"currentProjectId"`
	CurrentProjectData *store.ProjectData `json:"currentProjectData"`
	ViewMode           ViewMode           `json:"viewMode"`
	Theme              store.Theme        `json:"theme"`
	Generating         bool               `json:"isGenerating"`
	Preview            PreviewSettings    `json:"preview"`
	DialogOpen         bool               `json:"dialogOpen"`
	Notice             Notice             `json:"notice"`
}

// Snapshot reads every cell. Cells are read one by one, so a snapshot taken
// during a multi-cell update may mix old and new values.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Projects:           s.Projects.Get(),
		CurrentProjectID:   s.CurrentProjectID.Get(),
		CurrentProjectData: s.CurrentProjectData.Get(),
		ViewMode:           s.ViewMode.Get(),
		Theme:              s.Theme.Get(),
		Generating:         s.Generating.Get(),
		Preview:            s.Preview.Get(),
		DialogOpen:         s.DialogOpen.Get(),
		Notice:             s.Notice.Get(),
	}
}

// Watch subscribes fn to every cell, reporting the cell name and new value.
// The returned function removes all subscriptions.
func (s *State) Watch(fn func(cell string, value any)) (unsubscribe func()) {
	unsubs := []func(){
		watch(s.Projects, CellProjects, fn),
		watch(s.CurrentProjectID, CellCurrentProjectID, fn),
		watch(s.CurrentProjectData, CellCurrentProjectData, fn),
		watch(s.ViewMode, CellViewMode, fn),
		watch(s.Theme, CellTheme, fn),
		watch(s.Generating, CellGenerating, fn),
		watch(s.Preview, CellPreview, fn),
		watch(s.DialogOpen, CellDialogOpen, fn),
		watch(s.Notice, CellNotice, fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func watch[T any](c *Cell[T], name string, fn func(string, any)) func() {
	return c.Subscribe(func(v T) { fn(name, v) })
}
