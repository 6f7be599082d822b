package api

// Report is a server-owned record derived from one ingested document.
type Report struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"keyFindings"`
	Charts      []Chart  `json:"charts"`
	Actors      []Actor  `json:"actors,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// Chart is a declarative chart descriptor. Rows are keyed by XAxisKey and by
// each DataKey.Key.
type Chart struct {
	Type        string                   `json:"type"` // "bar" | "line" | "pie"
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	XAxisKey    string                   `json:"xAxisKey"`
	DataKeys    []DataKey                `json:"dataKeys"`
	Data        []map[string]interface{} `json:"data"`
}

// DataKey describes one series of a chart.
type DataKey struct {
	Key   string `json:"key"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// Label returns the display name of the series.
func (k DataKey) Label() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Key
}

// Actor is an AI-derived stakeholder referenced across reports.
type Actor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon,omitempty" yaml:"icon"`
	// Reports holds ids of the reports mentioning the actor. Only set on
	// actors aggregated client-side.
	Reports []string `json:"reports,omitempty" yaml:"-"`
}

// UploadFile is one local file to send to the upload endpoint.
type UploadFile struct {
	Name string
	Path string
	MIME string
}

// UploadResponse is the body of POST /api/reports/upload.
type UploadResponse struct {
	Reports      []Report `json:"reports"`
	Errors       []string `json:"errors"`
	SuccessCount int      `json:"success_count"`
}

// Storyboard is the synthesized cross-report narrative.
type Storyboard struct {
	Title             string                 `json:"title"`
	Narrative         string                 `json:"narrative"`
	Introspection     string                 `json:"introspection"`
	Retrospection     string                 `json:"retrospection"`
	Charts            []Chart                `json:"charts"`
	KeyActors         []Actor                `json:"keyActors,omitempty"`
	RelationshipGraph map[string]interface{} `json:"relationshipGraph,omitempty"`
}

// TimelineItem is one entry of the highlights timeline.
type TimelineItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Stats describes the backend database.
type Stats struct {
	TotalReports   int     `json:"total_reports"`
	DatabaseSizeMB float64 `json:"database_size_mb"`
	DatabasePath   string  `json:"database_path"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status    string `json:"status"`
	AIService string `json:"ai_service,omitempty"`
	Error     string `json:"error,omitempty"`
}
